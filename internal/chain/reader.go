package chain

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/you/swap-estimator/internal/multicall"
)

// Reader - всё, что эстиматорам нужно от ноды.
type Reader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	FeeData(ctx context.Context) (FeeData, error)
}

// Batcher is implemented by readers that can fold several eth_calls into one multicall.
type Batcher interface {
	Batch(ctx context.Context, calls []multicall.Call) ([]multicall.Result, error)
}

// FeeData mirrors what wallets show: legacy gas price plus EIP-1559 caps.
type FeeData struct {
	GasPrice             *big.Int `json:"gasPrice"`
	MaxFeePerGas         *big.Int `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *big.Int `json:"maxPriorityFeePerGas,omitempty"`
}

// Call packs method(args...), performs eth_call and unpacks the outputs.
func Call(ctx context.Context, r Reader, to common.Address, a abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := a.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := r.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data})
	if err != nil {
		return nil, err
	}
	return unpack(a, method, raw)
}

func unpack(a abi.ABI, method string, raw []byte) ([]interface{}, error) {
	outs, err := a.Methods[method].Outputs.Unpack(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", method, err)
	}
	if len(outs) == 0 {
		return nil, fmt.Errorf("decode %s: empty output", method)
	}
	return outs, nil
}

// CallBig is Call for methods returning a single uint256.
func CallBig(ctx context.Context, r Reader, to common.Address, a abi.ABI, method string, args ...interface{}) (*big.Int, error) {
	outs, err := Call(ctx, r, to, a, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := outs[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("decode %s: unexpected type %T", method, outs[0])
	}
	return v, nil
}

// CallAddress is Call for methods returning a single address.
func CallAddress(ctx context.Context, r Reader, to common.Address, a abi.ABI, method string, args ...interface{}) (common.Address, error) {
	outs, err := Call(ctx, r, to, a, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	v, ok := outs[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("decode %s: unexpected type %T", method, outs[0])
	}
	return v, nil
}

// EstimateCall estimates gas for method(args...) sent by from, with optional native value.
func EstimateCall(ctx context.Context, r Reader, from, to common.Address, value *big.Int, a abi.ABI, method string, args ...interface{}) (uint64, error) {
	data, err := a.Pack(method, args...)
	if err != nil {
		return 0, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{From: from, To: &to, Data: data}
	if value != nil && value.Sign() > 0 {
		msg.Value = new(big.Int).Set(value)
	}
	return r.EstimateGas(ctx, msg)
}
