// Package chaintest provides a scripted chain.Reader for estimator tests.
package chaintest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/you/swap-estimator/internal/chain"
)

type key struct {
	to  common.Address
	sel [4]byte
}

// Reader dispatches eth_call / eth_estimateGas by target address and method selector.
// Unscripted calls fail, so a test notices unexpected I/O.
type Reader struct {
	mu       sync.Mutex
	calls    map[key]func(args []interface{}) ([]byte, error)
	gas      map[key]func(msg ethereum.CallMsg) (uint64, error)
	balances map[common.Address]*big.Int

	Fee    chain.FeeData
	FeeErr error

	CallCount    int
	GasCount     int
	BalanceCount int
	FeeCount     int
	GasMsgs      []ethereum.CallMsg
}

func New() *Reader {
	return &Reader{
		calls:    make(map[key]func(args []interface{}) ([]byte, error)),
		gas:      make(map[key]func(msg ethereum.CallMsg) (uint64, error)),
		balances: make(map[common.Address]*big.Int),
		Fee:      chain.FeeData{GasPrice: big.NewInt(20_000_000_000)},
	}
}

func selector(a abi.ABI, method string) [4]byte {
	m, ok := a.Methods[method]
	if !ok {
		panic(fmt.Sprintf("chaintest: method %s not in abi", method))
	}
	var s [4]byte
	copy(s[:], m.ID)
	return s
}

// Returns scripts method on `to` to return the given outputs.
func (r *Reader) Returns(to common.Address, a abi.ABI, method string, outs ...interface{}) *Reader {
	data, err := a.Methods[method].Outputs.Pack(outs...)
	if err != nil {
		panic(fmt.Sprintf("chaintest: pack %s outputs: %v", method, err))
	}
	return r.Handle(to, a, method, func([]interface{}) ([]byte, error) { return data, nil })
}

// Fails scripts method on `to` to fail with msg.
func (r *Reader) Fails(to common.Address, a abi.ABI, method, msg string) *Reader {
	return r.Handle(to, a, method, func([]interface{}) ([]byte, error) { return nil, errors.New(msg) })
}

// Handle scripts method with a custom handler; it returns raw output.
func (r *Reader) Handle(to common.Address, a abi.ABI, method string, h func(args []interface{}) ([]byte, error)) *Reader {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[key{to, selector(a, method)}] = h
	return r
}

// Gas scripts eth_estimateGas for method on `to`.
func (r *Reader) Gas(to common.Address, a abi.ABI, method string, gas uint64) *Reader {
	return r.GasFunc(to, a, method, func(ethereum.CallMsg) (uint64, error) { return gas, nil })
}

func (r *Reader) GasFails(to common.Address, a abi.ABI, method, msg string) *Reader {
	return r.GasFunc(to, a, method, func(ethereum.CallMsg) (uint64, error) { return 0, errors.New(msg) })
}

func (r *Reader) GasFunc(to common.Address, a abi.ABI, method string, fn func(ethereum.CallMsg) (uint64, error)) *Reader {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gas[key{to, selector(a, method)}] = fn
	return r
}

func (r *Reader) Balance(account common.Address, wei *big.Int) *Reader {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[account] = wei
	return r
}

// IO reports the total number of chain interactions observed.
func (r *Reader) IO() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.CallCount + r.GasCount + r.BalanceCount + r.FeeCount
}

func (r *Reader) lookup(msg ethereum.CallMsg) (key, []byte, error) {
	if msg.To == nil || len(msg.Data) < 4 {
		return key{}, nil, errors.New("chaintest: malformed call")
	}
	var k key
	k.to = *msg.To
	copy(k.sel[:], msg.Data[:4])
	return k, msg.Data[4:], nil
}

func (r *Reader) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k, _, err := r.lookup(msg)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.CallCount++
	h, ok := r.calls[k]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("chaintest: unexpected call to %s selector %x", k.to.Hex(), k.sel)
	}
	return h(decodeArgs(msg.Data))
}

func (r *Reader) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	k, _, err := r.lookup(msg)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	r.GasCount++
	r.GasMsgs = append(r.GasMsgs, msg)
	fn, ok := r.gas[k]
	r.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("chaintest: unexpected estimateGas to %s selector %x", k.to.Hex(), k.sel)
	}
	return fn(msg)
}

func (r *Reader) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.BalanceCount++
	if b, ok := r.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (r *Reader) FeeData(ctx context.Context) (chain.FeeData, error) {
	if err := ctx.Err(); err != nil {
		return chain.FeeData{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FeeCount++
	return r.Fee, r.FeeErr
}

// decodeArgs hands the raw call data to the handler; use Inputs to unpack it.
func decodeArgs(data []byte) []interface{} {
	return []interface{}{bytes.Clone(data)}
}

// Inputs unpacks the raw call data a Handle callback receives.
func Inputs(a abi.ABI, method string, args []interface{}) []interface{} {
	raw := args[0].([]byte)
	vals, err := a.Methods[method].Inputs.Unpack(raw[4:])
	if err != nil {
		panic(fmt.Sprintf("chaintest: unpack %s inputs: %v", method, err))
	}
	return vals
}

// Pack packs method outputs for Handle callbacks.
func Pack(a abi.ABI, method string, outs ...interface{}) []byte {
	data, err := a.Methods[method].Outputs.Pack(outs...)
	if err != nil {
		panic(fmt.Sprintf("chaintest: pack %s outputs: %v", method, err))
	}
	return data
}
