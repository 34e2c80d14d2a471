package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/you/swap-estimator/internal/multicall"
	"github.com/you/swap-estimator/internal/types"
)

const erc20ABIJSON = `[
  {"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"symbol","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"address","name":"owner","type":"address"},{"internalType":"address","name":"spender","type":"address"}],"name":"allowance","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"address","name":"spender","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"approve","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

// ERC20ABI is shared by every token in the registry.
var ERC20ABI = mustABI(erc20ABIJSON)

func mustABI(s string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("bad abi: %v", err))
	}
	return a
}

// ERC20State - то, что эстиматоры читают про токен за один заход.
type ERC20State struct {
	Decimals  uint8
	Balance   *big.Int
	Allowance *big.Int // nil, если spender не задан
}

// ReadERC20 reads decimals, owner balance and owner→spender allowance.
// Uses one multicall when the reader supports batching.
func ReadERC20(ctx context.Context, r Reader, token, owner, spender common.Address) (ERC20State, error) {
	methods := []string{"decimals", "balanceOf"}
	args := [][]interface{}{nil, {owner}}
	if spender != (common.Address{}) {
		methods = append(methods, "allowance")
		args = append(args, []interface{}{owner, spender})
	}

	raws, err := callMany(ctx, r, token, ERC20ABI, methods, args)
	if err != nil {
		return ERC20State{}, err
	}

	var st ERC20State
	outs, err := unpack(ERC20ABI, "decimals", raws[0])
	if err != nil {
		return ERC20State{}, err
	}
	if st.Decimals, err = toUint8(outs[0]); err != nil {
		return ERC20State{}, err
	}
	if st.Balance, err = unpackBig("balanceOf", raws[1]); err != nil {
		return ERC20State{}, err
	}
	if len(raws) > 2 {
		if st.Allowance, err = unpackBig("allowance", raws[2]); err != nil {
			return ERC20State{}, err
		}
	}
	return st, nil
}

func Decimals(ctx context.Context, r Reader, token common.Address) (uint8, error) {
	outs, err := Call(ctx, r, token, ERC20ABI, "decimals")
	if err != nil {
		return 0, err
	}
	return toUint8(outs[0])
}

func BalanceOf(ctx context.Context, r Reader, token, owner common.Address) (*big.Int, error) {
	return CallBig(ctx, r, token, ERC20ABI, "balanceOf", owner)
}

// EstimateApprove - газ на approve(spender, amount) от имени owner.
func EstimateApprove(ctx context.Context, r Reader, token, owner, spender common.Address, amount *big.Int) (uint64, error) {
	return EstimateCall(ctx, r, owner, token, nil, ERC20ABI, "approve", spender, amount)
}

func callMany(ctx context.Context, r Reader, to common.Address, a abi.ABI, methods []string, args [][]interface{}) ([][]byte, error) {
	datas := make([][]byte, len(methods))
	for i, m := range methods {
		d, err := a.Pack(m, args[i]...)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", m, err)
		}
		datas[i] = d
	}

	if b, ok := r.(Batcher); ok {
		calls := make([]multicall.Call, len(datas))
		for i, d := range datas {
			calls[i] = multicall.Call{Target: to, CallData: d}
		}
		res, err := b.Batch(ctx, calls)
		if err != nil {
			return nil, err
		}
		out := make([][]byte, len(res))
		for i, rr := range res {
			if !rr.Success {
				return nil, revertError(methods[i], to, rr.Data)
			}
			out[i] = rr.Data
		}
		return out, nil
	}

	out := make([][]byte, len(datas))
	for i, d := range datas {
		raw, err := r.CallContract(ctx, ethereum.CallMsg{To: &to, Data: d})
		if err != nil {
			return nil, err
		}
		out[i] = raw
	}
	return out, nil
}

func unpackBig(method string, raw []byte) (*big.Int, error) {
	outs, err := unpack(ERC20ABI, method, raw)
	if err != nil {
		return nil, err
	}
	v, ok := outs[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("decode %s: unexpected type %T", method, outs[0])
	}
	return v, nil
}

func toUint8(v interface{}) (uint8, error) {
	switch x := v.(type) {
	case uint8:
		return x, nil
	case *big.Int:
		return uint8(x.Uint64()), nil
	default:
		return 0, fmt.Errorf("unexpected decimals type %T", v)
	}
}

// HolderBalance prefers the caller-supplied balance, then reads the chain:
// native balance for the native coin, balanceOf otherwise.
func HolderBalance(ctx context.Context, r Reader, t types.Token, owner common.Address) (*big.Int, error) {
	if t.Balance != nil {
		return new(big.Int).Set(t.Balance), nil
	}
	if t.IsNative() {
		return r.BalanceAt(ctx, owner)
	}
	if t.Address == nil {
		return nil, fmt.Errorf("token %s has no address", t.Symbol)
	}
	return BalanceOf(ctx, r, *t.Address, owner)
}

// revertError keeps the Error(string) reason of a failed sub-call so the classifier can see it.
func revertError(method string, to common.Address, data []byte) error {
	if reason, err := abi.UnpackRevert(data); err == nil {
		return fmt.Errorf("%s on %s: execution reverted: %s", method, to.Hex(), reason)
	}
	return fmt.Errorf("%s on %s: execution reverted", method, to.Hex())
}
