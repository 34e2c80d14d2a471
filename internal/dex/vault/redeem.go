package vault

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/you/swap-estimator/internal/chain"
	"github.com/you/swap-estimator/internal/dex/core"
	"github.com/you/swap-estimator/internal/registry"
	"github.com/you/swap-estimator/internal/types"
)

// basketDecimals - корзина суммируется в 18 знаках, как и MIX-токен.
const basketDecimals = 18

// Redeem quotes burning the product token for the vault's asset basket.
// Withdrawals need no allowance.
func (e *Estimator) Redeem(ctx context.Context, v core.Venue, req types.SwapRequest) core.Estimate {
	if est, ok := core.Gate(v, req); !ok {
		return est
	}
	if req.From.Address == nil {
		return core.Failure(v.ID, v.Contract, req, types.ErrUnsupported)
	}
	vault := v.Contract.Address
	from := *req.From.Address

	var (
		fee     chain.FeeData
		fromDec uint8
		feeBps  *big.Int
		balance *big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		fee, err = e.r.FeeData(gctx)
		return err
	})
	g.Go(func() (err error) {
		fromDec, err = chain.Decimals(gctx, e.r, from)
		return err
	})
	g.Go(func() (err error) {
		feeBps, err = chain.CallBig(gctx, e.r, vault, v.Contract.ABI, "redeemFeeBps")
		return err
	})
	g.Go(func() (err error) {
		balance, err = chain.HolderBalance(gctx, e.r, req.From, req.Address)
		return err
	})
	if err := g.Wait(); err != nil {
		return e.fail(v, req, "read", err)
	}

	fromWei := chain.ToWei(req.Amount, fromDec)
	if balance.Cmp(fromWei) < 0 {
		return core.Failure(v.ID, v.Contract, req, types.ErrNotEnoughBalance)
	}

	breakdown, total, err := e.basket(ctx, v, fromWei)
	if err != nil {
		return e.fail(v, req, "basket", err)
	}

	minimum := chain.ApplySlippage(fromWei, req.Settings.Tolerance)
	gas, err := chain.EstimateCall(ctx, e.r, req.Address, vault, nil, v.Contract.ABI, "redeem", fromWei, minimum)
	if err != nil {
		return e.fail(v, req, "redeem", err)
	}

	return core.Success(v.ID, v.Contract, req, core.Quote{
		ReceiveAmount:        total,
		ReceiveDecimals:      basketDecimals,
		MinimumAmount:        minimum,
		GasLimit:             gas,
		FeeData:              fee,
		HasProvidedAllowance: true,
		Breakdown:            breakdown,
		RedeemFeeBps:         feeBps,
		Prepare: &core.PrepareParams{
			Address:      vault,
			ABI:          v.Contract.ABI,
			FunctionName: "redeem",
			Args:         []interface{}{fromWei, minimum},
			ChainID:      e.p.ChainID,
		},
	})
}

// basket zips calculateRedeemOutputs with getAllAssets and sums the payout in 18 decimals.
func (e *Estimator) basket(ctx context.Context, v core.Venue, fromWei *big.Int) ([]core.Split, *big.Int, error) {
	var (
		outputs []*big.Int
		assets  []common.Address
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		outs, err := chain.Call(gctx, e.r, v.Contract.Address, v.Contract.ABI, "calculateRedeemOutputs", fromWei)
		if err != nil {
			return err
		}
		vals, ok := outs[0].([]*big.Int)
		if !ok {
			return fmt.Errorf("decode calculateRedeemOutputs: unexpected type %T", outs[0])
		}
		outputs = vals
		return nil
	})
	g.Go(func() error {
		outs, err := chain.Call(gctx, e.r, v.Contract.Address, v.Contract.ABI, "getAllAssets")
		if err != nil {
			return err
		}
		vals, ok := outs[0].([]common.Address)
		if !ok {
			return fmt.Errorf("decode getAllAssets: unexpected type %T", outs[0])
		}
		assets = vals
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if len(outputs) != len(assets) {
		return nil, nil, fmt.Errorf("redeem outputs: %d amounts for %d assets", len(outputs), len(assets))
	}

	total := new(big.Int)
	splits := make([]core.Split, len(assets))
	for i, asset := range assets {
		s := core.Split{Asset: asset, Amount: new(big.Int).Set(outputs[i])}
		if tok, ok := registry.TokenByAddress(asset); ok {
			s.Symbol, s.Decimals = tok.Symbol, tok.Decimals
		} else {
			dec, err := chain.Decimals(ctx, e.r, asset)
			if err != nil {
				return nil, nil, err
			}
			s.Symbol, s.Decimals = asset.Hex(), dec
		}
		splits[i] = s
		total.Add(total, scale(s.Amount, s.Decimals, basketDecimals))
	}
	return splits, total, nil
}

func scale(x *big.Int, from, to uint8) *big.Int {
	switch {
	case from == to:
		return new(big.Int).Set(x)
	case from < to:
		return new(big.Int).Mul(x, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(to-from)), nil))
	default:
		return new(big.Int).Quo(x, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(from-to)), nil))
	}
}
