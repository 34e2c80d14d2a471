// Package wrapper quotes ERC-4626 wrap/unwrap between a rebasing token and its wrapped share.
package wrapper

import (
	"context"
	"math/big"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/you/swap-estimator/internal/chain"
	"github.com/you/swap-estimator/internal/dex/core"
	"github.com/you/swap-estimator/internal/types"
)

type Estimator struct {
	r       chain.Reader
	chainID int64
	log     *zap.Logger
}

func New(r chain.Reader, chainID int64, log *zap.Logger) *Estimator {
	return &Estimator{r: r, chainID: chainID, log: log}
}

func (e *Estimator) Estimate(ctx context.Context, v core.Venue, req types.SwapRequest) core.Estimate {
	if est, ok := core.Gate(v, req); !ok {
		return est
	}
	if req.From.Address == nil {
		return core.Failure(v.ID, v.Contract, req, types.ErrUnsupported)
	}
	switch req.Mode {
	case types.ModeWrap:
		return e.wrap(ctx, v, req)
	case types.ModeUnwrap:
		return e.unwrap(ctx, v, req)
	}
	return core.Failure(v.ID, v.Contract, req, types.ErrUnsupported)
}

func (e *Estimator) fail(v core.Venue, req types.SwapRequest, op string, err error) core.Estimate {
	kind := core.Classify(err)
	e.log.Debug("wrapper estimate failed", zap.String("op", op), zap.String("kind", string(kind)), zap.Error(err))
	return core.Failure(v.ID, v.Contract, req, kind)
}

func (e *Estimator) wrap(ctx context.Context, v core.Venue, req types.SwapRequest) core.Estimate {
	w := v.Contract.Address
	asset := *req.From.Address

	var (
		fee chain.FeeData
		st  chain.ERC20State
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		fee, err = e.r.FeeData(gctx)
		return err
	})
	g.Go(func() (err error) {
		st, err = chain.ReadERC20(gctx, e.r, asset, req.Address, w)
		return err
	})
	if err := g.Wait(); err != nil {
		return e.fail(v, req, "read", err)
	}

	assets := chain.ToWei(req.Amount, st.Decimals)
	balance := st.Balance
	if req.From.Balance != nil {
		balance = req.From.Balance
	}
	if balance.Cmp(assets) < 0 {
		return core.Failure(v.ID, v.Contract, req, types.ErrNotEnoughBalance)
	}

	shares, err := chain.CallBig(ctx, e.r, w, v.Contract.ABI, "previewDeposit", assets)
	if err != nil {
		return e.fail(v, req, "previewDeposit", err)
	}
	q := core.Quote{
		ReceiveAmount:   shares,
		ReceiveDecimals: st.Decimals,
		MinimumAmount:   chain.ApplySlippage(shares, req.Settings.Tolerance),
		FeeData:         fee,
	}

	if st.Allowance == nil || st.Allowance.Cmp(assets) < 0 {
		gas, err := chain.EstimateApprove(ctx, e.r, asset, req.Address, w, assets)
		if err != nil {
			return e.fail(v, req, "approve", err)
		}
		q.GasLimit = gas
		q.Approval = core.ApproveCall(asset, w, assets, e.chainID)
		return core.Success(v.ID, v.Contract, req, q)
	}

	gas, err := chain.EstimateCall(ctx, e.r, req.Address, w, nil, v.Contract.ABI, "deposit", assets, req.Address)
	if err != nil {
		return e.fail(v, req, "deposit", err)
	}
	q.GasLimit = gas
	q.HasProvidedAllowance = true
	q.Prepare = &core.PrepareParams{
		Address:      w,
		ABI:          v.Contract.ABI,
		FunctionName: "deposit",
		Args:         []interface{}{assets, req.Address},
		ChainID:      e.chainID,
	}
	return core.Success(v.ID, v.Contract, req, q)
}

// unwrap: redeem(shares, receiver, owner) от имени владельца, approve не нужен.
func (e *Estimator) unwrap(ctx context.Context, v core.Venue, req types.SwapRequest) core.Estimate {
	w := v.Contract.Address

	var (
		fee     chain.FeeData
		dec     uint8
		balance *big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		fee, err = e.r.FeeData(gctx)
		return err
	})
	g.Go(func() (err error) {
		dec, err = chain.Decimals(gctx, e.r, *req.From.Address)
		return err
	})
	g.Go(func() (err error) {
		balance, err = chain.HolderBalance(gctx, e.r, req.From, req.Address)
		return err
	})
	if err := g.Wait(); err != nil {
		return e.fail(v, req, "read", err)
	}

	shares := chain.ToWei(req.Amount, dec)
	if balance.Cmp(shares) < 0 {
		return core.Failure(v.ID, v.Contract, req, types.ErrNotEnoughBalance)
	}
	assets, err := chain.CallBig(ctx, e.r, w, v.Contract.ABI, "previewRedeem", shares)
	if err != nil {
		return e.fail(v, req, "previewRedeem", err)
	}
	gas, err := chain.EstimateCall(ctx, e.r, req.Address, w, nil, v.Contract.ABI, "redeem", shares, req.Address, req.Address)
	if err != nil {
		return e.fail(v, req, "redeem", err)
	}
	return core.Success(v.ID, v.Contract, req, core.Quote{
		ReceiveAmount:        assets,
		ReceiveDecimals:      dec,
		MinimumAmount:        chain.ApplySlippage(assets, req.Settings.Tolerance),
		GasLimit:             gas,
		FeeData:              fee,
		HasProvidedAllowance: true,
		Prepare: &core.PrepareParams{
			Address:      w,
			ABI:          v.Contract.ABI,
			FunctionName: "redeem",
			Args:         []interface{}{shares, req.Address, req.Address},
			ChainID:      e.chainID,
		},
	})
}
