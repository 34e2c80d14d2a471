// Package zapper quotes OETH mints through the zapper: native ETH deposits
// and sfrxETH deposits.
package zapper

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
	if req.From.IsNative() {
		return e.native(ctx, v, req)
	}
	return e.erc20(ctx, v, req)
}

func (e *Estimator) fail(v core.Venue, req types.SwapRequest, op string, err error) core.Estimate {
	kind := core.Classify(err)
	e.log.Debug("zapper estimate failed", zap.String("op", op), zap.String("kind", string(kind)), zap.Error(err))
	return core.Failure(v.ID, v.Contract, req, kind)
}

// native: payable deposit(), 1:1 в OETH.
func (e *Estimator) native(ctx context.Context, v core.Venue, req types.SwapRequest) core.Estimate {
	value := chain.ToWei(req.Amount, 18)

	var (
		fee     chain.FeeData
		balance *big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		fee, err = e.r.FeeData(gctx)
		return err
	})
	g.Go(func() (err error) {
		balance, err = chain.HolderBalance(gctx, e.r, req.From, req.Address)
		return err
	})
	if err := g.Wait(); err != nil {
		return e.fail(v, req, "read", err)
	}
	if value.Cmp(balance) > 0 {
		return core.Failure(v.ID, v.Contract, req, types.ErrNotEnoughBalance)
	}

	gas, err := chain.EstimateCall(ctx, e.r, req.Address, v.Contract.Address, value, v.Contract.ABI, "deposit")
	if err != nil {
		return e.fail(v, req, "deposit", err)
	}
	return core.Success(v.ID, v.Contract, req, core.Quote{
		ReceiveAmount:        value,
		ReceiveDecimals:      18,
		GasLimit:             gas,
		FeeData:              fee,
		HasProvidedAllowance: true,
		Prepare: &core.PrepareParams{
			Address:      v.Contract.Address,
			ABI:          v.Contract.ABI,
			FunctionName: "deposit",
			ChainID:      e.chainID,
			Value:        new(big.Int).Set(value),
		},
	})
}

// erc20: depositSFRXETH(amount, minOETH). The zapper pays out of its own OETH float,
// so it must hold at least the deposit.
func (e *Estimator) erc20(ctx context.Context, v core.Venue, req types.SwapRequest) core.Estimate {
	to := req.To
	if to.Address == nil && v.Token != nil {
		to = *v.Token
	}
	if req.From.Address == nil || to.Address == nil {
		return core.Failure(v.ID, v.Contract, req, types.ErrUnsupported)
	}
	zapper := v.Contract.Address
	from := *req.From.Address

	var (
		fee     chain.FeeData
		st      chain.ERC20State
		float   *big.Int
		balance *big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		fee, err = e.r.FeeData(gctx)
		return err
	})
	g.Go(func() (err error) {
		st, err = chain.ReadERC20(gctx, e.r, from, req.Address, zapper)
		return err
	})
	g.Go(func() (err error) {
		float, err = chain.BalanceOf(gctx, e.r, *to.Address, zapper)
		return err
	})
	if err := g.Wait(); err != nil {
		return e.fail(v, req, "read", err)
	}
	balance = st.Balance
	if req.From.Balance != nil {
		balance = req.From.Balance
	}

	fromWei := chain.ToWei(req.Amount, st.Decimals)
	if balance.Cmp(fromWei) < 0 {
		return core.Failure(v.ID, v.Contract, req, types.ErrNotEnoughBalance)
	}
	if float.Cmp(fromWei) < 0 {
		return core.Failure(v.ID, v.Contract, req, types.ErrNotEnoughContractFunds)
	}

	q := core.Quote{
		ReceiveAmount:   fromWei,
		ReceiveDecimals: st.Decimals,
		FeeData:         fee,
	}
	if st.Allowance == nil || st.Allowance.Cmp(fromWei) < 0 {
		gas, err := chain.EstimateApprove(ctx, e.r, from, req.Address, zapper, fromWei)
		if err != nil {
			return e.fail(v, req, "approve", err)
		}
		q.GasLimit = gas
		q.Approval = core.ApproveCall(from, zapper, fromWei, e.chainID)
		return core.Success(v.ID, v.Contract, req, q)
	}

	q.MinimumAmount = chain.ApplySlippage(fromWei, req.Settings.Tolerance)
	gas, err := chain.EstimateCall(ctx, e.r, req.Address, zapper, nil, v.Contract.ABI, "depositSFRXETH", fromWei, q.MinimumAmount)
	if err != nil {
		return e.fail(v, req, "depositSFRXETH", err)
	}
	q.GasLimit = gas
	q.HasProvidedAllowance = true
	q.Prepare = &core.PrepareParams{
		Address:      zapper,
		ABI:          v.Contract.ABI,
		FunctionName: "depositSFRXETH",
		Args:         []interface{}{fromWei, q.MinimumAmount},
		ChainID:      e.chainID,
	}
	return core.Success(v.ID, v.Contract, req, q)
}
