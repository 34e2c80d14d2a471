package vault

import (
	"context"
	"math/big"

	"golang.org/x/sync/errgroup"

	"github.com/you/swap-estimator/internal/chain"
	"github.com/you/swap-estimator/internal/dex/core"
	"github.com/you/swap-estimator/internal/types"
)

// Mint quotes depositing req.From into the vault for the product token.
func (e *Estimator) Mint(ctx context.Context, v core.Venue, req types.SwapRequest) core.Estimate {
	if est, ok := core.Gate(v, req); !ok {
		return est
	}
	if req.From.Address == nil {
		return core.Failure(v.ID, v.Contract, req, types.ErrUnsupported)
	}
	to := req.To
	if to.Address == nil && v.Token != nil {
		to = *v.Token
	}
	if to.Address == nil {
		return core.Failure(v.ID, v.Contract, req, types.ErrUnsupported)
	}

	vault := v.Contract.Address
	from := *req.From.Address

	var (
		fee     chain.FeeData
		st      chain.ERC20State
		toDec   uint8
		rate    *big.Int
		balance *big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		fee, err = e.r.FeeData(gctx)
		return err
	})
	g.Go(func() (err error) {
		st, err = chain.ReadERC20(gctx, e.r, from, req.Address, vault)
		return err
	})
	g.Go(func() (err error) {
		toDec, err = chain.Decimals(gctx, e.r, *to.Address)
		return err
	})
	if req.From.Balance != nil {
		balance = new(big.Int).Set(req.From.Balance)
	}
	for _, m := range priceMethods {
		if !v.Contract.HasMethod(m) {
			continue
		}
		method := m
		g.Go(func() (err error) {
			rate, err = chain.CallBig(gctx, e.r, vault, v.Contract.ABI, method, from)
			return err
		})
		break
	}
	if err := g.Wait(); err != nil {
		return e.fail(v, req, "read", err)
	}
	if balance == nil {
		balance = st.Balance
	}

	fromWei := chain.ToWei(req.Amount, st.Decimals)
	if balance == nil || balance.Cmp(fromWei) < 0 {
		return core.Failure(v.ID, v.Contract, req, types.ErrNotEnoughBalance)
	}

	// rate is 1e18-scaled; no oracle means 1:1
	out := req.Amount
	if rate != nil {
		out = req.Amount.Mul(chain.FromWei(rate, 18))
	}
	q := core.Quote{
		ReceiveAmount:   chain.ToWei(out, toDec),
		ReceiveDecimals: toDec,
		MinimumAmount:   chain.ApplySlippage(fromWei, req.Settings.Tolerance),
		FeeData:         fee,
	}

	if st.Allowance == nil || st.Allowance.Cmp(fromWei) < 0 {
		gas, err := e.unapprovedGas(ctx, v, req, fromWei)
		if err != nil {
			return e.fail(v, req, "approve", err)
		}
		q.GasLimit = gas
		q.Approval = core.ApproveCall(from, vault, fromWei, e.p.ChainID)
		return core.Success(v.ID, v.Contract, req, q)
	}

	gas, err := chain.EstimateCall(ctx, e.r, req.Address, vault, nil, v.Contract.ABI, "mint", from, fromWei, q.MinimumAmount)
	if err != nil {
		return e.fail(v, req, "mint", err)
	}
	q.GasLimit = gas
	q.HasProvidedAllowance = true
	q.Prepare = &core.PrepareParams{
		Address:      vault,
		ABI:          v.Contract.ABI,
		FunctionName: "mint",
		Args:         []interface{}{from, fromWei, q.MinimumAmount},
		ChainID:      e.p.ChainID,
	}
	return core.Success(v.ID, v.Contract, req, q)
}

// unapprovedGas: фиксированный тир по размеру сделки + газ approve.
// Большие минты триггерят rebase или allocate и стоят сильно дороже.
func (e *Estimator) unapprovedGas(ctx context.Context, v core.Venue, req types.SwapRequest, fromWei *big.Int) (uint64, error) {
	var rebase, allocate *big.Int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rebase, err = chain.CallBig(gctx, e.r, v.Contract.Address, v.Contract.ABI, "rebaseThreshold")
		return err
	})
	g.Go(func() (err error) {
		allocate, err = chain.CallBig(gctx, e.r, v.Contract.Address, v.Contract.ABI, "autoAllocateThreshold")
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	tier := e.p.BaseGas
	switch {
	case fromWei.Cmp(allocate) > 0:
		tier = e.p.AllocateGas
	case fromWei.Cmp(rebase) > 0:
		tier = e.p.RebaseGas
	}

	approve, err := chain.EstimateApprove(ctx, e.r, *req.From.Address, req.Address, v.Contract.Address, fromWei)
	if err != nil {
		return 0, err
	}
	return tier + approve, nil
}

