// Package curve quotes swaps through the OUSD metapool and the OETH/ETH pool,
// resolving Curve's registry exchange and factory through the address provider.
package curve

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/you/swap-estimator/internal/chain"
	"github.com/you/swap-estimator/internal/config"
	"github.com/you/swap-estimator/internal/dex/core"
	"github.com/you/swap-estimator/internal/registry"
	"github.com/you/swap-estimator/internal/types"
)

// Curve marks ETH in coin lists with this placeholder, not the zero address;
// get_coins and get_exchange_amount both expect it.
var ethPlaceholder = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

type Params struct {
	ChainID        int64
	RatioThreshold decimal.Decimal
	ApproveGas     uint64
}

func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		ChainID:        cfg.Chain.ChainID,
		RatioThreshold: decimal.NewFromFloat(cfg.Estimator.SwapRatioThreshold),
		ApproveGas:     cfg.Estimator.CurveApproveGas,
	}
}

// coinAddr: нативный ETH в Curve - синтетический адрес-плейсхолдер.
func coinAddr(t types.Token) common.Address {
	if t.IsNative() {
		return ethPlaceholder
	}
	return t.Addr()
}

type pool struct {
	contract    *core.Contract
	exchangeFn  string
	coinsMethod string
}

type Estimator struct {
	r   chain.Reader
	p   Params
	log *zap.Logger
}

func New(r chain.Reader, p Params, log *zap.Logger) *Estimator {
	return &Estimator{r: r, p: p, log: log}
}

// pickPool: OUSD идёт через метапул (underlying coins), OETH - через ETH/OETH пул.
func pickPool(from, to types.Token) (pool, bool) {
	switch {
	case from.Symbol == "OUSD" || to.Symbol == "OUSD":
		c, ok := registry.GetContract(registry.CurveOUSDMetaPool)
		return pool{contract: c, exchangeFn: "exchange_underlying", coinsMethod: "get_underlying_coins"}, ok
	case from.Symbol == "OETH" || to.Symbol == "OETH":
		c, ok := registry.GetContract(registry.CurveOETHPool)
		return pool{contract: c, exchangeFn: "exchange", coinsMethod: "get_coins"}, ok
	}
	return pool{}, false
}

func (e *Estimator) fail(id core.VenueID, c *core.Contract, req types.SwapRequest, op string, err error) core.Estimate {
	kind := core.Classify(err)
	e.log.Debug("curve estimate failed", zap.String("op", op), zap.String("kind", string(kind)), zap.Error(err))
	return core.Failure(id, c, req, kind)
}

func (e *Estimator) Estimate(ctx context.Context, v core.Venue, req types.SwapRequest) core.Estimate {
	if est, ok := core.Gate(v, req); !ok {
		return est
	}
	if req.From.IsMix() || req.To.IsMix() {
		return core.Failure(v.ID, v.Contract, req, types.ErrUnsupported)
	}
	p, ok := pickPool(req.From, req.To)
	if !ok {
		return core.Failure(v.ID, v.Contract, req, types.ErrNoLiquidityPool)
	}
	poolAddr := p.contract.Address
	fromAddr, toAddr := coinAddr(req.From), coinAddr(req.To)

	var (
		fee      chain.FeeData
		fromDec  uint8 = 18
		toDec    uint8 = 18
		exchange common.Address
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		fee, err = e.r.FeeData(gctx)
		return err
	})
	if !req.From.IsNative() {
		g.Go(func() (err error) {
			fromDec, err = chain.Decimals(gctx, e.r, fromAddr)
			return err
		})
	}
	if !req.To.IsNative() {
		g.Go(func() (err error) {
			toDec, err = chain.Decimals(gctx, e.r, toAddr)
			return err
		})
	}
	g.Go(func() (err error) {
		exchange, err = chain.CallAddress(gctx, e.r, v.Contract.Address, v.Contract.ABI, "get_address", big.NewInt(registry.CurveRegistryExchangeID))
		return err
	})
	if err := g.Wait(); err != nil {
		return e.fail(v.ID, v.Contract, req, "read", err)
	}

	fromWei := chain.ToWei(req.Amount, fromDec)
	receive, err := chain.CallBig(ctx, e.r, exchange, registry.CurveRegistryExchangeABI, "get_exchange_amount", poolAddr, fromAddr, toAddr, fromWei)
	if err != nil {
		return e.fail(v.ID, p.contract, req, "get_exchange_amount", err)
	}

	// sanity guard against manipulated pools; runs before any allowance or gas work
	if !e.ratioOK(fromWei, fromDec, receive, toDec) {
		e.log.Debug("curve swap ratio rejected",
			zap.String("in", fromWei.String()),
			zap.String("out", receive.String()))
		return core.Failure(v.ID, p.contract, req, types.ErrBadSwapRatio)
	}

	q := core.Quote{
		ReceiveAmount:   receive,
		ReceiveDecimals: toDec,
		MinimumAmount:   chain.ApplySlippage(receive, req.Settings.Tolerance),
		FeeData:         fee,
	}

	if req.From.IsNative() {
		balance, err := chain.HolderBalance(ctx, e.r, req.From, req.Address)
		if err != nil {
			return e.fail(v.ID, p.contract, req, "balance", err)
		}
		if fromWei.Cmp(balance) > 0 {
			return core.Failure(v.ID, p.contract, req, types.ErrNotEnoughBalance)
		}
	} else {
		st, err := chain.ReadERC20(ctx, e.r, fromAddr, req.Address, poolAddr)
		if err != nil {
			return e.fail(v.ID, p.contract, req, "allowance", err)
		}
		balance := st.Balance
		if req.From.Balance != nil {
			balance = req.From.Balance
		}
		if balance.Cmp(fromWei) < 0 {
			return core.Failure(v.ID, p.contract, req, types.ErrNotEnoughBalance)
		}
		if st.Allowance == nil || st.Allowance.Cmp(fromWei) < 0 {
			approve, err := chain.EstimateApprove(ctx, e.r, fromAddr, req.Address, poolAddr, fromWei)
			if err != nil {
				return e.fail(v.ID, p.contract, req, "approve", err)
			}
			q.GasLimit = e.p.ApproveGas + approve
			q.Approval = core.ApproveCall(fromAddr, poolAddr, fromWei, e.p.ChainID)
			return core.Success(v.ID, p.contract, req, q)
		}
	}

	i, j, err := e.indices(ctx, v, p, fromAddr, toAddr)
	if err != nil {
		return e.fail(v.ID, p.contract, req, "coins", err)
	}
	if i < 0 || j < 0 {
		return core.Failure(v.ID, p.contract, req, types.ErrNoLiquidityPool)
	}

	var value *big.Int
	if req.From.IsNative() {
		value = fromWei
	}
	args := []interface{}{big.NewInt(int64(i)), big.NewInt(int64(j)), fromWei, q.MinimumAmount}
	gas, err := chain.EstimateCall(ctx, e.r, req.Address, poolAddr, value, p.contract.ABI, p.exchangeFn, args...)
	if err != nil {
		return e.fail(v.ID, p.contract, req, p.exchangeFn, err)
	}

	q.GasLimit = gas
	q.HasProvidedAllowance = true
	q.Prepare = &core.PrepareParams{
		Address:      poolAddr,
		ABI:          p.contract.ABI,
		FunctionName: p.exchangeFn,
		Args:         args,
		ChainID:      e.p.ChainID,
	}
	if value != nil {
		q.Prepare.Value = new(big.Int).Set(value)
	}
	return core.Success(v.ID, p.contract, req, q)
}

// ratioOK: in/out, both in human units, must not exceed the threshold. A zero quote fails.
func (e *Estimator) ratioOK(in *big.Int, inDec uint8, out *big.Int, outDec uint8) bool {
	if out == nil || out.Sign() <= 0 {
		return false
	}
	ratio := chain.FromWei(in, inDec).Div(chain.FromWei(out, outDec))
	return ratio.LessThanOrEqual(e.p.RatioThreshold)
}

// indices finds each side in the pool's coin list.
func (e *Estimator) indices(ctx context.Context, v core.Venue, p pool, from, to common.Address) (int, int, error) {
	factory, err := chain.CallAddress(ctx, e.r, v.Contract.Address, v.Contract.ABI, "get_address", big.NewInt(registry.CurveFactoryID))
	if err != nil {
		return -1, -1, err
	}
	outs, err := chain.Call(ctx, e.r, factory, registry.CurveFactoryABI, p.coinsMethod, p.contract.Address)
	if err != nil {
		return -1, -1, err
	}
	var coins []common.Address
	switch c := outs[0].(type) {
	case [8]common.Address:
		coins = c[:]
	case [4]common.Address:
		coins = c[:]
	case []common.Address:
		coins = c
	default:
		return -1, -1, fmt.Errorf("decode %s: unexpected type %T", p.coinsMethod, outs[0])
	}
	return indexOf(coins, from), indexOf(coins, to), nil
}

func indexOf(coins []common.Address, a common.Address) int {
	for i, c := range coins {
		if c == a {
			return i
		}
	}
	return -1
}
