package curve

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/swap-estimator/internal/chain"
	"github.com/you/swap-estimator/internal/chain/chaintest"
	"github.com/you/swap-estimator/internal/dex/core"
	"github.com/you/swap-estimator/internal/registry"
	"github.com/you/swap-estimator/internal/types"
)

var (
	owner    = common.HexToAddress("0x00000000000000000000000000000000000c0de0")
	exchange = common.HexToAddress("0x99a58482BD75cbab83b27EC03CA68fF489b5788f")
	factory  = common.HexToAddress("0xB9fC157394Af804a3578134A6585C0dc9cc990d4")
)

func units(n int64, dec int) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(dec)), nil))
}

func params() Params {
	return Params{ChainID: 1, RatioThreshold: decimal.RequireFromString("1.2"), ApproveGas: 350000}
}

func venue() core.Venue {
	return core.Venue{ID: core.VenueCurve, Contract: registry.MustContract(registry.CurveAddressProvider)}
}

func swap(from, to, amount string) types.SwapRequest {
	return types.SwapRequest{
		Mode:     types.ModeMint,
		From:     registry.MustToken(from),
		To:       registry.MustToken(to),
		Amount:   decimal.RequireFromString(amount),
		Address:  owner,
		Settings: types.Settings{Tolerance: decimal.RequireFromString("0.01")},
	}
}

// provider scripts get_address(2) → exchange and get_address(3) → factory.
func provider(r *chaintest.Reader, v core.Venue) *chaintest.Reader {
	return r.Handle(v.Contract.Address, v.Contract.ABI, "get_address", func(args []interface{}) ([]byte, error) {
		id := chaintest.Inputs(v.Contract.ABI, "get_address", args)[0].(*big.Int)
		if id.Int64() == registry.CurveFactoryID {
			return chaintest.Pack(v.Contract.ABI, "get_address", factory), nil
		}
		return chaintest.Pack(v.Contract.ABI, "get_address", exchange), nil
	})
}

func TestBadSwapRatio_NoGasEstimate(t *testing.T) {
	v := venue()
	ousd, dai := registry.MustToken("OUSD"), registry.MustToken("DAI")
	r := provider(chaintest.New(), v).
		Returns(*ousd.Address, chain.ERC20ABI, "decimals", uint8(18)).
		Returns(*dai.Address, chain.ERC20ABI, "decimals", uint8(18)).
		Returns(exchange, registry.CurveRegistryExchangeABI, "get_exchange_amount", units(1000, 18))

	est := New(r, params(), zap.NewNop()).Estimate(context.Background(), v, swap("OUSD", "DAI", "1300"))
	kind, failed := est.Err()
	require.True(t, failed)
	assert.Equal(t, types.ErrBadSwapRatio, kind)
	assert.Equal(t, registry.CurveOUSDMetaPool, est.Contract.Name)
	assert.Equal(t, 0, r.GasCount)
}

func TestZeroQuoteIsBadRatio(t *testing.T) {
	v := venue()
	ousd, dai := registry.MustToken("OUSD"), registry.MustToken("DAI")
	r := provider(chaintest.New(), v).
		Returns(*ousd.Address, chain.ERC20ABI, "decimals", uint8(18)).
		Returns(*dai.Address, chain.ERC20ABI, "decimals", uint8(18)).
		Returns(exchange, registry.CurveRegistryExchangeABI, "get_exchange_amount", big.NewInt(0))

	kind, _ := New(r, params(), zap.NewNop()).Estimate(context.Background(), v, swap("OUSD", "DAI", "10")).Err()
	assert.Equal(t, types.ErrBadSwapRatio, kind)
}

func TestOUSDToUSDT_Approved(t *testing.T) {
	v := venue()
	ousd, usdt := registry.MustToken("OUSD"), registry.MustToken("USDT")
	dai, usdc := registry.MustToken("DAI"), registry.MustToken("USDC")
	pool := registry.MustContract(registry.CurveOUSDMetaPool)

	var coins [8]common.Address
	coins[0], coins[1], coins[2], coins[3] = *ousd.Address, *dai.Address, *usdc.Address, *usdt.Address

	r := provider(chaintest.New(), v).
		Returns(*ousd.Address, chain.ERC20ABI, "decimals", uint8(18)).
		Returns(*ousd.Address, chain.ERC20ABI, "balanceOf", units(500, 18)).
		Returns(*ousd.Address, chain.ERC20ABI, "allowance", units(500, 18)).
		Returns(*usdt.Address, chain.ERC20ABI, "decimals", uint8(6)).
		Returns(exchange, registry.CurveRegistryExchangeABI, "get_exchange_amount", big.NewInt(99_900_000)).
		Returns(factory, registry.CurveFactoryABI, "get_underlying_coins", coins).
		Gas(pool.Address, pool.ABI, "exchange_underlying", 300000)

	est := New(r, params(), zap.NewNop()).Estimate(context.Background(), v, swap("OUSD", "USDT", "100"))
	q, ok := est.Quote()
	require.True(t, ok, "%v", est)
	assert.Equal(t, pool, est.Contract)
	assert.Equal(t, "99900000", q.ReceiveAmount.String())
	assert.Equal(t, "98901000", q.MinimumAmount.String())
	assert.Equal(t, uint8(6), q.ReceiveDecimals)
	assert.Equal(t, uint64(300000), q.GasLimit)

	require.NotNil(t, q.Prepare)
	assert.Equal(t, "exchange_underlying", q.Prepare.FunctionName)
	assert.Equal(t, int64(0), q.Prepare.Args[0].(*big.Int).Int64())
	assert.Equal(t, int64(3), q.Prepare.Args[1].(*big.Int).Int64())
	assert.Nil(t, q.Prepare.Value)
}

func TestOUSD_Unapproved(t *testing.T) {
	v := venue()
	ousd, dai := registry.MustToken("OUSD"), registry.MustToken("DAI")
	r := provider(chaintest.New(), v).
		Returns(*ousd.Address, chain.ERC20ABI, "decimals", uint8(18)).
		Returns(*ousd.Address, chain.ERC20ABI, "balanceOf", units(500, 18)).
		Returns(*ousd.Address, chain.ERC20ABI, "allowance", big.NewInt(0)).
		Returns(*dai.Address, chain.ERC20ABI, "decimals", uint8(18)).
		Returns(exchange, registry.CurveRegistryExchangeABI, "get_exchange_amount", units(99, 18)).
		Gas(*ousd.Address, chain.ERC20ABI, "approve", 50000)

	q, ok := New(r, params(), zap.NewNop()).Estimate(context.Background(), v, swap("OUSD", "DAI", "100")).Quote()
	require.True(t, ok)
	assert.False(t, q.HasProvidedAllowance)
	assert.Equal(t, uint64(400000), q.GasLimit)
	require.NotNil(t, q.Approval)
	assert.Equal(t, registry.MustContract(registry.CurveOUSDMetaPool).Address, q.Approval.Args[0])
}

func TestETHToOETH(t *testing.T) {
	v := venue()
	oeth := registry.MustToken("OETH")
	pool := registry.MustContract(registry.CurveOETHPool)
	coins := [4]common.Address{ethPlaceholder, *oeth.Address}

	r := provider(chaintest.New(), v).
		Balance(owner, units(5, 18)).
		Returns(*oeth.Address, chain.ERC20ABI, "decimals", uint8(18)).
		Returns(exchange, registry.CurveRegistryExchangeABI, "get_exchange_amount", units(2, 18)).
		Returns(factory, registry.CurveFactoryABI, "get_coins", coins).
		Gas(pool.Address, pool.ABI, "exchange", 180000)

	q, ok := New(r, params(), zap.NewNop()).Estimate(context.Background(), v, swap("ETH", "OETH", "2")).Quote()
	require.True(t, ok)
	assert.Equal(t, "exchange", q.Prepare.FunctionName)
	assert.Equal(t, int64(0), q.Prepare.Args[0].(*big.Int).Int64())
	assert.Equal(t, int64(1), q.Prepare.Args[1].(*big.Int).Int64())
	assert.Equal(t, units(2, 18).String(), q.Prepare.Value.String())
	require.Len(t, r.GasMsgs, 1)
	assert.Equal(t, units(2, 18).String(), r.GasMsgs[0].Value.String())
}

func TestETH_NotEnoughBalance(t *testing.T) {
	v := venue()
	oeth := registry.MustToken("OETH")
	r := provider(chaintest.New(), v).
		Balance(owner, units(1, 18)).
		Returns(*oeth.Address, chain.ERC20ABI, "decimals", uint8(18)).
		Returns(exchange, registry.CurveRegistryExchangeABI, "get_exchange_amount", units(2, 18))

	kind, _ := New(r, params(), zap.NewNop()).Estimate(context.Background(), v, swap("ETH", "OETH", "2")).Err()
	assert.Equal(t, types.ErrNotEnoughBalance, kind)
	assert.Equal(t, 0, r.GasCount)
}

func TestQuoteRevertIsClassified(t *testing.T) {
	v := venue()
	ousd, dai := registry.MustToken("OUSD"), registry.MustToken("DAI")
	r := provider(chaintest.New(), v).
		Returns(*ousd.Address, chain.ERC20ABI, "decimals", uint8(18)).
		Returns(*dai.Address, chain.ERC20ABI, "decimals", uint8(18)).
		Fails(exchange, registry.CurveRegistryExchangeABI, "get_exchange_amount", "execution reverted: No available market")

	est := New(r, params(), zap.NewNop()).Estimate(context.Background(), v, swap("OUSD", "DAI", "10"))
	kind, _ := est.Err()
	assert.Equal(t, types.ErrNoLiquidityPool, kind)
	assert.Equal(t, registry.CurveOUSDMetaPool, est.Contract.Name)
}

func TestNoPoolForPair(t *testing.T) {
	r := chaintest.New()
	kind, _ := New(r, params(), zap.NewNop()).Estimate(context.Background(), venue(), swap("DAI", "USDC", "10")).Err()
	assert.Equal(t, types.ErrNoLiquidityPool, kind)
	assert.Equal(t, 0, r.IO())
}

func TestCoinNotInPool(t *testing.T) {
	v := venue()
	ousd, dai := registry.MustToken("OUSD"), registry.MustToken("DAI")
	var coins [8]common.Address
	coins[0] = *ousd.Address

	r := provider(chaintest.New(), v).
		Returns(*ousd.Address, chain.ERC20ABI, "decimals", uint8(18)).
		Returns(*ousd.Address, chain.ERC20ABI, "balanceOf", units(500, 18)).
		Returns(*ousd.Address, chain.ERC20ABI, "allowance", units(500, 18)).
		Returns(*dai.Address, chain.ERC20ABI, "decimals", uint8(18)).
		Returns(exchange, registry.CurveRegistryExchangeABI, "get_exchange_amount", units(99, 18)).
		Returns(factory, registry.CurveFactoryABI, "get_underlying_coins", coins)

	kind, _ := New(r, params(), zap.NewNop()).Estimate(context.Background(), v, swap("OUSD", "DAI", "100")).Err()
	assert.Equal(t, types.ErrNoLiquidityPool, kind)
	assert.Equal(t, 0, r.GasCount)
}
