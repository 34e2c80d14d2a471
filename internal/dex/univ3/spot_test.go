package univ3

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/swap-estimator/internal/chain/chaintest"
	"github.com/you/swap-estimator/internal/registry"
)

var (
	factory = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	pool    = common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640")
)

// sqrtX96 returns sqrt(raw)*2^96, raw being token1 base units per token0 base unit.
func sqrtX96(raw float64) *big.Int {
	f := new(big.Float).SetPrec(256).SetFloat64(raw)
	f.Sqrt(f)
	f.Mul(f, new(big.Float).SetPrec(256).SetMantExp(big.NewFloat(1), 96))
	out, _ := f.Int(nil)
	return out
}

func scriptPool(r *chaintest.Reader, t0, t1 common.Address, sqrt *big.Int) *chaintest.Reader {
	return r.
		Returns(pool, PoolABI, "token0", t0).
		Returns(pool, PoolABI, "token1", t1).
		Returns(pool, PoolABI, "slot0", sqrt, big.NewInt(-200000), uint16(1), uint16(1), uint16(1), uint8(0), true)
}

func TestPriceFromSqrt(t *testing.T) {
	one := new(big.Int).Lsh(big.NewInt(1), 96)
	p, err := PriceFromSqrt(one, 18, 18)
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.NewFromInt(1)), p.String())

	_, err = PriceFromSqrt(big.NewInt(0), 18, 18)
	assert.Error(t, err)
}

func TestSpot_InvertedPoolAndCache(t *testing.T) {
	weth, usdc := registry.MustToken("WETH"), registry.MustToken("USDC")
	// USDC/WETH: token0 = USDC, 1 USDC = 0.0005 WETH → $2000
	r := chaintest.New().Returns(factory, FactoryABI, "getPool", pool)
	scriptPool(r, *usdc.Address, *weth.Address, sqrtX96(5e8))

	s, err := NewSpot(r, factory, weth, usdc, []uint32{500}, zap.NewNop())
	require.NoError(t, err)

	p, err := s.Price(context.Background())
	require.NoError(t, err)
	f, _ := p.Float64()
	assert.InDelta(t, 2000.0, f, 1e-6)

	_, err = s.Price(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, r.CallCount) // getPool only once
}

func TestSpot_FallsThroughMissingTier(t *testing.T) {
	weth, usdc := registry.MustToken("WETH"), registry.MustToken("USDC")
	r := chaintest.New().Handle(factory, FactoryABI, "getPool", func(args []interface{}) ([]byte, error) {
		fee := chaintest.Inputs(FactoryABI, "getPool", args)[2].(*big.Int)
		if fee.Int64() == 3000 {
			return chaintest.Pack(FactoryABI, "getPool", pool), nil
		}
		return chaintest.Pack(FactoryABI, "getPool", common.Address{}), nil
	})
	// WETH first: 1 WETH = 2500 USDC
	scriptPool(r, *weth.Address, *usdc.Address, sqrtX96(2500*1e-12))

	s, err := NewSpot(r, factory, weth, usdc, []uint32{500, 3000}, zap.NewNop())
	require.NoError(t, err)
	p, err := s.Price(context.Background())
	require.NoError(t, err)
	f, _ := p.Float64()
	assert.InDelta(t, 2500.0, f, 1e-6)
}

func TestSpot_Errors(t *testing.T) {
	weth, usdc := registry.MustToken("WETH"), registry.MustToken("USDC")
	_, err := NewSpot(chaintest.New(), factory, registry.MustToken("ETH"), usdc, nil, zap.NewNop())
	assert.Error(t, err)

	r := chaintest.New().Returns(factory, FactoryABI, "getPool", pool)
	scriptPool(r, *weth.Address, common.HexToAddress("0xdead"), sqrtX96(1))
	s, err := NewSpot(r, factory, weth, usdc, []uint32{500}, zap.NewNop())
	require.NoError(t, err)
	_, err = s.Price(context.Background())
	assert.ErrorContains(t, err, "mismatch")

	s, _ = NewSpot(chaintest.New().Returns(factory, FactoryABI, "getPool", common.Address{}), factory, weth, usdc, []uint32{500}, zap.NewNop())
	_, err = s.Price(context.Background())
	assert.ErrorIs(t, err, ErrNoPool)
}
