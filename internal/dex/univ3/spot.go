// Package univ3 reads spot prices from Uniswap V3 pools.
package univ3

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/you/swap-estimator/internal/chain"
	"github.com/you/swap-estimator/internal/types"
)

const factoryABI = `[
  {"inputs":[
     {"internalType":"address","name":"tokenA","type":"address"},
     {"internalType":"address","name":"tokenB","type":"address"},
     {"internalType":"uint24","name":"fee","type":"uint24"}],
   "name":"getPool","outputs":[{"internalType":"address","name":"pool","type":"address"}],
   "stateMutability":"view","type":"function"}
]`

// Минимальный ABI пула: slot0 и token0/token1.
const poolABI = `[
  {"inputs":[],"name":"slot0","outputs":[
     {"internalType":"uint160","name":"sqrtPriceX96","type":"uint160"},
     {"internalType":"int24","name":"tick","type":"int24"},
     {"internalType":"uint16","name":"observationIndex","type":"uint16"},
     {"internalType":"uint16","name":"observationCardinality","type":"uint16"},
     {"internalType":"uint16","name":"observationCardinalityNext","type":"uint16"},
     {"internalType":"uint8","name":"feeProtocol","type":"uint8"},
     {"internalType":"bool","name":"unlocked","type":"bool"}],
   "stateMutability":"view","type":"function"},
  {"inputs":[],"name":"token0","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"token1","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

var (
	FactoryABI = mustABI(factoryABI)
	PoolABI    = mustABI(poolABI)
)

func mustABI(s string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return a
}

var ErrNoPool = errors.New("no uniswap v3 pool")

// Spot prices one Base in Quote units from slot0, trying fee tiers in order.
type Spot struct {
	r       chain.Reader
	factory common.Address
	base    types.Token
	quote   types.Token
	tiers   []uint32
	log     *zap.Logger

	mu sync.Mutex
	// кэш адресов пулов по fee
	pools map[uint32]common.Address
}

func NewSpot(r chain.Reader, factory common.Address, base, quote types.Token, tiers []uint32, log *zap.Logger) (*Spot, error) {
	if base.Address == nil || quote.Address == nil {
		return nil, fmt.Errorf("univ3 spot needs ERC20 tokens, got %s/%s", base.Symbol, quote.Symbol)
	}
	if len(tiers) == 0 {
		tiers = []uint32{500, 3000}
	}
	return &Spot{
		r:       r,
		factory: factory,
		base:    base,
		quote:   quote,
		tiers:   tiers,
		log:     log,
		pools:   make(map[uint32]common.Address),
	}, nil
}

// Price returns the spot price of the first tier that has a readable pool.
func (s *Spot) Price(ctx context.Context) (decimal.Decimal, error) {
	var lastErr error
	for _, tier := range s.tiers {
		pool, err := s.pool(ctx, tier)
		if err != nil {
			lastErr = fmt.Errorf("getPool fee %d: %w", tier, err)
			continue
		}
		p, err := s.read(ctx, pool)
		if err != nil {
			lastErr = fmt.Errorf("slot0 fee %d: %w", tier, err)
			continue
		}
		return p, nil
	}
	if lastErr == nil {
		lastErr = ErrNoPool
	}
	return decimal.Zero, lastErr
}

func (s *Spot) pool(ctx context.Context, fee uint32) (common.Address, error) {
	s.mu.Lock()
	addr, ok := s.pools[fee]
	s.mu.Unlock()
	if ok {
		return addr, nil
	}

	pool, err := chain.CallAddress(ctx, s.r, s.factory, FactoryABI, "getPool", *s.base.Address, *s.quote.Address, big.NewInt(int64(fee)))
	if err != nil {
		return common.Address{}, err
	}
	if pool == (common.Address{}) {
		return common.Address{}, ErrNoPool
	}

	s.mu.Lock()
	s.pools[fee] = pool
	s.mu.Unlock()
	s.log.Info("univ3 pool", zap.Uint32("fee", fee), zap.String("pool", pool.Hex()))
	return pool, nil
}

func (s *Spot) read(ctx context.Context, pool common.Address) (decimal.Decimal, error) {
	t0, err := chain.CallAddress(ctx, s.r, pool, PoolABI, "token0")
	if err != nil {
		return decimal.Zero, err
	}
	t1, err := chain.CallAddress(ctx, s.r, pool, PoolABI, "token1")
	if err != nil {
		return decimal.Zero, err
	}
	outs, err := chain.Call(ctx, s.r, pool, PoolABI, "slot0")
	if err != nil {
		return decimal.Zero, err
	}
	sqrt, ok := outs[0].(*big.Int)
	if !ok {
		return decimal.Zero, fmt.Errorf("unexpected sqrtPriceX96 type %T", outs[0])
	}

	base, quote := *s.base.Address, *s.quote.Address
	switch {
	case t0 == base && t1 == quote:
		return PriceFromSqrt(sqrt, s.base.Decimals, s.quote.Decimals)
	case t0 == quote && t1 == base:
		inv, err := PriceFromSqrt(sqrt, s.quote.Decimals, s.base.Decimals)
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromInt(1).DivRound(inv, 18), nil
	}
	return decimal.Zero, fmt.Errorf("pool tokens mismatch (token0=%s token1=%s)", t0.Hex(), t1.Hex())
}

var q192 = new(big.Float).SetPrec(256).SetMantExp(big.NewFloat(1), 192)

// PriceFromSqrt turns sqrtPriceX96 into a human price of token0 in token1:
// (sqrt/2^96)^2 * 10^(dec0-dec1).
func PriceFromSqrt(sqrtPriceX96 *big.Int, dec0, dec1 uint8) (decimal.Decimal, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("bad sqrtPriceX96")
	}
	f := new(big.Float).SetPrec(256).SetInt(sqrtPriceX96)
	f.Mul(f, f)
	f.Quo(f, q192)
	p, err := decimal.NewFromString(f.Text('f', 36))
	if err != nil {
		return decimal.Zero, err
	}
	p = p.Shift(int32(dec0) - int32(dec1))
	if !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("zero price")
	}
	return p, nil
}
