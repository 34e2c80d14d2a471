// Package pricefeed supplies the USD prices a round is ranked with.
package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/you/swap-estimator/internal/aggregator"
	"github.com/you/swap-estimator/internal/chain"
	"github.com/you/swap-estimator/internal/connectors/cex/mexc"
	"github.com/you/swap-estimator/internal/dex/univ3"
	imetrics "github.com/you/swap-estimator/internal/metrics"
	"github.com/you/swap-estimator/internal/registry"
)

var ErrNoPrice = errors.New("no price available")

type Source interface {
	Name() string
	PriceUSD(ctx context.Context) (decimal.Decimal, error)
}

// Static - фиксированная цена (OUSD = $1).
type Static struct{ USD decimal.Decimal }

func (Static) Name() string { return "static" }

func (s Static) PriceUSD(context.Context) (decimal.Decimal, error) {
	if !s.USD.IsPositive() {
		return decimal.Zero, ErrNoPrice
	}
	return s.USD, nil
}

// Chainlink reads an aggregator feed through latestRoundData.
type Chainlink struct {
	r      chain.Reader
	feed   common.Address
	maxAge time.Duration
	now    func() time.Time
}

func NewChainlink(r chain.Reader, feed common.Address, maxAge time.Duration) *Chainlink {
	return &Chainlink{r: r, feed: feed, maxAge: maxAge, now: time.Now}
}

func (*Chainlink) Name() string { return "chainlink" }

func (c *Chainlink) PriceUSD(ctx context.Context) (decimal.Decimal, error) {
	a := registry.ChainlinkFeedABI
	outs, err := chain.Call(ctx, c.r, c.feed, a, "latestRoundData")
	if err != nil {
		return decimal.Zero, fmt.Errorf("latestRoundData: %w", err)
	}
	if len(outs) < 4 {
		return decimal.Zero, fmt.Errorf("latestRoundData: %d outputs", len(outs))
	}
	answer, ok1 := outs[1].(*big.Int)
	updated, ok2 := outs[3].(*big.Int)
	if !ok1 || !ok2 {
		return decimal.Zero, fmt.Errorf("latestRoundData: unexpected types %T %T", outs[1], outs[3])
	}
	if answer.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("latestRoundData: non-positive answer %s", answer)
	}
	if c.maxAge > 0 && c.now().Sub(time.Unix(updated.Int64(), 0)) > c.maxAge {
		return decimal.Zero, fmt.Errorf("latestRoundData: stale, updated at %s", updated)
	}

	douts, err := chain.Call(ctx, c.r, c.feed, a, "decimals")
	if err != nil {
		return decimal.Zero, fmt.Errorf("feed decimals: %w", err)
	}
	dec, ok := douts[0].(uint8)
	if !ok {
		return decimal.Zero, fmt.Errorf("feed decimals: unexpected type %T", douts[0])
	}
	return chain.FromWei(answer, dec), nil
}

// CEX takes the book midpoint from the MEXC REST API.
type CEX struct {
	c      *mexc.Client
	symbol string
}

func NewCEX(c *mexc.Client, symbol string) *CEX { return &CEX{c: c, symbol: symbol} }

func (*CEX) Name() string { return "mexc" }

func (s *CEX) PriceUSD(ctx context.Context) (decimal.Decimal, error) {
	return s.c.Mid(ctx, s.symbol)
}

// Pool - спот WETH/стейбл из Uniswap V3; стейбл считаем за $1.
type Pool struct {
	spot *univ3.Spot
}

func NewPool(s *univ3.Spot) *Pool { return &Pool{spot: s} }

func (*Pool) Name() string { return "univ3" }

func (p *Pool) PriceUSD(ctx context.Context) (decimal.Decimal, error) {
	return p.spot.Price(ctx)
}

// Fallback asks its sources in order and caches the first answer for ttl.
// Concurrent misses share one fetch; the cache lock is not held across it.
type Fallback struct {
	sources []Source
	ttl     time.Duration
	log     *zap.Logger
	now     func() time.Time
	flight  singleflight.Group

	mu     sync.Mutex
	last   decimal.Decimal
	from   string
	expiry time.Time
}

func NewFallback(ttl time.Duration, log *zap.Logger, sources ...Source) *Fallback {
	return &Fallback{sources: sources, ttl: ttl, log: log, now: time.Now}
}

func (f *Fallback) Name() string { return "fallback" }

func (f *Fallback) PriceUSD(ctx context.Context) (decimal.Decimal, error) {
	if p, ok := f.cached(); ok {
		return p, nil
	}
	v, err, _ := f.flight.Do("price", func() (interface{}, error) {
		return f.fetch(ctx)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return v.(decimal.Decimal), nil
}

func (f *Fallback) cached() (decimal.Decimal, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.from != "" && f.now().Before(f.expiry) {
		return f.last, true
	}
	return decimal.Zero, false
}

func (f *Fallback) fetch(ctx context.Context) (decimal.Decimal, error) {
	var errs []error
	for _, s := range f.sources {
		p, err := s.PriceUSD(ctx)
		if err != nil {
			imetrics.PriceErrors.WithLabelValues(s.Name()).Inc()
			f.log.Warn("price source failed", zap.String("source", s.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		pf, _ := p.Float64()
		imetrics.PriceUSD.WithLabelValues(s.Name()).Set(pf)

		f.mu.Lock()
		f.last, f.from, f.expiry = p, s.Name(), f.now().Add(f.ttl)
		f.mu.Unlock()
		return p, nil
	}
	if len(errs) == 0 {
		return decimal.Zero, ErrNoPrice
	}
	return decimal.Zero, errors.Join(append([]error{ErrNoPrice}, errs...)...)
}

// Ready reports whether a price has been obtained at least once.
func (f *Fallback) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.from != ""
}

// Pair gives the two prices ranking needs: the traded asset and the native coin for gas.
type Pair struct {
	Asset  Source
	Native Source
}

func (p Pair) Prices(ctx context.Context) (aggregator.Prices, error) {
	asset, err := p.Asset.PriceUSD(ctx)
	if err != nil {
		return aggregator.Prices{}, fmt.Errorf("asset price: %w", err)
	}
	out := aggregator.Prices{}
	out.USD, _ = asset.Float64()
	if p.Native == nil || p.Native == p.Asset {
		out.NativeUSD = out.USD
		return out, nil
	}
	native, err := p.Native.PriceUSD(ctx)
	if err != nil {
		return aggregator.Prices{}, fmt.Errorf("native price: %w", err)
	}
	out.NativeUSD, _ = native.Float64()
	return out, nil
}
