package pricefeed

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/you/swap-estimator/internal/chain"
	"github.com/you/swap-estimator/internal/config"
	"github.com/you/swap-estimator/internal/connectors/cex/mexc"
	"github.com/you/swap-estimator/internal/dex/univ3"
	"github.com/you/swap-estimator/internal/registry"
)

// Feed is the configured price pair plus the background stream, if any.
type Feed struct {
	Pair
	fallback *Fallback
	stream   *Stream
}

// Run drives the websocket source when one is configured.
func (f *Feed) Run(ctx context.Context) {
	if f.stream != nil {
		f.stream.Run(ctx)
	}
}

func (f *Feed) Ready() bool { return f.fallback.Ready() }

// FromConfig собирает цепочку источников ETH/USD: price.source первым, затем price.fallbacks.
// Для OUSD актив стоит $1, а ETH/USD идёт только на газ.
func FromConfig(cfg *config.Config, r chain.Reader, log *zap.Logger) (*Feed, error) {
	f := &Feed{}
	names := append([]string{cfg.Price.Source}, cfg.Price.Fallbacks...)
	var sources []Source
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "chainlink":
			c, ok := registry.GetContract(registry.ChainlinkETHUSD)
			if !ok {
				return nil, fmt.Errorf("%w: %s", registry.ErrUnknownContract, registry.ChainlinkETHUSD)
			}
			sources = append(sources, NewChainlink(r, c.Address, cfg.PriceMaxAge()))
		case "mexc":
			sources = append(sources, NewCEX(mexc.NewClient(cfg.Price.MEXC.RestURL, log), cfg.Price.MEXC.Symbol))
		case "stream":
			if f.stream == nil {
				f.stream = NewStream(cfg.Price.Stream.WsURL, cfg.Price.Stream.Symbol, cfg.PriceMaxAge(), log)
			}
			sources = append(sources, f.stream)
		case "univ3":
			spot, err := poolSpot(cfg, r, log)
			if err != nil {
				return nil, err
			}
			sources = append(sources, NewPool(spot))
		case "static":
			sources = append(sources, Static{USD: decimal.NewFromFloat(cfg.Price.StaticUSD)})
		case "":
		default:
			return nil, fmt.Errorf("unknown price source %q", n)
		}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no price sources configured")
	}
	f.fallback = NewFallback(cfg.PriceCacheTTL(), log, sources...)

	native := Source(f.fallback)
	f.Pair = Pair{Asset: native, Native: native}
	if cfg.Product == "ousd" {
		f.Pair.Asset = Static{USD: decimal.NewFromInt(1)}
	}
	return f, nil
}

func poolSpot(cfg *config.Config, r chain.Reader, log *zap.Logger) (*univ3.Spot, error) {
	factory, ok := registry.GetContract(registry.UniswapV3Factory)
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrUnknownContract, registry.UniswapV3Factory)
	}
	weth, err := registry.LookupToken("WETH")
	if err != nil {
		return nil, err
	}
	quote, err := registry.LookupToken(cfg.Price.UniV3.Quote)
	if err != nil {
		return nil, err
	}
	return univ3.NewSpot(r, factory.Address, weth, quote, cfg.Price.UniV3.FeeTiers, log.Named("univ3"))
}
