// Package adapters routes a venue to its estimator over the closed VenueID set.
package adapters

import (
	"context"

	"go.uber.org/zap"

	"github.com/you/swap-estimator/internal/chain"
	"github.com/you/swap-estimator/internal/config"
	"github.com/you/swap-estimator/internal/dex/core"
	"github.com/you/swap-estimator/internal/dex/curve"
	"github.com/you/swap-estimator/internal/dex/stub"
	"github.com/you/swap-estimator/internal/dex/vault"
	"github.com/you/swap-estimator/internal/dex/wrapper"
	"github.com/you/swap-estimator/internal/dex/zapper"
	"github.com/you/swap-estimator/internal/types"
)

type Dispatcher struct {
	vault   *vault.Estimator
	zapper  *zapper.Estimator
	curve   *curve.Estimator
	wrapper *wrapper.Estimator
}

func New(r chain.Reader, cfg *config.Config, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		vault:   vault.New(r, vault.ParamsFromConfig(cfg), log.Named("vault")),
		zapper:  zapper.New(r, cfg.Chain.ChainID, log.Named("zapper")),
		curve:   curve.New(r, curve.ParamsFromConfig(cfg), log.Named("curve")),
		wrapper: wrapper.New(r, cfg.Chain.ChainID, log.Named("wrapper")),
	}
}

var _ core.Estimator = (*Dispatcher)(nil)

func (d *Dispatcher) Estimate(ctx context.Context, v core.Venue, req types.SwapRequest) core.Estimate {
	switch v.ID {
	case core.VenueVault:
		// vault: MINT → mint, всё остальное → redeem (предикат отсекает лишнее)
		if req.Mode == types.ModeMint {
			return d.vault.Mint(ctx, v, req)
		}
		return d.vault.Redeem(ctx, v, req)
	case core.VenueZapper:
		return d.zapper.Estimate(ctx, v, req)
	case core.VenueCurve:
		return d.curve.Estimate(ctx, v, req)
	case core.VenueWrapper:
		return d.wrapper.Estimate(ctx, v, req)
	case core.VenueFlipper, core.VenueUniswapV2, core.VenueUniswapV3, core.VenueSushiswap:
		return stub.Estimate(ctx, v, req)
	}
	return core.Failure(v.ID, v.Contract, req, types.ErrUnknown)
}
