package adapters

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/you/swap-estimator/internal/chain/chaintest"
	"github.com/you/swap-estimator/internal/config"
	"github.com/you/swap-estimator/internal/dex/core"
	"github.com/you/swap-estimator/internal/registry"
	"github.com/you/swap-estimator/internal/types"
)

func TestDispatcher_Routes(t *testing.T) {
	cfg := &config.Config{}
	cfg.Chain.ChainID = 1
	r := chaintest.New()
	d := New(r, cfg, zap.NewNop())

	req := types.SwapRequest{
		Mode:   types.ModeMint,
		From:   registry.MustToken("DAI"),
		To:     registry.MustToken("OUSD"),
		Amount: decimal.NewFromInt(1),
	}
	flipper := registry.MustContract(registry.Flipper)
	for _, id := range []core.VenueID{core.VenueFlipper, core.VenueUniswapV2, core.VenueUniswapV3, core.VenueSushiswap} {
		kind, _ := d.Estimate(context.Background(), core.Venue{ID: id, Contract: flipper}, req).Err()
		assert.Equal(t, types.ErrUnimplemented, kind, id)
	}

	// без контракта любой эстиматор отвечает UNKNOWN без обращений к сети
	for _, id := range core.AllVenues {
		est := d.Estimate(context.Background(), core.Venue{ID: id}, req)
		kind, _ := est.Err()
		assert.Equal(t, types.ErrUnknown, kind, id)
		assert.Equal(t, id, est.Venue)
	}
	assert.Equal(t, 0, r.IO())

	kind, _ := d.Estimate(context.Background(), core.Venue{ID: "balancer", Contract: flipper}, req).Err()
	assert.Equal(t, types.ErrUnknown, kind)
}
