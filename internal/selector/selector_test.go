package selector

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/swap-estimator/internal/aggregator"
	"github.com/you/swap-estimator/internal/dex/core"
	"github.com/you/swap-estimator/internal/types"
)

func success(id core.VenueID, price float64) aggregator.Ranked {
	e := core.Success(id, nil, types.SwapRequest{}, core.Quote{ReceiveAmount: big.NewInt(1)})
	return aggregator.Ranked{Estimate: e, EffectivePrice: price}
}

func unsupported(id core.VenueID) aggregator.Ranked {
	return aggregator.Ranked{
		Estimate:       core.Failure(id, nil, types.SwapRequest{}, types.ErrUnsupported),
		EffectivePrice: aggregator.SentinelUnsupported,
	}
}

type vetoVenue core.VenueID

func (v vetoVenue) Allow(r aggregator.Ranked) (types.ErrorKind, bool) {
	if r.Estimate.Venue == core.VenueID(v) {
		return types.ErrPriceTooHigh, false
	}
	return "", true
}

func TestPick_Best(t *testing.T) {
	res := aggregator.Result{Ranked: []aggregator.Ranked{
		success(core.VenueCurve, 1.001),
		success(core.VenueVault, 1.01),
		unsupported(core.VenueZapper),
	}}
	c := Pick(res, nil)
	require.True(t, c.OK())
	assert.Equal(t, core.VenueCurve, c.Best.Estimate.Venue)
	assert.Empty(t, c.Error)
}

func TestPick_GuardSkipsToNext(t *testing.T) {
	res := aggregator.Result{Ranked: []aggregator.Ranked{
		success(core.VenueCurve, 1.001),
		success(core.VenueVault, 1.01),
	}}
	c := Pick(res, vetoVenue(core.VenueCurve))
	require.True(t, c.OK())
	assert.Equal(t, core.VenueVault, c.Best.Estimate.Venue)
}

func TestPick_LowestSeverityError(t *testing.T) {
	res := aggregator.Result{
		Ranked: []aggregator.Ranked{unsupported(core.VenueZapper)},
		Failures: []aggregator.Failure{
			{Venue: core.VenueCurve, Error: types.ErrNoLiquidityPool},
			{Venue: core.VenueVault, Error: types.ErrNotEnoughBalance},
			{Venue: core.VenueFlipper, Error: types.ErrUnimplemented},
		},
	}
	c := Pick(res, nil)
	assert.False(t, c.OK())
	assert.Equal(t, types.ErrNotEnoughBalance, c.Error)
}

func TestPick_VetoCountsAsError(t *testing.T) {
	res := aggregator.Result{
		Ranked:   []aggregator.Ranked{success(core.VenueVault, 1.5)},
		Failures: []aggregator.Failure{{Venue: core.VenueCurve, Error: types.ErrNoLiquidityPool}},
	}
	c := Pick(res, vetoVenue(core.VenueVault))
	assert.Equal(t, types.ErrPriceTooHigh, c.Error)
}

func TestPick_OnlyUnsupportedOrEmpty(t *testing.T) {
	c := Pick(aggregator.Result{Ranked: []aggregator.Ranked{unsupported(core.VenueZapper)}}, nil)
	assert.Equal(t, types.ErrUnsupported, c.Error)

	assert.Equal(t, types.ErrUnknown, Pick(aggregator.Result{}, nil).Error)
}

func TestPick_ZeroReceiveNotExecutable(t *testing.T) {
	res := aggregator.Result{Ranked: []aggregator.Ranked{
		success(core.VenueCurve, aggregator.SentinelZeroReceive),
		unsupported(core.VenueZapper),
	}}
	c := Pick(res, nil)
	assert.False(t, c.OK())
	assert.Equal(t, types.ErrNotEnoughLiquidity, c.Error)

	_, found := res.Best()
	assert.False(t, found)
}
