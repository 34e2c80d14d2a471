package redisfeed

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/swap-estimator/internal/aggregator"
	"github.com/you/swap-estimator/internal/config"
	"github.com/you/swap-estimator/internal/dex/core"
	"github.com/you/swap-estimator/internal/orchestrator"
	"github.com/you/swap-estimator/internal/types"
)

func setup(t *testing.T) (*miniredis.Miniredis, *redis.Client, config.RedisConfig) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cfg := config.RedisConfig{
		Stream:    "estimate:stream",
		ActiveKey: "estimate:active",
		LatestNS:  "estimate:latest:",
		StreamMax: 2,
	}
	return mr, rdb, cfg
}

func output(session string, round uint64, at time.Time) orchestrator.Output {
	req := types.SwapRequest{Mode: types.ModeMint, Amount: decimal.NewFromInt(100)}
	best := core.Success(core.VenueCurve, nil, req, core.Quote{ReceiveAmount: big.NewInt(1e18), ReceiveDecimals: 18})
	res := aggregator.Result{
		Ranked:   []aggregator.Ranked{{Estimate: best, EffectivePrice: 1.0025}},
		Failures: []aggregator.Failure{{Venue: core.VenueVault, Error: types.ErrBelowPeg}},
	}
	return orchestrator.Output{
		SessionID: session,
		Round:     round,
		RequestID: "req-" + session,
		Input:     orchestrator.Input{Mode: types.ModeMint, Amount: "100"},
		Result:    &res,
		At:        at,
	}
}

func TestPublishAndLatest(t *testing.T) {
	_, rdb, cfg := setup(t)
	ctx := context.Background()
	pub := NewPublisher(rdb, cfg)
	con := NewConsumer(rdb, cfg, zap.NewNop())

	now := time.Now()
	require.NoError(t, pub.Publish(ctx, output("s1", 4, now)))

	rec, err := con.Latest(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), rec.Round)
	assert.Equal(t, "req-s1", rec.RequestID)
	assert.Equal(t, "curve", rec.BestVenue)
	assert.InDelta(t, 1.0025, rec.BestPrice, 1e-12)
	assert.Equal(t, now.UnixMilli(), rec.TsMs)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Payload, &payload))
	assert.Equal(t, "s1", payload["sessionId"])

	_, err = con.Latest(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEmptyRoundRecord(t *testing.T) {
	_, rdb, cfg := setup(t)
	ctx := context.Background()
	out := output("s2", 1, time.Now())
	out.Result = nil

	require.NoError(t, NewPublisher(rdb, cfg).Publish(ctx, out))
	rec, err := NewConsumer(rdb, cfg, zap.NewNop()).Latest(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, rec.BestVenue)
	assert.Empty(t, rec.Error)
}

func TestRecentSessionsAndTail(t *testing.T) {
	_, rdb, cfg := setup(t)
	ctx := context.Background()
	pub := NewPublisher(rdb, cfg)
	con := NewConsumer(rdb, cfg, zap.NewNop())

	base := time.Now().Add(-time.Minute)
	require.NoError(t, pub.Publish(ctx, output("old", 1, base)))
	require.NoError(t, pub.Publish(ctx, output("a", 1, base.Add(30*time.Second))))
	require.NoError(t, pub.Publish(ctx, output("b", 2, base.Add(40*time.Second))))

	ids, err := con.RecentSessions(ctx, base.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	// stream_max = 2
	tail, err := con.Tail(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, "b", tail[0].SessionID)
	assert.Equal(t, uint64(2), tail[0].Round)
	assert.Equal(t, "a", tail[1].SessionID)
}

func TestConsumeGroup(t *testing.T) {
	_, rdb, cfg := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, rdb.XGroupCreateMkStream(ctx, cfg.Stream, "ui", "0").Err())
	require.NoError(t, NewPublisher(rdb, cfg).Publish(ctx, output("s9", 3, time.Now())))

	out := make(chan Record, 1)
	done := make(chan error, 1)
	go func() { done <- NewConsumer(rdb, cfg, zap.NewNop()).Consume(ctx, "ui", "c1", out) }()

	select {
	case rec := <-out:
		assert.Equal(t, "s9", rec.SessionID)
		assert.Equal(t, "curve", rec.BestVenue)
	case <-time.After(3 * time.Second):
		t.Fatal("nothing consumed")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("consume did not stop")
	}
}

func TestSinkSwallowsErrors(t *testing.T) {
	mr, rdb, cfg := setup(t)
	mr.Close()
	sink := NewPublisher(rdb, cfg).Sink(100*time.Millisecond, zap.NewNop())
	assert.NotPanics(t, func() { sink(output("x", 1, time.Now())) })
}
