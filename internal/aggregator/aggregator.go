// Package aggregator fans a request out to every venue of a product and ranks the results.
package aggregator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/you/swap-estimator/internal/dex/core"
	imetrics "github.com/you/swap-estimator/internal/metrics"
	"github.com/you/swap-estimator/internal/types"
)

type Aggregator struct {
	est          core.Estimator
	venues       core.Set
	venueTimeout time.Duration
	log          *zap.Logger
}

func New(est core.Estimator, venues core.Set, venueTimeout time.Duration, log *zap.Logger) *Aggregator {
	return &Aggregator{est: est, venues: venues, venueTimeout: venueTimeout, log: log}
}

func (a *Aggregator) Venues() core.Set { return a.venues }

// Run quotes every venue concurrently and returns estimates in venue order.
// A slow, failing or panicking venue never affects its siblings.
func (a *Aggregator) Run(ctx context.Context, req types.SwapRequest) []core.Estimate {
	venues := a.venues.All()
	out := make([]core.Estimate, len(venues))

	var g errgroup.Group
	for i, v := range venues {
		g.Go(func() error {
			out[i] = a.one(ctx, v, req)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Estimate is Run followed by Rank.
func (a *Aggregator) Estimate(ctx context.Context, req types.SwapRequest, p Prices) Result {
	return Rank(a.Run(ctx, req), p)
}

func (a *Aggregator) one(ctx context.Context, v core.Venue, req types.SwapRequest) (est core.Estimate) {
	start := time.Now()
	vctx := ctx
	if a.venueTimeout > 0 {
		var cancel context.CancelFunc
		vctx, cancel = context.WithTimeout(ctx, a.venueTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			a.log.Error("venue estimator panicked", zap.String("venue", string(v.ID)), zap.Any("panic", r))
			est = core.Failure(v.ID, v.Contract, req, types.ErrUnknown)
		}
		imetrics.VenueLatency.WithLabelValues(string(v.ID)).Observe(time.Since(start).Seconds())
		imetrics.VenueResults.WithLabelValues(string(v.ID), resultLabel(est)).Inc()
	}()

	est = a.est.Estimate(vctx, v, req)
	if est.Venue == "" {
		est.Venue = v.ID
	}
	if kind, failed := est.Err(); failed && kind != types.ErrUnsupported {
		a.log.Debug("venue failed",
			zap.String("venue", string(v.ID)),
			zap.String("kind", string(kind)),
			zap.Duration("took", time.Since(start)))
	}
	return est
}

func resultLabel(e core.Estimate) string {
	if kind, failed := e.Err(); failed {
		return string(kind)
	}
	return "OK"
}

// String is for logs.
func (r Result) String() string {
	return fmt.Sprintf("ranked=%d failures=%d", len(r.Ranked), len(r.Failures))
}
