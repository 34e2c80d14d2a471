package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/you/swap-estimator/internal/connectors/cex/stream"
)

// Stream keeps the last bookTicker mid from a websocket feed.
type Stream struct {
	url    string
	symbol string
	maxAge time.Duration
	log    *zap.Logger
	now    func() time.Time

	mu   sync.RWMutex
	last stream.Ticker
}

func NewStream(url, symbol string, maxAge time.Duration, log *zap.Logger) *Stream {
	return &Stream{url: url, symbol: symbol, maxAge: maxAge, log: log, now: time.Now}
}

func (*Stream) Name() string { return "stream" }

func (s *Stream) PriceUSD(context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	t := s.last
	s.mu.RUnlock()
	if t.TS.IsZero() {
		return decimal.Zero, ErrNoPrice
	}
	if s.maxAge > 0 && s.now().Sub(t.TS) > s.maxAge {
		return decimal.Zero, fmt.Errorf("stream price stale since %s", t.TS.Format(time.RFC3339))
	}
	return t.Mid(), nil
}

func (s *Stream) store(t stream.Ticker) {
	s.mu.Lock()
	s.last = t
	s.mu.Unlock()
}

// Run держит подписку, переподключаясь с экспоненциальной задержкой, пока жив ctx.
func (s *Stream) Run(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 30 * time.Second

	for ctx.Err() == nil {
		err := s.once(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			bo.Reset()
		}
		d := bo.NextBackOff()
		s.log.Warn("price stream disconnected", zap.Error(err), zap.Duration("retry_in", d))
		select {
		case <-ctx.Done():
			return
		case <-time.After(d):
		}
	}
}

var errStreamClosed = errors.New("stream closed")

func (s *Stream) once(ctx context.Context) error {
	ws := stream.NewWS(s.url)
	ch, err := ws.SubscribeBookTicker(ctx, []string{s.symbol})
	if err != nil {
		return err
	}
	s.log.Info("price stream subscribed", zap.String("symbol", s.symbol))
	got := false
	for t := range ch {
		got = true
		s.store(t)
	}
	if got {
		return nil
	}
	return errStreamClosed
}
