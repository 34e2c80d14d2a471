// Package orchestrator turns a stream of input changes into debounced, round-versioned
// estimation rounds and delivers only the newest result.
package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/you/swap-estimator/internal/aggregator"
	imetrics "github.com/you/swap-estimator/internal/metrics"
	"github.com/you/swap-estimator/internal/types"
)

// Runner is what a round calls; *aggregator.Aggregator implements it.
type Runner interface {
	Estimate(ctx context.Context, req types.SwapRequest, p aggregator.Prices) aggregator.Result
}

// Input - всё, от чего зависит раунд. Amount - сырой ввод пользователя.
type Input struct {
	Mode     types.Mode        `json:"mode"`
	From     types.Token       `json:"fromToken"`
	To       types.Token       `json:"toToken"`
	Amount   string            `json:"amount"`
	Address  common.Address    `json:"address"`
	Settings types.Settings    `json:"settings"`
	Prices   aggregator.Prices `json:"prices"`
}

// Request builds the swap request for a parsed amount.
func (in Input) Request(amount decimal.Decimal) types.SwapRequest {
	return types.SwapRequest{
		Mode:     in.Mode,
		From:     in.From,
		To:       in.To,
		Amount:   amount,
		Address:  in.Address,
		Settings: in.Settings,
	}
}

// ParseAmount accepts only finite positive decimals.
func ParseAmount(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

// Output of one delivered round. Result == nil means "no estimate" (non-positive amount).
type Output struct {
	SessionID string             `json:"sessionId"`
	Round     uint64             `json:"round"`
	RequestID string             `json:"requestId"`
	Input     Input              `json:"input"`
	Result    *aggregator.Result `json:"result"`
	At        time.Time          `json:"at"`
}

type Callback func(Output)

type Options struct {
	Debounce     time.Duration
	RoundTimeout time.Duration
}

type Session struct {
	id   string
	run  Runner
	opts Options
	cb   Callback
	log  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	input    Input
	hasInput bool
	round    uint64
	timer    *time.Timer
	loading  bool
	closed   bool
	latest   *Output
	lastUsed time.Time

	// deliverMu orders deliveries; lastDelivered only grows.
	deliverMu     sync.Mutex
	lastDelivered uint64
}

func NewSession(id string, run Runner, opts Options, cb Callback, log *zap.Logger) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:       id,
		run:      run,
		opts:     opts,
		cb:       cb,
		log:      log.With(zap.String("session", id)),
		ctx:      ctx,
		cancel:   cancel,
		lastUsed: time.Now(),
	}
}

func (s *Session) ID() string { return s.id }

// Update replaces the input and (re)schedules a round after the debounce delay.
// A pending round that has not started yet is dropped.
func (s *Session) Update(in Input) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	s.round++
	r := s.round
	s.input, s.hasInput = in, true
	s.loading = true
	s.lastUsed = time.Now()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.opts.Debounce, func() { s.execute(r, in) })
	return r
}

// Refresh runs a new round for the current input right away.
func (s *Session) Refresh() (uint64, bool) {
	s.mu.Lock()
	if s.closed || !s.hasInput {
		s.mu.Unlock()
		return 0, false
	}
	s.round++
	r := s.round
	in := s.input
	s.loading = true
	s.lastUsed = time.Now()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	go s.execute(r, in)
	return r, true
}

func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Latest returns the last delivered output.
func (s *Session) Latest() (Output, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return Output{}, false
	}
	return *s.latest, true
}

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.loading = false
	if s.timer != nil {
		s.timer.Stop()
	}
	s.cancel()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

func (s *Session) isLatest(r uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && r == s.round
}

func (s *Session) finish(r uint64) {
	s.mu.Lock()
	if r == s.round {
		s.loading = false
	}
	s.mu.Unlock()
}

func (s *Session) execute(r uint64, in Input) {
	start := time.Now()
	reqID := uuid.NewString()
	log := s.log.With(zap.Uint64("round", r), zap.String("request_id", reqID))

	defer func() {
		if p := recover(); p != nil {
			log.Error("estimation round failed", zap.Any("panic", p))
			imetrics.Rounds.WithLabelValues("failed").Inc()
		}
		s.finish(r)
	}()

	if !s.isLatest(r) {
		imetrics.Rounds.WithLabelValues("stale").Inc()
		return
	}

	amount, ok := ParseAmount(in.Amount)
	if !ok {
		s.deliver(Output{SessionID: s.id, Round: r, RequestID: reqID, Input: in, At: time.Now()}, "empty")
		return
	}

	ctx := s.ctx
	if s.opts.RoundTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RoundTimeout)
		defer cancel()
	}
	res := s.run.Estimate(ctx, in.Request(amount), in.Prices)
	imetrics.RoundLatency.Observe(time.Since(start).Seconds())
	log.Debug("round done", zap.Stringer("result", res), zap.Duration("took", time.Since(start)))

	s.deliver(Output{SessionID: s.id, Round: r, RequestID: reqID, Input: in, Result: &res, At: time.Now()}, "delivered")
}

// deliver publishes out only if its round is still the newest and newer than anything
// delivered before; otherwise it is dropped silently.
func (s *Session) deliver(out Output, outcome string) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	if !s.isLatest(out.Round) || out.Round <= s.lastDelivered {
		imetrics.Rounds.WithLabelValues("stale").Inc()
		return
	}
	s.lastDelivered = out.Round

	s.mu.Lock()
	cp := out
	s.latest = &cp
	s.mu.Unlock()

	imetrics.Rounds.WithLabelValues(outcome).Inc()
	if out.Result != nil {
		if best, ok := out.Result.Best(); ok {
			imetrics.BestEffectivePrice.Set(best.EffectivePrice)
			imetrics.GasUSD.Set(best.GasCostUSD)
		}
	}
	if s.cb != nil {
		s.cb(out)
	}
}
