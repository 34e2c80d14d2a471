// Package api exposes one-shot estimates and live estimation sessions over HTTP.
package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/you/swap-estimator/internal/aggregator"
	"github.com/you/swap-estimator/internal/connectors/redisfeed"
	"github.com/you/swap-estimator/internal/orchestrator"
	"github.com/you/swap-estimator/internal/product"
	"github.com/you/swap-estimator/internal/selector"
)

// PriceSource supplies the USD prices for a round; pricefeed.Pair implements it.
type PriceSource interface {
	Prices(ctx context.Context) (aggregator.Prices, error)
}

// LatestReader reads published rounds back; optional.
type LatestReader interface {
	Latest(ctx context.Context, sessionID string) (redisfeed.Record, error)
}

type Handler struct {
	logger     *zap.Logger
	product    product.Product
	runner     orchestrator.Runner
	prices     PriceSource
	sessions   *orchestrator.Manager
	latest     LatestReader
	guard      selector.Guard
	defaultTol decimal.Decimal
	timeout    time.Duration
}

type Deps struct {
	Product          product.Product
	Runner           orchestrator.Runner
	Prices           PriceSource
	Sessions         *orchestrator.Manager
	Latest           LatestReader
	Guard            selector.Guard
	DefaultTolerance decimal.Decimal
	Timeout          time.Duration
}

func NewHandler(logger *zap.Logger, d Deps) *Handler {
	return &Handler{
		logger:     logger,
		product:    d.Product,
		runner:     d.Runner,
		prices:     d.Prices,
		sessions:   d.Sessions,
		latest:     d.Latest,
		guard:      d.Guard,
		defaultTol: d.DefaultTolerance,
		timeout:    d.Timeout,
	}
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

func (h *Handler) parse(c *fiber.Ctx) (orchestrator.Input, error) {
	var req EstimateRequest
	if err := c.BodyParser(&req); err != nil {
		return orchestrator.Input{}, err
	}
	if err := req.Validate(); err != nil {
		return orchestrator.Input{}, err
	}
	return req.Input(h.product, h.defaultTol)
}

func (h *Handler) withPrices(ctx context.Context, in orchestrator.Input) (orchestrator.Input, error) {
	p, err := h.prices.Prices(ctx)
	if err != nil {
		return in, err
	}
	in.Prices = p
	return in, nil
}

func (h *Handler) respond(out orchestrator.Output) RoundResponse {
	resp := RoundResponse{Output: out}
	if out.Result != nil {
		ch := selector.Pick(*out.Result, h.guard)
		resp.Choice = &ch
	}
	return resp
}

// CreateEstimate runs a single round synchronously, without debounce.
func (h *Handler) CreateEstimate(c *fiber.Ctx) error {
	in, err := h.parse(c)
	if err != nil {
		return badRequest(c, err)
	}
	out := orchestrator.Output{RequestID: uuid.NewString(), Round: 1, Input: in}

	amount, ok := orchestrator.ParseAmount(in.Amount)
	if !ok {
		out.At = time.Now()
		return c.JSON(h.respond(out))
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()
	if in, err = h.withPrices(ctx, in); err != nil {
		h.logger.Error("api.estimate.price_failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "price unavailable"})
	}

	res := h.runner.Estimate(ctx, in.Request(amount), in.Prices)
	out.Input, out.Result, out.At = in, &res, time.Now()

	h.logger.Info("api.estimate",
		zap.String("request_id", out.RequestID),
		zap.String("mode", string(in.Mode)),
		zap.String("from", in.From.Symbol),
		zap.String("to", in.To.Symbol),
		zap.Stringer("result", res))
	return c.JSON(h.respond(out))
}

// PutSession replaces a session's input and schedules a debounced round.
func (h *Handler) PutSession(c *fiber.Ctx) error {
	in, err := h.parse(c)
	if err != nil {
		return badRequest(c, err)
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()
	if in, err = h.withPrices(ctx, in); err != nil {
		h.logger.Error("api.session.price_failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "price unavailable"})
	}

	s := h.sessions.GetOrCreate(c.Params("id"))
	round := s.Update(in)
	return c.Status(fiber.StatusAccepted).JSON(SessionResponse{SessionID: s.ID(), Loading: true, Round: round})
}

func (h *Handler) GetSession(c *fiber.Ctx) error {
	s, ok := h.sessions.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown session"})
	}
	resp := SessionResponse{SessionID: s.ID(), Loading: s.Loading()}
	if out, ok := s.Latest(); ok {
		r := h.respond(out)
		resp.Latest = &r
		resp.Round = out.Round
	}
	return c.JSON(resp)
}

func (h *Handler) RefreshSession(c *fiber.Ctx) error {
	s, ok := h.sessions.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown session"})
	}
	round, ok := s.Refresh()
	if !ok {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "session has no input yet"})
	}
	return c.Status(fiber.StatusAccepted).JSON(SessionResponse{SessionID: s.ID(), Loading: true, Round: round})
}

func (h *Handler) DeleteSession(c *fiber.Ctx) error {
	if !h.sessions.Delete(c.Params("id")) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown session"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// LatestPublished reads the last round a session published to Redis.
func (h *Handler) LatestPublished(c *fiber.Ctx) error {
	if h.latest == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "publishing disabled"})
	}
	id := c.Query("session")
	if id == "" {
		return badRequest(c, errors.New("session query parameter is required"))
	}
	rec, err := h.latest.Latest(c.UserContext(), id)
	if errors.Is(err, redisfeed.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "nothing published for session"})
	}
	if err != nil {
		h.logger.Error("api.latest.failed", zap.String("session", id), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "redis unavailable"})
	}
	return c.JSON(rec)
}

// Tokens lists what the product lets users pick.
func (h *Handler) Tokens(c *fiber.Ctx) error {
	out := make([]interface{}, 0, len(h.product.Tokens)+2)
	for _, sym := range append(append([]string{}, h.product.Tokens...), h.product.Wrapped.Symbol, h.product.Mix.Symbol) {
		t, err := h.product.Resolve(sym)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return c.JSON(fiber.Map{"product": h.product.Name, "tokens": out})
}
