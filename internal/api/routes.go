package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/you/swap-estimator/internal/rate"
)

// RegisterRoutes wires the HTTP surface. ready may be nil.
func RegisterRoutes(app *fiber.App, h *Handler, limits *rate.Manager, ready func() bool) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/health", func(c *fiber.Ctx) error {
		checks := map[string]string{"price": "ok"}
		status, code := "ok", fiber.StatusOK
		if ready != nil && !ready() {
			checks["price"] = "no price yet"
			status, code = "degraded", fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status":   status,
			"checks":   checks,
			"sessions": h.sessions.Len(),
		})
	})

	v1 := app.Group("/api/v1", rateLimit(limits))
	v1.Get("/tokens", h.Tokens)
	v1.Post("/estimates", h.CreateEstimate)
	v1.Get("/estimates/latest", h.LatestPublished)
	v1.Put("/sessions/:id", h.PutSession)
	v1.Get("/sessions/:id", h.GetSession)
	v1.Delete("/sessions/:id", h.DeleteSession)
	v1.Post("/sessions/:id/refresh", h.RefreshSession)
}

// rateLimit - токен-бакет на IP клиента.
func rateLimit(limits *rate.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limits != nil && !limits.Allow(c.IP()) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
		}
		return c.Next()
	}
}
