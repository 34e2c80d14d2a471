// Package app assembles the estimator service from configuration.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/you/swap-estimator/internal/aggregator"
	"github.com/you/swap-estimator/internal/api"
	"github.com/you/swap-estimator/internal/chain"
	"github.com/you/swap-estimator/internal/config"
	"github.com/you/swap-estimator/internal/connectors/redisfeed"
	"github.com/you/swap-estimator/internal/dex/adapters"
	"github.com/you/swap-estimator/internal/dex/core"
	imetrics "github.com/you/swap-estimator/internal/metrics"
	"github.com/you/swap-estimator/internal/orchestrator"
	"github.com/you/swap-estimator/internal/pricefeed"
	"github.com/you/swap-estimator/internal/product"
	"github.com/you/swap-estimator/internal/rate"
	"github.com/you/swap-estimator/internal/risk"
)

// App manages the service lifecycle and components.
type App struct {
	cfg *config.Config
	log *zap.Logger

	Reader     chain.Reader
	Product    product.Product
	Aggregator *aggregator.Aggregator
	Feed       *pricefeed.Feed
	Risk       *risk.Engine
	Sessions   *orchestrator.Manager

	rdb       *redis.Client
	publisher *redisfeed.Publisher
	consumer  *redisfeed.Consumer
}

// New wires everything on top of r; the service binary passes a dialed *chain.Client.
func New(cfg *config.Config, r chain.Reader, log *zap.Logger) (*App, error) {
	p, err := product.ByName(cfg.Product)
	if err != nil {
		return nil, err
	}
	venues, err := enabledVenues(p.Venues, cfg.Estimator.Venues)
	if err != nil {
		return nil, err
	}
	feed, err := pricefeed.FromConfig(cfg, r, log.Named("price"))
	if err != nil {
		return nil, fmt.Errorf("price feed: %w", err)
	}

	a := &App{
		cfg:        cfg,
		log:        log,
		Reader:     r,
		Product:    p,
		Aggregator: aggregator.New(adapters.New(r, cfg, log), venues, cfg.VenueTimeout(), log.Named("aggregator")),
		Feed:       feed,
		Risk:       risk.NewEngine(cfg),
	}

	var sink orchestrator.Callback
	if cfg.Redis.Enabled {
		a.rdb = redisfeed.NewClient(cfg.Redis)
		a.publisher = redisfeed.NewPublisher(a.rdb, cfg.Redis)
		a.consumer = redisfeed.NewConsumer(a.rdb, cfg.Redis, log.Named("redis"))
		sink = a.publisher.Sink(2*time.Second, log.Named("redis"))
	}
	a.Sessions = orchestrator.NewManager(a.Aggregator, orchestrator.Options{
		Debounce:     cfg.Debounce(),
		RoundTimeout: cfg.RoundTimeout(),
	}, cfg.SessionTTL(), sink, log.Named("session"))

	log.Info("estimator assembled",
		zap.String("product", p.Name),
		zap.Int("venues", venues.Len()),
		zap.String("price_source", cfg.Price.Source),
		zap.Bool("redis", cfg.Redis.Enabled))
	return a, nil
}

func enabledVenues(all core.Set, names []string) (core.Set, error) {
	ids := make([]core.VenueID, 0, len(names))
	for _, n := range names {
		id := core.VenueID(strings.TrimSpace(n))
		if !id.Valid() {
			return core.Set{}, fmt.Errorf("unknown venue %q", n)
		}
		ids = append(ids, id)
	}
	return all.Enabled(ids), nil
}

func (a *App) DefaultTolerance() decimal.Decimal {
	return decimal.NewFromFloat(a.cfg.Estimator.DefaultTolerance)
}

// Handler builds the HTTP handler over the app's components.
func (a *App) Handler() *api.Handler {
	d := api.Deps{
		Product:          a.Product,
		Runner:           a.Aggregator,
		Prices:           a.Feed,
		Sessions:         a.Sessions,
		Guard:            a.Risk,
		DefaultTolerance: a.DefaultTolerance(),
		Timeout:          a.cfg.RequestTimeout(),
	}
	if a.consumer != nil {
		d.Latest = a.consumer
	}
	return api.NewHandler(a.log.Named("api"), d)
}

// Run serves until ctx is done.
func (a *App) Run(ctx context.Context) error {
	imetrics.Serve(ctx, a.cfg.Metrics.ListenAddr, nil, a.readiness(), a.log)

	go a.Feed.Run(ctx)
	go a.Sessions.Run(ctx, time.Minute)

	// прогрев цены, чтобы /health сразу был зелёным
	if _, err := a.Feed.Prices(ctx); err != nil {
		a.log.Warn("initial price fetch failed", zap.Error(err))
	}

	srv := fiber.New(fiber.Config{
		AppName:               "swap-estimator",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          a.cfg.RequestTimeout() + 5*time.Second,
	})
	limits := rate.NewManager(rate.Config{
		RequestsPerSecond: a.cfg.API.ClientRPS,
		Burst:             a.cfg.API.ClientBurst,
	})
	go limits.Run(ctx, time.Minute, 10*time.Minute)
	api.RegisterRoutes(srv, a.Handler(), limits, a.Feed.Ready)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("api listening", zap.String("addr", a.cfg.API.ListenAddr))
		errCh <- srv.Listen(a.cfg.API.ListenAddr)
	}()

	select {
	case err := <-errCh:
		a.close()
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	if err := srv.ShutdownWithTimeout(5 * time.Second); err != nil {
		a.log.Warn("api shutdown", zap.Error(err))
	}
	a.close()
	a.log.Info("estimator stopped")
	return nil
}

// readiness: цена получена хотя бы раз, redis (если включён) отвечает.
func (a *App) readiness() imetrics.Checks {
	checks := imetrics.Checks{"price": a.Feed.Ready}
	if a.rdb != nil {
		checks["redis"] = func() bool {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return a.rdb.Ping(ctx).Err() == nil
		}
	}
	return checks
}

func (a *App) close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

// NewLogger: JSON, RFC3339, уровень из конфига.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.StacktraceKey = "stacktrace"
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	return cfg.Build()
}
