// Package redisfeed publishes delivered estimation rounds to Redis and reads them back.
package redisfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/you/swap-estimator/internal/config"
	"github.com/you/swap-estimator/internal/orchestrator"
	"github.com/you/swap-estimator/internal/selector"
)

// Record - плоская сводка раунда: то, что лежит в HASH latest и в записи стрима.
type Record struct {
	SessionID string          `json:"sessionId"`
	Round     uint64          `json:"round"`
	RequestID string          `json:"requestId"`
	BestVenue string          `json:"bestVenue,omitempty"`
	BestPrice float64         `json:"bestPrice,omitempty"`
	Error     string          `json:"error,omitempty"`
	TsMs      int64           `json:"tsMs"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func recordOf(out orchestrator.Output) Record {
	rec := Record{
		SessionID: out.SessionID,
		Round:     out.Round,
		RequestID: out.RequestID,
		TsMs:      out.At.UnixMilli(),
	}
	if out.Result == nil {
		return rec
	}
	c := selector.Pick(*out.Result, nil)
	if c.OK() {
		rec.BestVenue = string(c.Best.Estimate.Venue)
		rec.BestPrice = c.Best.EffectivePrice
	} else {
		rec.Error = string(c.Error)
	}
	return rec
}

func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Username: cfg.Username,
		Password: cfg.Password,
	})
}

type Publisher struct {
	rdb      *redis.Client
	stream   string
	active   string
	latestNS string
	maxLen   int64
}

func NewPublisher(rdb *redis.Client, cfg config.RedisConfig) *Publisher {
	return &Publisher{
		rdb:      rdb,
		stream:   cfg.Stream,
		active:   cfg.ActiveKey,
		latestNS: cfg.LatestNS,
		maxLen:   cfg.StreamMax,
	}
}

// Publish пишет раунд атомарно: HASH latest:<session>, ZSET активных сессий, запись в стрим.
func (p *Publisher) Publish(ctx context.Context, out orchestrator.Output) error {
	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal round: %w", err)
	}
	rec := recordOf(out)

	pipe := p.rdb.TxPipeline()
	pipe.HSet(ctx, p.latestNS+rec.SessionID, map[string]interface{}{
		"session":    rec.SessionID,
		"round":      rec.Round,
		"request_id": rec.RequestID,
		"best_venue": rec.BestVenue,
		"best_price": rec.BestPrice,
		"error":      rec.Error,
		"ts_ms":      rec.TsMs,
		"payload":    payload,
	})
	pipe.ZAdd(ctx, p.active, redis.Z{Score: float64(rec.TsMs), Member: rec.SessionID})
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Values: map[string]interface{}{
			"session":    rec.SessionID,
			"round":      rec.Round,
			"request_id": rec.RequestID,
			"best_venue": rec.BestVenue,
			"best_price": rec.BestPrice,
			"error":      rec.Error,
			"ts_ms":      rec.TsMs,
		},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish round %d: %w", rec.Round, err)
	}
	return nil
}

// Sink adapts Publish to an orchestrator callback. Failures are only logged.
func (p *Publisher) Sink(timeout time.Duration, log *zap.Logger) orchestrator.Callback {
	return func(out orchestrator.Output) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := p.Publish(ctx, out); err != nil {
			log.Warn("redis publish failed", zap.String("session", out.SessionID), zap.Error(err))
		}
	}
}
