package redisfeed

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/you/swap-estimator/internal/config"
)

var ErrNotFound = errors.New("no published round")

type Consumer struct {
	rdb      *redis.Client
	stream   string
	active   string
	latestNS string
	log      *zap.Logger
}

func NewConsumer(rdb *redis.Client, cfg config.RedisConfig, log *zap.Logger) *Consumer {
	return &Consumer{
		rdb:      rdb,
		stream:   cfg.Stream,
		active:   cfg.ActiveKey,
		latestNS: cfg.LatestNS,
		log:      log,
	}
}

// Latest читает HASH latest:<session>.
func (c *Consumer) Latest(ctx context.Context, sessionID string) (Record, error) {
	m, err := c.rdb.HGetAll(ctx, c.latestNS+sessionID).Result()
	if err != nil {
		return Record{}, err
	}
	if len(m) == 0 {
		return Record{}, ErrNotFound
	}
	rec := fromValues(m)
	if p := m["payload"]; p != "" {
		rec.Payload = json.RawMessage(p)
	}
	return rec, nil
}

// RecentSessions returns sessions that published at or after since, oldest first.
func (c *Consumer) RecentSessions(ctx context.Context, since time.Time) ([]string, error) {
	return c.rdb.ZRangeByScore(ctx, c.active, &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
}

// Tail returns the last n stream records, newest first.
func (c *Consumer) Tail(ctx context.Context, n int64) ([]Record, error) {
	msgs, err := c.rdb.XRevRangeN(ctx, c.stream, "+", "-", n).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, fromValues(stringValues(m.Values)))
	}
	return out, nil
}

// Consume reads the round stream through a consumer group until ctx is done.
// Группа создаётся при первом вызове (XGROUP CREATE ... $ MKSTREAM).
func (c *Consumer) Consume(ctx context.Context, group, consumer string, out chan<- Record) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.stream, group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	for {
		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{c.stream, ">"},
			Count:    200,
			Block:    time.Second,
		}).Result()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			c.log.Warn("xreadgroup failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}
		for _, s := range streams {
			for _, m := range s.Messages {
				rec := fromValues(stringValues(m.Values))
				if rec.SessionID != "" {
					select {
					case out <- rec:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
				_ = c.rdb.XAck(ctx, c.stream, group, m.ID).Err()
			}
		}
	}
}

func stringValues(v map[string]interface{}) map[string]string {
	out := make(map[string]string, len(v))
	for k, x := range v {
		if s, ok := x.(string); ok {
			out[k] = s
		}
	}
	return out
}

func fromValues(m map[string]string) Record {
	rec := Record{
		SessionID: m["session"],
		RequestID: m["request_id"],
		BestVenue: m["best_venue"],
		Error:     m["error"],
	}
	rec.Round, _ = strconv.ParseUint(m["round"], 10, 64)
	rec.BestPrice, _ = strconv.ParseFloat(m["best_price"], 64)
	rec.TsMs, _ = strconv.ParseInt(m["ts_ms"], 10, 64)
	return rec
}
