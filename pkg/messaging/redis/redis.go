package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/inventory-api/pkg/circuitbreaker"
	"github.com/jwalitptl/inventory-api/pkg/logger"
	"github.com/jwalitptl/inventory-api/pkg/messaging"
)

// Channels for live fan-out to dashboard subscribers.
const (
	ChannelStockUpdates   = "inventory.live.stock"
	ChannelSummaryUpdates = "inventory.live.summary"
)

type Config struct {
	URL          string
	PoolSize     int
	MinIdleConns int
}

// PushSink publishes live updates over Redis pub/sub. It is deliberately
// best-effort: a tripped breaker or publish failure is logged and the
// business transaction proceeds.
type PushSink struct {
	client *redis.Client
	cb     *circuitbreaker.CircuitBreaker
	logger *logger.Logger
}

func NewPushSink(cfg Config, log *logger.Logger) (messaging.PushSink, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "redis-push-sink",
		MaxFailures: 5,
		Timeout:     10 * time.Second,
	})

	return &PushSink{client: client, cb: cb, logger: log}, nil
}

func (s *PushSink) Push(ctx context.Context, channel string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	err = s.cb.Execute(func() error {
		return s.client.Publish(ctx, channel, data).Err()
	})
	if err != nil {
		s.logger.WarnErr(err, "push sink publish skipped", "channel", channel)
	}
	return err
}

func (s *PushSink) Close() error {
	return s.client.Close()
}
