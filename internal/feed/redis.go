package feed

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/shift-desk/internal/observability"
)

// RedisFeed carries change events over Redis pub/sub channels, one
// channel per table plus one per scoped row key.
type RedisFeed struct {
	client  *redis.Client
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewRedisFeed wraps an existing client. Metrics may be nil.
func NewRedisFeed(client *redis.Client, logger *zap.Logger, metrics *observability.Metrics) *RedisFeed {
	return &RedisFeed{client: client, logger: logger, metrics: metrics}
}

// Publish sends the event on the table channel and, when scoped, on the
// row-key channel as well.
func (f *RedisFeed) Publish(ctx context.Context, ev Event, scope string) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, channelName(ev.Table, ""), payload).Err(); err != nil {
		return err
	}
	if scope != "" {
		if err := f.client.Publish(ctx, channelName(ev.Table, scope), payload).Err(); err != nil {
			return err
		}
	}
	f.metrics.RecordFeedEvent(ev.Table, string(ev.Type))
	return nil
}

// Subscribe listens on the matching channel and invokes fn for every
// decodable event until the stop function is called.
func (f *RedisFeed) Subscribe(ctx context.Context, table, scope string, fn Handler) (func(), error) {
	sub := f.client.Subscribe(ctx, channelName(table, scope))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	go func() {
		for msg := range sub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				f.logger.Warn("dropping undecodable feed event",
					zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			fn(ev)
		}
	}()

	return func() { _ = sub.Close() }, nil
}
