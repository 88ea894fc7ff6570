package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/loghorn/loghorn/internal/domain"
)

const tailChannelPrefix = "tail:"

// TailRepository fans ingested records out to live-tail subscribers over
// Redis pub/sub, one channel per tenant. Delivery is fire-and-forget:
// subscribers only see records published while they are connected.
type TailRepository struct {
	client *redis.Client
	logger *slog.Logger
}

// NewTailRepository creates a Redis-backed tail publisher/subscriber.
func NewTailRepository(client *redis.Client, logger *slog.Logger) *TailRepository {
	return &TailRepository{
		client: client,
		logger: logger.With("component", "redis_tail"),
	}
}

// Publish sends one record to the tenant's tail channel.
func (r *TailRepository) Publish(ctx context.Context, record domain.LogRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal tail record: %w", err)
	}
	if err := r.client.Publish(ctx, tailChannelPrefix+record.TenantID, payload).Err(); err != nil {
		return fmt.Errorf("publish tail record: %w", err)
	}
	return nil
}

// Subscribe returns a channel of raw record payloads for one tenant and a
// cancel function that tears the subscription down. The channel is closed
// when the subscription ends.
func (r *TailRepository) Subscribe(ctx context.Context, tenantID string) (<-chan []byte, func()) {
	sub := r.client.Subscribe(ctx, tailChannelPrefix+tenantID)
	out := make(chan []byte, 64)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			default:
				// Slow subscriber; drop rather than stall the pump.
			}
		}
	}()

	cancel := func() {
		if err := sub.Close(); err != nil {
			r.logger.Debug("closing tail subscription", "error", err, "tenant_id", tenantID)
		}
	}
	return out, cancel
}
