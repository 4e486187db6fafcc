package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/tontine/internal/domain"
)

// subscriberBuffer is how many summaries a slow subscriber may fall behind
// before go-redis starts dropping them.
const subscriberBuffer = 128

// SignalBus implements domain.SignalBus with Redis Pub/Sub. It carries
// committed dashboard summaries from whichever process refreshed them to
// every process holding a WebSocket for that user. Channel names are
// namespaced by the client's keyspace and callers never see the prefix.
type SignalBus struct {
	rdb  *redis.Client
	keys Keyspace
}

// NewSignalBus creates a SignalBus backed by the given Client.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.rdb, keys: c.keys}
}

func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, sb.keys.Channel(channel), payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe listens on channel, or on every matching channel when it is a
// glob pattern. Only payloads are forwarded. The returned channel closes
// once ctx is cancelled.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	name := sb.keys.Channel(channel)
	subscribe := sb.rdb.Subscribe
	if hasPattern(channel) {
		subscribe = sb.rdb.PSubscribe
	}
	pubsub := subscribe(ctx, name)

	// Wait for the confirmation so nothing published after return is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	in := pubsub.Channel(redis.WithChannelSize(subscriberBuffer))
	out := make(chan []byte)
	go func() {
		defer close(out)
		defer pubsub.Close()
		for {
			var msg *redis.Message
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				msg = m
			}
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func hasPattern(channel string) bool {
	return strings.ContainsAny(channel, "*?[")
}

var _ domain.SignalBus = (*SignalBus)(nil)
