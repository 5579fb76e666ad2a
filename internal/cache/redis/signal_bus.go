package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/truesightdao/tokenops/internal/domain"
)

// SignalBus implements domain.SignalBus using Redis Pub/Sub. Verification
// results and cycle summaries are published here and fanned out to the
// WebSocket hub.
type SignalBus struct {
	rdb *redis.Client
}

// NewSignalBus creates a SignalBus backed by the given Client.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.Underlying()}
}

// Publish sends a raw byte payload to a Pub/Sub channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe creates a Pub/Sub subscription over one or more channels and
// returns a read-only channel emitting raw payloads. The subscription closes
// when the context is cancelled; the returned channel is closed then too.
func (sb *SignalBus) Subscribe(ctx context.Context, channels ...string) (<-chan []byte, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("redis: subscribe: no channels")
	}

	var pubsub *redis.PubSub
	if hasPattern(channels) {
		pubsub = sb.rdb.PSubscribe(ctx, channels...)
	} else {
		pubsub = sb.rdb.Subscribe(ctx, channels...)
	}

	// Receive the confirmation so a broken subscription fails fast.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", strings.Join(channels, ","), err)
	}

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// hasPattern reports whether any channel uses glob-style wildcards, in which
// case PSubscribe must be used.
func hasPattern(channels []string) bool {
	for _, c := range channels {
		if strings.ContainsAny(c, "*?[") {
			return true
		}
	}
	return false
}

var _ domain.SignalBus = (*SignalBus)(nil)
