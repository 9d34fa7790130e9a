package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/gradtrust/portal/internal/domain/merkle"
)

// RedisChannel carries relayed events between the relay and portal instances.
const RedisChannel = "gradtrust:merkle"

type RedisBridge struct {
	client  *redis.Client
	channel string
	log     *slog.Logger
}

func NewRedisBridge(client *redis.Client, log *slog.Logger) *RedisBridge {
	if log == nil {
		log = slog.Default()
	}
	return &RedisBridge{client: client, channel: RedisChannel, log: log}
}

func (b *RedisBridge) Publish(ctx context.Context, ev merkle.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode feed event: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish feed event: %w", err)
	}
	return nil
}

// Run forwards channel messages to sink until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context, sink Sink) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}

			var ev merkle.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warn("feed_bad_bridge_message", "channel", b.channel, "err", err)
				continue
			}

			if err := sink.Publish(ctx, ev); err != nil {
				b.log.Warn("feed_publish_failed", "event", ev.Name, "err", err)
			}
		}
	}
}

func (b *RedisBridge) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBridge) Close() error { return nil }
