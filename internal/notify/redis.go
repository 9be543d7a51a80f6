package notify

import (
	"context"
	"fmt"
	"log/slog"

	json "github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "teamboard:events"

// RedisNotifier publishes events on a redis channel for the realtime server.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}

	return &RedisNotifier{
		client:  client,
		channel: channel,
	}
}

func (r *RedisNotifier) Notify(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.ErrorContext(ctx, "Unable to encode event", slog.Any("error", err))
		return
	}

	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		slog.ErrorContext(ctx, "Unable to publish event", slog.String("channel", r.channel), slog.Any("error", err))
	}
}

// Subscribe delivers decoded events to handler until ctx is done.
func (r *RedisNotifier) Subscribe(ctx context.Context, handler func(Event)) error {
	sub := r.client.Subscribe(ctx, r.channel)

	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	go func() {
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					slog.Warn("Dropping undecodable event", slog.String("payload", msg.Payload), slog.Any("error", err))
					continue
				}
				handler(event)
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}
