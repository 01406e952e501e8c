package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eventviewer/server/internal/domain/notifications"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Channel is the Redis pub/sub channel shared by all instances.
const Channel = "eventviewer:realtime"

// RedisBus publishes pushes through Redis so every instance delivers them to
// its own connections.
type RedisBus struct {
	client *redis.Client
	hub    *Hub
	logger zerolog.Logger
}

func NewRedisBus(client *redis.Client, hub *Hub, logger zerolog.Logger) *RedisBus {
	return &RedisBus{
		client: client,
		hub:    hub,
		logger: logger.With().Str("component", "realtime_bus").Logger(),
	}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (b *RedisBus) Publish(ctx context.Context, msg notifications.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode push: %w", err)
	}
	if err := b.client.Publish(ctx, Channel, data).Err(); err != nil {
		return fmt.Errorf("publish push: %w", err)
	}
	return nil
}

// Run subscribes to Channel and delivers messages to the local hub until ctx
// is cancelled. ready, if non-nil, is closed once the subscription is live.
func (b *RedisBus) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := b.client.Subscribe(ctx, Channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", Channel, err)
	}
	if ready != nil {
		close(ready)
	}
	b.logger.Info().Str("channel", Channel).Msg("realtime bus subscribed")

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-messages:
			if !ok {
				return nil
			}
			var msg notifications.Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				b.logger.Warn().Err(err).Msg("discarding malformed realtime message")
				continue
			}
			if err := b.hub.Deliver(msg); err != nil {
				b.logger.Error().Err(err).Str("room", msg.Room).Msg("local delivery failed")
			}
		}
	}
}

func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (b *RedisBus) Close() error {
	return b.client.Close()
}
