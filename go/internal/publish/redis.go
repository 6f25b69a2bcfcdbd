package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// RedisPublisher fans updates out over a Redis pub/sub channel.
type RedisPublisher struct {
	client *redis.Client
	topic  string
}

func NewRedisPublisher(addr, topic string) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info().Str("address", addr).Str("topic", topic).Msg("connected to Redis")
	return &RedisPublisher{client: client, topic: topic}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, update Update) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal update: %w", err)
	}

	if err := p.client.Publish(ctx, p.topic, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish update to Redis: %w", err)
	}
	return nil
}

// Check pings Redis so a lost connection is noticed before the next publish
// attempt rather than discovered by it.
func (p *RedisPublisher) Check(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection check failed: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
