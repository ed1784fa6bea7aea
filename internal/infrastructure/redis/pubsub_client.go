package redis

import (
	"context"
	"time"

	"github.com/quantpair/market-data-pipeline/internal/config"
	"github.com/redis/go-redis/v9"
)

// RedisPubsubClient publishes latest-price updates for subscribers outside
// the pipeline. The analytics query surface stays pull-only; this carries raw
// prices, never computed results.
type RedisPubsubClient struct {
	client *redis.Client
}

func NewRedisPubsubClient(ctx context.Context, cfg *config.Config) (*RedisPubsubClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisPubsubAddr,
		Username: cfg.RedisPubsubUser,
		Password: cfg.RedisPubsubPw,
	})

	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisPubsubClient{
		client: client,
	}, nil
}

func (r *RedisPubsubClient) Publish(ctx context.Context, channel string, message any) error {
	return r.client.Publish(ctx, channel, message).Err()
}

func (r *RedisPubsubClient) Close() error {
	return r.client.Close()
}
