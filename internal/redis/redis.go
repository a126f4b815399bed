package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/studyowl-platform/studyowl/internal/config"
)

// NewClient opens a Redis connection and verifies it with a ping. Redis
// carries the refresh-token store and the auth rate limiter windows.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr(), err)
	}
	return client, nil
}
