package infrastructure

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/config"
)

// NewRedisClient creates the Redis client used by the lock service and the
// brand queue ticket registry. REDIS_URL takes precedence over discrete fields.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
