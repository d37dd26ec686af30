package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a shared cache for multi-instance deployments, so every instance
// observes an install or rename within the same staleness bound.
type Redis struct {
	client *redis.Client
	logger *slog.Logger
	prefix string
}

// NewRedis creates a Redis-backed cache. Keys are namespaced under "modules:".
func NewRedis(client *redis.Client, logger *slog.Logger) *Redis {
	return &Redis{
		client: client,
		logger: logger,
		prefix: "modules:",
	}
}

func (c *Redis) Get(ctx context.Context, key string) (string, bool) {
	value, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if err != redis.Nil && c.logger != nil {
			c.logger.WarnContext(ctx, "module cache read failed", "key", key, "error", err)
		}
		return "", false
	}
	return value, true
}

func (c *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil && c.logger != nil {
		c.logger.WarnContext(ctx, "module cache write failed", "key", key, "error", err)
	}
}

func (c *Redis) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil && c.logger != nil {
		c.logger.WarnContext(ctx, "module cache invalidation failed", "key", key, "error", err)
	}
}
