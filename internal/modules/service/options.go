package service

import (
	"log/slog"
	"time"

	"github.com/dr-roshyara/public-digit-sub008/internal/modules/cache"
	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/events"
)

// serviceConfig holds optional dependencies for the module service.
type serviceConfig struct {
	logger   *slog.Logger
	emitter  events.Emitter
	cache    cache.Cache
	cacheTTL time.Duration
}

// Option configures the module service.
type Option func(c *serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) {
		c.logger = logger
	}
}

func WithEmitter(emitter events.Emitter) Option {
	return func(c *serviceConfig) {
		c.emitter = emitter
	}
}

// WithCache enables resolver caching. The TTL bounds the staleness window and
// must not exceed one minute.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(cfg *serviceConfig) {
		cfg.cache = c
		if ttl > 0 && ttl <= time.Minute {
			cfg.cacheTTL = ttl
		}
	}
}
