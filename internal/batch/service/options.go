package service

import (
	"log/slog"
	"time"

	batchmetrics "github.com/dr-roshyara/public-digit-sub008/internal/batch/metrics"
	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/events"
)

// orchestratorConfig holds optional dependencies for the orchestrator.
type orchestratorConfig struct {
	logger       *slog.Logger
	emitter      events.Emitter
	metrics      *batchmetrics.Metrics
	moduleName   string
	concurrency  int
	retryBackoff time.Duration
}

// Option configures the orchestrator.
type Option func(c *orchestratorConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *orchestratorConfig) {
		c.logger = logger
	}
}

func WithEmitter(emitter events.Emitter) Option {
	return func(c *orchestratorConfig) {
		c.emitter = emitter
	}
}

func WithMetrics(m *batchmetrics.Metrics) Option {
	return func(c *orchestratorConfig) {
		c.metrics = m
	}
}

// WithModuleName overrides the module gating batch operations.
func WithModuleName(name string) Option {
	return func(c *orchestratorConfig) {
		if name != "" {
			c.moduleName = name
		}
	}
}

// WithConcurrency bounds the worker pool per batch. Values are clamped to
// the supported 1..50 range.
func WithConcurrency(n int) Option {
	return func(c *orchestratorConfig) {
		if n < 1 {
			n = 1
		}
		if n > 50 {
			n = 50
		}
		c.concurrency = n
	}
}

// WithRetryBackoff sets the base delay between retry attempts on
// infrastructure failures.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *orchestratorConfig) {
		if d >= 0 {
			c.retryBackoff = d
		}
	}
}
