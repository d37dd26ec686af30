package service

import (
	"log/slog"

	credentialmetrics "github.com/dr-roshyara/public-digit-sub008/internal/credential/metrics"
	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/events"
)

// serviceConfig holds optional dependencies for the lifecycle service.
type serviceConfig struct {
	logger     *slog.Logger
	emitter    events.Emitter
	metrics    *credentialmetrics.Metrics
	moduleName string
}

// Option configures the lifecycle service.
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

func WithMetrics(m *credentialmetrics.Metrics) Option {
	return func(c *serviceConfig) {
		c.metrics = m
	}
}

// WithModuleName overrides the module gating credential operations.
func WithModuleName(name string) Option {
	return func(c *serviceConfig) {
		if name != "" {
			c.moduleName = name
		}
	}
}
