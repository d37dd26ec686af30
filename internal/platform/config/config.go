package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr       string
	AdminToken string

	// DatabaseURL enables the Postgres stores; empty means in-memory.
	DatabaseURL string

	// KafkaBrokers enables the Kafka event sink; empty means log-only.
	KafkaBrokers string

	// RedisAddr enables the shared module-binding cache; empty means the
	// in-process TTL cache.
	RedisAddr string

	// BatchConcurrency bounds the worker pool per batch run.
	BatchConcurrency int

	// ModuleCacheTTL bounds staleness of module name resolution. Must stay
	// at or below one minute so renames and installs propagate quickly.
	ModuleCacheTTL time.Duration

	// ExpirySweepInterval drives the background Active->Expired sweep.
	// Zero disables the sweep; expiry is still evaluated at read time.
	ExpirySweepInterval time.Duration

	// SeedDemoData populates the stores with demo records on startup.
	SeedDemoData bool
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:                ":8080",
		AdminToken:          "dev-admin-token-change-in-production",
		BatchConcurrency:    16,
		ModuleCacheTTL:      30 * time.Second,
		ExpirySweepInterval: time.Minute,
	}

	if addr := os.Getenv("CARD_PLATFORM_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if token := os.Getenv("ADMIN_TOKEN"); token != "" {
		cfg.AdminToken = token
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.KafkaBrokers = os.Getenv("KAFKA_BROKERS")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")

	if raw := os.Getenv("BATCH_CONCURRENCY"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.BatchConcurrency = n
		}
	}
	if raw := os.Getenv("MODULE_CACHE_TTL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 && d <= time.Minute {
			cfg.ModuleCacheTTL = d
		}
	}
	if raw := os.Getenv("EXPIRY_SWEEP_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			cfg.ExpirySweepInterval = d
		}
	}
	if raw := os.Getenv("SEED_DEMO_DATA"); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			cfg.SeedDemoData = b
		}
	}

	return cfg
}
