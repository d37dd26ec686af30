package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	batchmetrics "github.com/dr-roshyara/public-digit-sub008/internal/batch/metrics"
	batchservice "github.com/dr-roshyara/public-digit-sub008/internal/batch/service"
	batchstore "github.com/dr-roshyara/public-digit-sub008/internal/batch/store"
	credmetrics "github.com/dr-roshyara/public-digit-sub008/internal/credential/metrics"
	credservice "github.com/dr-roshyara/public-digit-sub008/internal/credential/service"
	credstore "github.com/dr-roshyara/public-digit-sub008/internal/credential/store"
	"github.com/dr-roshyara/public-digit-sub008/internal/credential/sweeper"
	modulescache "github.com/dr-roshyara/public-digit-sub008/internal/modules/cache"
	modulesservice "github.com/dr-roshyara/public-digit-sub008/internal/modules/service"
	modulesstore "github.com/dr-roshyara/public-digit-sub008/internal/modules/store"
	"github.com/dr-roshyara/public-digit-sub008/internal/platform/config"
	"github.com/dr-roshyara/public-digit-sub008/internal/platform/database"
	"github.com/dr-roshyara/public-digit-sub008/internal/platform/httpserver"
	kafkaproducer "github.com/dr-roshyara/public-digit-sub008/internal/platform/kafka/producer"
	"github.com/dr-roshyara/public-digit-sub008/internal/platform/logger"
	platformredis "github.com/dr-roshyara/public-digit-sub008/internal/platform/redis"
	"github.com/dr-roshyara/public-digit-sub008/internal/seeder"
	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/events"
	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/events/publisher"
	kafkasink "github.com/dr-roshyara/public-digit-sub008/pkg/platform/events/store/kafka"
	eventsmemory "github.com/dr-roshyara/public-digit-sub008/pkg/platform/events/store/memory"
	eventspostgres "github.com/dr-roshyara/public-digit-sub008/pkg/platform/events/store/postgres"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Stores default to in-memory; Postgres, Kafka, and
// Redis activate when configured.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing card platform",
		"addr", cfg.Addr,
		"postgres", cfg.DatabaseURL != "",
		"kafka", cfg.KafkaBrokers != "",
		"redis", cfg.RedisAddr != "",
	)

	pool, err := database.New(database.Config{URL: cfg.DatabaseURL, MaxOpenConns: 25, MaxIdleConns: 5, ConnMaxLifetime: 5 * time.Minute})
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()

		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := pool.ApplySchema(migrateCtx); err != nil {
			cancel()
			log.Error("schema migration failed", "error", err)
			os.Exit(1)
		}
		cancel()
	}

	redisClient, err := platformredis.New(cfg.RedisAddr)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Event sinks: durable store plus optional Kafka fanout.
	var sinks events.Fanout
	if pool != nil {
		sinks = append(sinks, eventspostgres.New(pool.DB()))
	} else {
		sinks = append(sinks, eventsmemory.New())
	}
	var producer *kafkaproducer.Producer
	if cfg.KafkaBrokers != "" {
		producerCfg := kafkaproducer.DefaultConfig()
		producerCfg.Brokers = cfg.KafkaBrokers
		producer, err = kafkaproducer.New(producerCfg, log)
		if err != nil {
			log.Error("kafka init failed", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		sinks = append(sinks, kafkasink.New(producer))
	}
	emitter := publisher.New(sinks, publisher.WithAsyncBuffer(1024), publisher.WithLogger(log))
	defer emitter.Close()

	// Module registry and resolver cache.
	var moduleCache modulescache.Cache = modulescache.NewInMemory()
	if redisClient != nil {
		moduleCache = modulescache.NewRedis(redisClient.Client, log)
	}
	var moduleStore modulesservice.ModuleStore = modulesstore.NewInMemory()
	if pool != nil {
		moduleStore = modulesstore.NewPostgres(pool.DB())
	}
	modules := modulesservice.New(moduleStore,
		modulesservice.WithLogger(log),
		modulesservice.WithEmitter(emitter),
		modulesservice.WithCache(moduleCache, cfg.ModuleCacheTTL),
	)

	// Credential lifecycle engine.
	var credentialStore credservice.CredentialStore = credstore.NewInMemory()
	if pool != nil {
		credentialStore = credstore.NewPostgres(pool.DB())
	}
	credentials := credservice.New(credentialStore, modules,
		credservice.WithLogger(log),
		credservice.WithEmitter(emitter),
		credservice.WithMetrics(credmetrics.New()),
	)

	// Batch orchestrator.
	var batchStore batchservice.BatchStore = batchstore.NewInMemory()
	if pool != nil {
		batchStore = batchstore.NewPostgres(pool.DB())
	}
	orchestrator := batchservice.New(batchStore, credentials, modules,
		batchservice.WithLogger(log),
		batchservice.WithEmitter(emitter),
		batchservice.WithMetrics(batchmetrics.New()),
		batchservice.WithConcurrency(cfg.BatchConcurrency),
	)

	if cfg.SeedDemoData {
		if err := seeder.New(modules, credentials, log).SeedAll(context.Background()); err != nil {
			log.Error("seeding demo data failed", "error", err)
			os.Exit(1)
		}
	}

	// Background expiry sweep.
	if cfg.ExpirySweepInterval > 0 {
		sw := sweeper.New(credentials,
			sweeper.WithInterval(cfg.ExpirySweepInterval),
			sweeper.WithLogger(log),
		)
		sw.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := sw.Stop(ctx); err != nil {
				log.Error("sweeper shutdown failed", "error", err)
			}
		}()
	}

	router := newRouter(cfg, log, credentials, orchestrator, modules, pool)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
