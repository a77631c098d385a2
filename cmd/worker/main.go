package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/checkout/internal"
	"github.com/dukerupert/checkout/internal/cache"
	"github.com/dukerupert/checkout/internal/domain"
	"github.com/dukerupert/checkout/internal/events"
	"github.com/dukerupert/checkout/internal/jobs"
	"github.com/dukerupert/checkout/internal/postgres"
	"github.com/dukerupert/checkout/internal/router"
	"github.com/dukerupert/checkout/internal/telemetry"
	"github.com/dukerupert/checkout/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize Sentry
	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer flushSentry()
	telemetry.SetService("checkout-worker")

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	version, err := internal.MigrationVersion(sqlDB)
	if err != nil {
		return err
	}
	logger.Info("Database migrations completed successfully", "version", version)

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	checks := map[string]router.Check{
		"postgres": pool.Ping,
	}

	var store domain.SessionStore = postgres.NewSessionStore(pool)

	// Session cache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		store = cache.NewSessionStore(store, rdb, cache.WithLogger(logger))
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		logger.Info("Session cache enabled", "addr", cfg.Redis.Addr)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewBusinessMetrics("checkout", registry)

	cleanupOpts := []jobs.CleanupOption{jobs.WithMetrics(metrics)}

	// Checkout notifications
	if cfg.NATS.URL != "" {
		nc, err := events.Connect(cfg.NATS.URL, "checkout-worker", logger)
		if err != nil {
			return err
		}
		defer nc.Drain()

		publisher, err := events.NewNATSPublisher(nc, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			return err
		}
		cleanupOpts = append(cleanupOpts, jobs.WithPublisher(publisher))
		checks["nats"] = func(context.Context) error {
			if status := nc.Status(); status != nats.CONNECTED {
				return fmt.Errorf("nats status %s", status)
			}
			return nil
		}
		logger.Info("Publishing checkout events", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
	}

	cleanup := jobs.NewCleanup(store, jobs.CleanupConfig{
		BatchSize: cfg.Worker.BatchSize,
		Retention: cfg.Worker.Retention,
	}, logger, cleanupOpts...)

	w := worker.NewWorker(worker.JobFunc(func(ctx context.Context) error {
		_, err := cleanup.Run(ctx)
		return err
	}), worker.Config{
		PollInterval: cfg.Worker.PollInterval,
		RunOnStart:   true,
	}, logger)

	// Operational endpoints
	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           router.NewOps(router.OpsConfig{Gatherer: registry, Checks: checks}, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("Starting ops server", "address", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("ops server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker failed: %w", err)
	}
	logger.Info("worker stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
