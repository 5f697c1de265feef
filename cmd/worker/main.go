// Package main is the entry point for the reconciliation worker.
//
// The worker periodically replays the event log for recently active users
// and repairs any drift in their Redis score counters. Drift accumulates
// when increments are lost between the log commit and the counter apply
// (enqueue failure, crash after the processed marker, Redis outage); the
// sweep is what makes the counter store eventually consistent with the
// log.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/arcadehub/arcade-events/config"
	"github.com/arcadehub/arcade-events/internal/application/command"
	"github.com/arcadehub/arcade-events/internal/infrastructure/metrics"
	"github.com/arcadehub/arcade-events/internal/infrastructure/persistence/postgres"
	"github.com/arcadehub/arcade-events/internal/infrastructure/persistence/redis"
	"github.com/arcadehub/arcade-events/internal/infrastructure/scheduler"
	"github.com/arcadehub/arcade-events/internal/infrastructure/scheduler/jobs"
	"github.com/arcadehub/arcade-events/internal/interface/http/handlers"
	"github.com/arcadehub/arcade-events/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	log := logger.New(opts).With(logger.Component("reconcile-worker"))
	slogLogger := setupSlog(cfg)

	if !cfg.Worker.Enabled || !cfg.Features.IsEnabled(config.FeatureReconcileSweep, nil) {
		log.Info("reconciliation sweep disabled, exiting")
		return nil
	}

	log.Info("starting reconciliation worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.Duration("interval", cfg.Worker.ReconcileInterval),
		logger.Duration("activity_window", cfg.Worker.ActivityWindow),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. STORAGE
	// ─────────────────────────────────────────────────────────────────────────
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	redisClient, err := connectRedis(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	eventRepo := postgres.NewEventRepository(dbConn)
	scoreCounter := redis.NewScoreCounter(redisClient)
	statsCache := redis.NewStatsCacheWithTTL(redisClient, cfg.Redis.StatsCacheTTL)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. RECONCILIATION HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	perUser := command.NewReconcileUserHandler(eventRepo, scoreCounter, statsCache, nil, log)
	sweep := command.NewReconcileActiveHandler(eventRepo, perUser, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. HEALTH AND METRICS ENDPOINT
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
	health.AddCheck("counter_store", handlers.NewCacheCheck(redisClient))

	obsServer := newObservabilityServer(cfg.Worker.MetricsPort, health)
	go func() {
		log.Info("starting worker observability endpoint", logger.String("address", obsServer.Addr))
		if err := obsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("observability endpoint failed", logger.Err(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obsServer.Shutdown(shutdownCtx)
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sweepJob := jobs.NewReconcileSweepJob(sweep, jobs.ReconcileSweepConfig{
		ActivityWindow: cfg.Worker.ActivityWindow,
		Timeout:        cfg.Worker.SweepTimeout,
	}, slogLogger)

	sched := scheduler.New(slogLogger)
	if err := sched.Register(sweepJob, scheduler.Every(cfg.Worker.ReconcileInterval)); err != nil {
		return fmt.Errorf("failed to register sweep job: %w", err)
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer func() {
		if err := sched.Stop(); err != nil {
			log.Error("scheduler shutdown failed", logger.Err(err))
		}
	}()

	// First sweep immediately on startup rather than one interval later.
	if _, err := sched.RunNow(ctx, sweepJob.Name()); err != nil {
		log.Error("initial reconcile sweep failed", logger.Err(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// newObservabilityServer exposes /metrics and health probes for the
// worker process.
func newObservabilityServer(port int, health *handlers.CompositeHealthChecker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		status := health.Check(r.Context())
		code := http.StatusOK
		if !status.Healthy {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"healthy":%t}`, status.Healthy)
	})

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// setupSlog builds the slog logger used by the scheduler and its jobs.
func setupSlog(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

// connectRedis builds the Redis client from either a URL or individual
// settings.
func connectRedis(cfg *config.Config) (*redis.Client, error) {
	if cfg.Redis.URL != "" {
		return redis.NewClientFromURL(cfg.Redis.URL)
	}

	redisCfg := redis.DefaultConfig()
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
	redisCfg.DialTimeout = cfg.Redis.DialTimeout
	redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	redisCfg.WriteTimeout = cfg.Redis.WriteTimeout
	return redis.NewClient(redisCfg)
}
