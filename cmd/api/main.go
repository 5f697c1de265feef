// Package main is the entry point for the Arcade Events API server.
//
// The service records player activity events in a durable PostgreSQL log
// and maintains per-user score counters in Redis. The log is the source
// of truth; counters are a projection that is healed by retry and
// reconciliation when it drifts.
//
// The architecture follows Clean Architecture and DDD:
//   - Domain: pure business logic without external dependencies
//   - Application: use case orchestration (Commands/Queries)
//   - Infrastructure: repositories, counter store, aggregation queue
//   - Interface: HTTP handlers
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
	"github.com/arcadehub/arcade-events/internal/application/query"
	"github.com/arcadehub/arcade-events/internal/domain/achievement"
	"github.com/arcadehub/arcade-events/internal/domain/stats"
	"github.com/arcadehub/arcade-events/internal/infrastructure/messaging"
	"github.com/arcadehub/arcade-events/internal/infrastructure/metrics"
	"github.com/arcadehub/arcade-events/internal/infrastructure/persistence/postgres"
	"github.com/arcadehub/arcade-events/internal/infrastructure/persistence/redis"
	httpserver "github.com/arcadehub/arcade-events/internal/interface/http"
	"github.com/arcadehub/arcade-events/internal/interface/http/handlers"
	"github.com/arcadehub/arcade-events/pkg/circuitbreaker"
	"github.com/arcadehub/arcade-events/pkg/logger"
	"github.com/arcadehub/arcade-events/pkg/retry"
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
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	// .env is optional; real deployments set environment variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	slogger := setupSlog(cfg)

	log.Info("starting arcade events api",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.Bool("debug", cfg.App.Debug),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE (event log)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		log.Info("running database migrations")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (counter store and stats cache)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to redis")
	redisClient, err := connectRedis(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer func() {
		log.Info("closing redis connection")
		_ = redisClient.Close()
	}()

	log.Info("redis connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REPOSITORIES AND STORES
	// ─────────────────────────────────────────────────────────────────────────
	eventRepo := postgres.NewEventRepository(dbConn)
	scoreCounter := redis.NewScoreCounter(redisClient)

	// The handlers treat a nil achievements repository or cache as the
	// feature being off.
	var achievementRepo achievement.Repository
	if cfg.Features.IsEnabled(config.FeatureGamificationAchievements, nil) {
		achievementRepo = postgres.NewAchievementRepository(dbConn)
	}
	var statsCache stats.Cache
	if cfg.Features.IsEnabled(config.FeatureStatsCache, nil) {
		statsCache = redis.NewStatsCacheWithTTL(redisClient, cfg.Redis.StatsCacheTTL)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. AGGREGATION PIPELINE
	// ─────────────────────────────────────────────────────────────────────────
	breaker := circuitbreaker.CounterBreaker(func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})

	applyHandler := command.NewApplyIncrementHandler(scoreCounter, achievementRepo, statsCache, breaker, log)

	// Increments flow through the buffered queue, or inline on the request
	// goroutine when async aggregation is toggled off.
	var enqueuer stats.Enqueuer
	if cfg.Features.IsEnabled(config.FeatureAggregationAsync, nil) {
		queueCfg := messaging.DefaultQueueConfig()
		queueCfg.BufferSize = cfg.Queue.BufferSize
		queueCfg.WorkerCount = cfg.Queue.WorkerCount
		queueCfg.MaxDeadLetters = cfg.Queue.MaxDeadLetters
		queueCfg.DrainTimeout = cfg.Queue.DrainTimeout
		queueCfg.Logger = slogger
		if !cfg.Features.IsEnabled(config.FeatureAggregationRetries, nil) {
			queueCfg.Retrier = retry.New(retry.WithMaxAttempts(1))
		}

		queue := messaging.NewQueue(applyHandler, queueCfg)
		queue.Start(ctx)
		defer func() {
			log.Info("draining aggregation queue")
			_ = queue.Close()
		}()

		// Sample queue depth for the metrics endpoint.
		go func() {
			ticker := time.NewTicker(5 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					metrics.QueueDepth.Set(float64(queue.Depth()))
				}
			}
		}()

		enqueuer = queue
	} else {
		log.Info("async aggregation disabled, applying increments inline")
		enqueuer = messaging.NewInlineEnqueuer(applyHandler)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. APPLICATION LAYER (Commands and Queries)
	// ─────────────────────────────────────────────────────────────────────────
	submitHandler := command.NewSubmitEventHandler(eventRepo, enqueuer, nil, log)
	reconcileHandler := command.NewReconcileUserHandler(eventRepo, scoreCounter, statsCache, nil, log)

	selfHeal := cfg.Features.IsEnabled(config.FeatureStatsSelfHeal, nil)
	statsHandler := query.NewGetStatsHandler(eventRepo, scoreCounter, achievementRepo, statsCache, nil, selfHeal, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
	// Counter store outage degrades health but not readiness: writes
	// still commit to the log and reads fall back to replay.
	health.AddNonCriticalCheck("counter_store", handlers.NewCacheCheck(redisClient))

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpserver.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.MaxHeaderBytes = cfg.HTTP.MaxHeaderBytes
	httpCfg.MaxBodyBytes = cfg.HTTP.MaxBodyBytes
	httpCfg.EnableCORS = cfg.HTTP.EnableCORS
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpCfg.EnableMetrics = cfg.Observability.MetricsEnabled
	httpCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpCfg.AdminKeyHeader = cfg.HTTP.AdminKeyHeader
	httpCfg.AdminKeyHash = cfg.HTTP.AdminKeyHash

	server := httpserver.NewServer(httpCfg, httpserver.Dependencies{
		SubmitEventHandler:   submitHandler,
		ReconcileUserHandler: reconcileHandler,
		GetStatsHandler:      statsHandler,
		Logger:               log,
		HealthChecker:        health,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting http server", logger.String("address", server.Address()))
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("arcade events api is running", logger.String("address", server.Address()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("service error", logger.Err(err))
		return err
	}

	log.Info("starting graceful shutdown", logger.Duration("timeout", cfg.App.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting requests first, then drain the queue via defer so
	// every accepted event gets its increment applied before exit.
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop http server gracefully", logger.Err(err))
		return err
	}

	log.Info("shutdown completed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger configures the application logger.
func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts)
}

// setupSlog configures the structured logger used by the queue.
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
