// Package main is the entrypoint for the GraphaRNA API server.
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

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/api"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/api/handler"
	mw "github.com/GraphaRNA-web/GraphaRNA-web/internal/api/middleware"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/api/response"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/cache"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/config"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/engine"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/observability"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/queue"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/rna"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/storage"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/store"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/submit"
	"go.opentelemetry.io/otel"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "engine", cfg.Engine.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Redis: cache, rate limits and the task queue share one client
	redisClient, err := cache.NewClient(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis client: %w", err)
	}
	defer redisClient.Close()

	redisCache := cache.NewRedisCacheFromClient(redisClient)
	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Metrics
	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer shutdownMetrics(context.Background())
	metrics := observability.NewMetrics(otel.GetMeterProvider())

	// 6. Shared volume and validator
	files, err := storage.New(cfg.Storage.Root)
	if err != nil {
		return fmt.Errorf("open shared volume: %w", err)
	}
	validatorCfg := rna.DefaultConfig()
	validatorCfg.MaxLength = cfg.Validation.MaxLength
	validator, err := rna.NewValidator(validatorCfg)
	if err != nil {
		return fmt.Errorf("create validator: %w", err)
	}

	// 7. Services
	pgStore := store.NewPostgresStore(pool)
	engineClient := engine.NewHTTPClient(cfg.Engine.BaseURL, cfg.Engine.Timeout)
	svc := submit.NewService(submit.Deps{
		Store:     pgStore,
		Cache:     redisCache,
		Queue:     queue.NewRedisQueue(redisClient, queue.DefaultKey),
		Files:     files,
		Validator: validator,
		Metrics:   metrics,
	}, cfg.Validation.CacheTTL)

	// 8. Build router with dependencies
	deps := api.Dependencies{
		SubmitLimit:   mw.NewRateLimit(redisCache, "submit", cfg.RateLimit.Requests, cfg.RateLimit.Window),
		ValidateLimit: mw.NewRateLimit(redisCache, "validate", cfg.RateLimit.Requests*5, cfg.RateLimit.Window),

		MetricsHandler: metricsHandler,

		HealthHandler:       healthHandler(pgStore, redisCache, engineClient),
		ValidateHandler:     handler.NewValidateHandler(svc),
		SubmitHandler:       handler.NewSubmitHandler(svc),
		SuggestHandler:      handler.NewSuggestHandler(svc),
		ExampleHandler:      handler.NewExampleHandler(svc),
		ActiveJobsHandler:   handler.NewListJobsHandler(pgStore, false),
		FinishedJobsHandler: handler.NewListJobsHandler(pgStore, true),
		GetJobHandler:       handler.NewGetJobHandler(pgStore, files),
		JobStatusHandler:    handler.NewJobStatusHandler(pgStore, redisCache),
		ArchiveHandler:      handler.NewArchiveHandler(pgStore, files),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

type readier interface {
	Ready(ctx context.Context) error
}

// healthHandler checks database, cache and engine connectivity.
func healthHandler(s pinger, c pinger, e readier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
			"engine":   "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}
		if err := e.Ready(r.Context()); err != nil {
			checks["engine"] = "degraded"
		}

		for _, status := range checks {
			if status != "ok" {
				response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
					"One or more services degraded", checks)
				return
			}
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
