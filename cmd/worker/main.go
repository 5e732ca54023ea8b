// Package main is the entrypoint for the GraphaRNA orchestration worker. It
// drains the task queue, drives the prediction engine and sweeps expired jobs.
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

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/cache"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/config"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/engine"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/notify"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/observability"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/orchestrator"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/queue"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/render"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/retention"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/rna"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/storage"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/store"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/worker"
	"go.opentelemetry.io/otel"
)

// metricsAddr serves /metrics for the worker process.
const metricsAddr = ":9091"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "worker_id", cfg.Worker.ID, "concurrency", cfg.Worker.Concurrency)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	redisClient, err := cache.NewClient(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis client: %w", err)
	}
	defer redisClient.Close()
	redisCache := cache.NewRedisCacheFromClient(redisClient)
	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer shutdownMetrics(context.Background())
	metrics := observability.NewMetrics(otel.GetMeterProvider())

	files, err := storage.New(cfg.Storage.Root)
	if err != nil {
		return fmt.Errorf("open shared volume: %w", err)
	}
	renderer, err := render.New(render.Config(cfg.Render))
	if err != nil {
		return fmt.Errorf("configure rendering: %w", err)
	}
	validatorCfg := rna.DefaultConfig()
	validatorCfg.MaxLength = cfg.Validation.MaxLength
	validator, err := rna.NewValidator(validatorCfg)
	if err != nil {
		return fmt.Errorf("create validator: %w", err)
	}

	pgStore := store.NewPostgresStore(pool)
	orch := orchestrator.New(orchestrator.Deps{
		Store:     pgStore,
		Cache:     redisCache,
		Engine:    engine.NewHTTPClient(cfg.Engine.BaseURL, cfg.Engine.Timeout),
		Files:     files,
		Renderer:  renderer,
		Notifier:  notify.NewRedisOutbox(redisClient, notify.DefaultKey),
		Validator: validator,
		Metrics:   metrics,
	}, settings(cfg))

	tasks := queue.NewRedisQueue(redisClient, queue.DefaultKey, queue.WithConsumer(cfg.Worker.ID))
	workers := worker.New(tasks, orch, pgStore, worker.Config{
		Concurrency: cfg.Worker.Concurrency,
		DequeueWait: cfg.Worker.DequeueWait,
	})
	sweeper := retention.NewSweeper(pgStore, files, metrics, cfg.Retention.SweepInterval)
	go sweeper.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler)
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	// Blocks until the signal context is cancelled and in-flight jobs drain.
	if err := workers.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker pool: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("metrics server shutdown", "error", err)
	}

	slog.Info("worker stopped gracefully")
	return nil
}

func settings(cfg *config.Config) orchestrator.Settings {
	return orchestrator.Settings{
		MaxRetries:   cfg.Engine.MaxRetries,
		RetryDelay:   cfg.Engine.RetryDelay,
		PollInterval: cfg.Engine.PollInterval,
		PollTimeout:  cfg.Engine.PollTimeout,
		Retention:    cfg.Retention.Period,
	}
}
