package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/sarisync/sarisync/internal/analytics"
	"github.com/sarisync/sarisync/internal/app"
	"github.com/sarisync/sarisync/internal/platform/cache"
	"github.com/sarisync/sarisync/internal/platform/db"
	"github.com/sarisync/sarisync/internal/remote"
	"github.com/sarisync/sarisync/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	client := remote.NewClient(pool)
	if err := client.EnsureSchema(ctx); err != nil {
		logger.Warn("remote schema", slog.Any("error", err))
	}
	feed := remote.NewFeed(redisClient)
	analyticsCache := analytics.NewCache(redisClient, cfg.AnalyticsCacheTTL)

	rescan := jobs.NewStockRescanJob(client, feed, redisClient, logger)
	warmup := jobs.NewAnalyticsWarmupJob(client, analyticsCache, logger)
	nudge := jobs.NewSyncNudgeJob(feed, logger)

	rescanTask, err := jobs.NewStockRescanTask(jobs.StockRescanPayload{Threshold: cfg.LowStockThreshold})
	if err != nil {
		logger.Error("build rescan task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewAnalyticsWarmupTask(jobs.AnalyticsWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	nudgeTask, err := jobs.NewSyncNudgeTask(jobs.SyncNudgePayload{})
	if err != nil {
		logger.Error("build nudge task", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}

	// Run a rescan and a cache warmup right away; cron covers the rest.
	queue, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("build queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = queue.Close() }()

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskStockRescan, Handler: rescan.Handle},
			{Type: jobs.TaskAnalyticsWarmup, Handler: warmup.Handle},
			{Type: jobs.TaskSyncNudge, Handler: nudge.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/10 * * * *", Task: rescanTask},
			{Spec: "5 * * * *", Task: warmupTask},
			{Spec: "*/30 * * * *", Task: nudgeTask},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	inspector := asynq.NewInspector(redisOpts)
	router := chi.NewRouter()
	jobs.NewHandler(inspector, logger).MountRoutes(router)
	healthSrv := &http.Server{
		Addr:              cfg.WorkerHealthAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("health server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = healthSrv.Shutdown(shutdownCtx)
	}()

	for _, task := range []*asynq.Task{rescanTask, warmupTask} {
		if _, err := queue.Enqueue(ctx, task); err != nil {
			logger.Warn("startup enqueue", "task", task.Type(), slog.Any("error", err))
		}
	}

	logger.Info("worker ready", "health", cfg.WorkerHealthAddr)
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
