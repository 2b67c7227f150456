package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/sarisync/sarisync/internal/analytics"
	"github.com/sarisync/sarisync/internal/app"
	"github.com/sarisync/sarisync/internal/auth"
	"github.com/sarisync/sarisync/internal/bus"
	"github.com/sarisync/sarisync/internal/expenses"
	"github.com/sarisync/sarisync/internal/inventory"
	"github.com/sarisync/sarisync/internal/localcache"
	"github.com/sarisync/sarisync/internal/notifications"
	"github.com/sarisync/sarisync/internal/notifier"
	"github.com/sarisync/sarisync/internal/orders"
	"github.com/sarisync/sarisync/internal/platform/cache"
	"github.com/sarisync/sarisync/internal/platform/db"
	"github.com/sarisync/sarisync/internal/remote"
	syncengine "github.com/sarisync/sarisync/internal/sync"
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

	local, err := localcache.Open(cfg.CachePath)
	if err != nil {
		logger.Error("open local cache", slog.Any("error", err))
		os.Exit(1)
	}
	defer local.Close()

	events := bus.New()

	invStore, err := inventory.NewStore(local, events, logger, cfg.LowStockThreshold)
	if err != nil {
		logger.Error("inventory store", slog.Any("error", err))
		os.Exit(1)
	}
	orderStore, err := orders.NewStore(local, events, logger)
	if err != nil {
		logger.Error("orders store", slog.Any("error", err))
		os.Exit(1)
	}
	preparedStore, err := orders.NewPreparedStore(local, events, logger)
	if err != nil {
		logger.Error("prepared orders store", slog.Any("error", err))
		os.Exit(1)
	}
	noteStore, err := notifications.NewStore(local, events, logger)
	if err != nil {
		logger.Error("notifications store", slog.Any("error", err))
		os.Exit(1)
	}
	expenseStore, err := expenses.NewStore(local, events, logger)
	if err != nil {
		logger.Error("expenses store", slog.Any("error", err))
		os.Exit(1)
	}
	gen := notifier.New(events, invStore, orderStore, noteStore, logger)
	gen.Start()
	defer gen.Close()

	// The remote side is optional at startup: an unreachable Postgres or
	// Redis leaves the engine offline with the local cache as the source
	// of truth.
	var engine *syncengine.Engine
	var analyticsSvc *analytics.Service

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Warn("remote store unreachable, running cache-only", slog.Any("error", err))
	} else {
		defer pool.Close()
	}
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unreachable, running without feed and cache", slog.Any("error", err))
	}

	analyticsCache := analytics.NewCache(redisClient, cfg.AnalyticsCacheTTL)
	analyticsSvc = analytics.NewService(orderStore, expenseStore, analyticsCache, logger)
	analyticsSvc.Start(events)
	defer analyticsSvc.Close()

	if pool != nil && redisClient != nil {
		client := remote.NewClient(pool)
		if err := client.EnsureSchema(ctx); err != nil {
			logger.Warn("remote schema", slog.Any("error", err))
		}

		authRepo := auth.NewPGRepository(pool)
		if err := authRepo.EnsureSchema(ctx); err != nil {
			logger.Warn("auth schema", slog.Any("error", err))
		}
		provider := auth.NewService(authRepo, redisClient, cfg.SessionTTL, logger)

		feed := remote.NewFeed(redisClient)
		engine = syncengine.New(syncengine.Config{
			Remote:       client,
			Feed:         feed,
			Session:      provider,
			Bus:          events,
			Logger:       logger,
			Categories:   inventory.DefaultCategories,
			PullInterval: cfg.SyncPullInterval,
			Stores: []syncengine.Syncable{
				invStore, orderStore, preparedStore, noteStore, expenseStore,
			},
		})
		engine.Start(ctx)
		defer engine.Close()
	}

	// Cross-process cache writers (another tab on the same profile) are
	// detected by the bounded revision poll and reloaded into memory.
	group, gctx := errgroup.WithContext(ctx)
	watch := func(ns string, reload func() error) {
		group.Go(func() error {
			for range local.Watch(gctx, ns, cfg.CachePollRate) {
				if err := reload(); err != nil {
					logger.Warn("cache reload", "ns", ns, slog.Any("error", err))
				}
			}
			return nil
		})
	}
	watch(localcache.NSInventory, invStore.Reload)
	watch(localcache.NSOrders, orderStore.Reload)
	watch(localcache.NSPreparedOrders, preparedStore.Reload)
	watch(localcache.NSNotifications, noteStore.Reload)
	watch(localcache.NSExpenses, expenseStore.Reload)

	logger.Info("sarisync data layer ready",
		"cache", cfg.CachePath,
		"remote", pool != nil,
		"feed", redisClient != nil)

	<-ctx.Done()
	if err := group.Wait(); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
	}
	if engine != nil {
		logger.Info("final sync stats", "stats", engine.Stats())
	}
}
