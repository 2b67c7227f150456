package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sarisync/sarisync/internal/analytics"
	"github.com/sarisync/sarisync/internal/expenses"
	"github.com/sarisync/sarisync/internal/localcache"
	"github.com/sarisync/sarisync/internal/orders"
	"github.com/sarisync/sarisync/internal/remote"
)

// AnalyticsWarmupJob pre-populates the Redis read-model cache from the
// remote collections so dashboards open warm.
type AnalyticsWarmupJob struct {
	Remote *remote.Client
	Cache  *analytics.Cache
	Logger *slog.Logger
	clock  func() time.Time
}

// NewAnalyticsWarmupJob wires dependencies for the warmup handler.
func NewAnalyticsWarmupJob(client *remote.Client, cache *analytics.Cache, logger *slog.Logger) *AnalyticsWarmupJob {
	return &AnalyticsWarmupJob{
		Remote: client,
		Cache:  cache,
		Logger: logger,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

type fixedOrders []orders.Order

func (f fixedOrders) List() []orders.Order { return f }

type fixedExpenses []expenses.Expense

func (f fixedExpenses) List() []expenses.Expense { return f }

// Handle computes the preset summaries, top products and customer
// analytics, populating the versioned cache keys.
func (j *AnalyticsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Remote == nil {
		return errors.New("analytics warmup: handler not configured")
	}
	var payload AnalyticsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	orderList, err := loadCollection[orders.Order](ctx, j.Remote, localcache.NSOrders, j.Logger)
	if err != nil {
		return fmt.Errorf("analytics warmup: %w", err)
	}
	expenseList, err := loadCollection[expenses.Expense](ctx, j.Remote, localcache.NSExpenses, j.Logger)
	if err != nil {
		return fmt.Errorf("analytics warmup: %w", err)
	}

	svc := analytics.NewService(fixedOrders(orderList), fixedExpenses(expenseList), j.Cache, j.Logger)
	now := j.clock()
	presets := []struct {
		r    analytics.Range
		view analytics.ViewMode
	}{
		{analytics.Today(now), analytics.ViewDaily},
		{analytics.ThisWeek(now), analytics.ViewDaily},
		{analytics.ThisMonth(now), analytics.ViewMonthly},
	}
	for _, p := range presets {
		if _, err := svc.Summary(ctx, p.r, p.view); err != nil {
			return fmt.Errorf("analytics warmup: summary %s: %w", p.r.Kind, err)
		}
	}
	if _, err := svc.Top(ctx, analytics.MetricRevenue, payload.TopN); err != nil {
		return fmt.Errorf("analytics warmup: top products: %w", err)
	}
	if _, err := svc.Customers(ctx); err != nil {
		return fmt.Errorf("analytics warmup: customers: %w", err)
	}
	j.Logger.Info("analytics cache warmed", "orders", len(orderList), "expenses", len(expenseList))
	return nil
}

func loadCollection[T any](ctx context.Context, client *remote.Client, collection string, log *slog.Logger) ([]T, error) {
	docs, err := client.List(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var item T
		if err := json.Unmarshal(doc.Payload, &item); err != nil {
			log.Warn("skipping undecodable document", "collection", collection, "id", doc.ID, "err", err)
			continue
		}
		out = append(out, item)
	}
	return out, nil
}
