package analytics

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/sarisync/sarisync/internal/bus"
	"github.com/sarisync/sarisync/internal/expenses"
	"github.com/sarisync/sarisync/internal/orders"
)

// OrderSource is the read side of the orders store.
type OrderSource interface {
	List() []orders.Order
}

// ExpenseSource is the read side of the expenses store.
type ExpenseSource interface {
	List() []expenses.Expense
}

// Service serves cached read-models and invalidates on collection changes.
type Service struct {
	orders   OrderSource
	expenses ExpenseSource
	cache    *Cache
	log      *slog.Logger

	sub  *bus.Subscription
	done chan struct{}
	wg   sync.WaitGroup
}

// NewService wires the sources with the cache helper. cache may be nil.
func NewService(o OrderSource, e ExpenseSource, cache *Cache, log *slog.Logger) *Service {
	return &Service{orders: o, expenses: e, cache: cache, log: log}
}

// Start subscribes to order and expense changes of either origin and bumps
// the cache version on each. Without Start the service still answers, it
// just may serve stale cached figures until TTL expiry.
func (s *Service) Start(b *bus.Bus) {
	s.sub = b.Subscribe(
		bus.TopicOrders, bus.RemoteTopic("orders"),
		bus.TopicExpenses, bus.RemoteTopic("expenses"),
	)
	s.done = make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.done:
				return
			case _, ok := <-s.sub.C:
				if !ok {
					return
				}
				if err := s.cache.Bump(context.Background()); err != nil {
					s.log.Warn("analytics cache bump failed", "err", err)
				}
			}
		}
	}()
}

// Close releases the bus subscription.
func (s *Service) Close() {
	if s.sub == nil {
		return
	}
	close(s.done)
	s.sub.Close()
	s.wg.Wait()
}

// Summary returns the sales summary for the range and view mode.
func (s *Service) Summary(ctx context.Context, r Range, view ViewMode) (Summary, error) {
	key, err := s.cache.BuildKey(ctx, "analytics", "summary", string(r.Kind),
		strconv.FormatInt(r.From.Unix(), 10), strconv.FormatInt(r.To.Unix(), 10), string(view))
	if err != nil {
		return Summary{}, err
	}
	var out Summary
	err = s.cache.FetchJSON(ctx, key, &out, func(context.Context) (interface{}, error) {
		return SalesSummary(s.orders.List(), s.expenses.List(), r, view), nil
	})
	return out, err
}

// Top returns the top products by metric.
func (s *Service) Top(ctx context.Context, metric ProductMetric, n int) ([]ProductStat, error) {
	if n <= 0 {
		n = DefaultTopN
	}
	key, err := s.cache.BuildKey(ctx, "analytics", "top", string(metric), strconv.Itoa(n))
	if err != nil {
		return nil, err
	}
	var out []ProductStat
	err = s.cache.FetchJSON(ctx, key, &out, func(context.Context) (interface{}, error) {
		return TopProducts(s.orders.List(), metric, n), nil
	})
	return out, err
}

// Customers returns the per-customer analytics.
func (s *Service) Customers(ctx context.Context) ([]Customer, error) {
	key, err := s.cache.BuildKey(ctx, "analytics", "customers")
	if err != nil {
		return nil, err
	}
	var out []Customer
	err = s.cache.FetchJSON(ctx, key, &out, func(context.Context) (interface{}, error) {
		return Customers(s.orders.List()), nil
	})
	return out, err
}
