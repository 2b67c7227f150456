package inventory

import (
	"log/slog"

	"github.com/sarisync/sarisync/internal/bus"
	"github.com/sarisync/sarisync/internal/localcache"
	"github.com/sarisync/sarisync/internal/shared"
	"github.com/sarisync/sarisync/internal/store"
)

// Store owns the inventory collection.
type Store struct {
	*store.Store[Item, *Item]
	threshold int
}

// NewStore builds the inventory store. A non-positive threshold falls back
// to the default.
func NewStore(cache *localcache.Store, b *bus.Bus, log *slog.Logger, threshold int) (*Store, error) {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	inner, err := store.New[Item, *Item](localcache.NSInventory, cache, b, log)
	if err != nil {
		return nil, err
	}
	return &Store{Store: inner, threshold: threshold}, nil
}

// Threshold returns the configured low-stock threshold.
func (s *Store) Threshold() int { return s.threshold }

// StatusOf derives an item's status against the configured threshold.
func (s *Store) StatusOf(item Item) Status {
	return StatusFor(item.Stock, s.threshold)
}

// AdjustStock applies a stock delta to the item. The store-level gte
// constraint rejects a resulting negative count.
func (s *Store) AdjustStock(id string, delta int) (Item, error) {
	item, ok := s.Get(id)
	if !ok {
		var zero Item
		return zero, shared.ErrNotFound
	}
	item.Stock += delta
	return s.Upsert(item)
}
