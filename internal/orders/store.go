package orders

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sarisync/sarisync/internal/bus"
	"github.com/sarisync/sarisync/internal/localcache"
	"github.com/sarisync/sarisync/internal/store"
)

// Store owns the orders collection and enforces settlement immutability.
type Store struct {
	*store.Store[Order, *Order]
}

// NewStore builds the orders store.
func NewStore(cache *localcache.Store, b *bus.Bus, log *slog.Logger) (*Store, error) {
	inner, err := store.New[Order, *Order](localcache.NSOrders, cache, b, log)
	if err != nil {
		return nil, err
	}
	return &Store{Store: inner}, nil
}

// Upsert rejects modification of a settled order. Administrative
// corrections go through Service.Correct.
func (s *Store) Upsert(o Order) (Order, error) {
	if o.ID != "" {
		if prev, ok := s.Store.Get(o.ID); ok && prev.IsPaid() {
			var zero Order
			return zero, ErrOrderImmutable
		}
	}
	return s.Store.Upsert(o)
}

// NextNumber returns the next human-readable order number for the day,
// derived from the numbers already in the collection.
func (s *Store) NextNumber(at time.Time) string {
	prefix := fmt.Sprintf("ORD-%s-", at.UTC().Format("20060102"))
	max := 0
	for _, o := range s.List() {
		if !strings.HasPrefix(o.Number, prefix) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(o.Number, prefix)); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s%04d", prefix, max+1)
}

// PreparedStore owns the prepared-orders collection.
type PreparedStore struct {
	*store.Store[PreparedOrder, *PreparedOrder]
}

// NewPreparedStore builds the prepared-orders store.
func NewPreparedStore(cache *localcache.Store, b *bus.Bus, log *slog.Logger) (*PreparedStore, error) {
	inner, err := store.New[PreparedOrder, *PreparedOrder](localcache.NSPreparedOrders, cache, b, log)
	if err != nil {
		return nil, err
	}
	return &PreparedStore{Store: inner}, nil
}
