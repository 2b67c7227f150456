package orders

import (
	"log/slog"
	"time"

	"github.com/sarisync/sarisync/internal/shared"
)

// Service coordinates order lifecycle operations across the orders and
// prepared-orders stores.
type Service struct {
	orders   *Store
	prepared *PreparedStore
	log      *slog.Logger
	now      func() time.Time
}

// NewService wires the two stores.
func NewService(orders *Store, prepared *PreparedStore, log *slog.Logger) *Service {
	return &Service{
		orders:   orders,
		prepared: prepared,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Orders exposes the underlying orders store.
func (s *Service) Orders() *Store { return s.orders }

// Prepared exposes the underlying prepared-orders store.
func (s *Service) Prepared() *PreparedStore { return s.prepared }

// Create validates and stores a new order in its draft state, assigning
// the next order number when none is given. An order linked to a prepared
// batch depletes it; the batch flips to consumed when nothing remains.
func (s *Service) Create(o Order) (Order, error) {
	o.ID = ""
	if o.Number == "" {
		o.Number = s.orders.NextNumber(s.now())
	}
	created, err := s.orders.Upsert(o)
	if err != nil {
		return Order{}, err
	}
	if created.IsPreparedOrder() {
		s.refreshBatch(created.PreparedOrderID)
	}
	return created, nil
}

// Settle marks the order paid with the given method. Settling an already
// paid order is a no-op.
func (s *Service) Settle(id string, method PaymentMethod) (Order, error) {
	o, ok := s.orders.Get(id)
	if !ok {
		return Order{}, shared.ErrNotFound
	}
	if o.IsPaid() {
		return o, nil
	}
	o.PaymentStatus = PaymentPaid
	o.PaymentMethod = method
	return s.orders.Upsert(o)
}

// Correct applies an administrative correction, the only mutation allowed
// on a settled order.
func (s *Service) Correct(id string, mutate func(*Order)) (Order, error) {
	o, ok := s.orders.Get(id)
	if !ok {
		return Order{}, shared.ErrNotFound
	}
	mutate(&o)
	// Bypass the settlement guard deliberately.
	corrected, err := s.orders.Store.Upsert(o)
	if err != nil {
		return Order{}, err
	}
	s.log.Info("administrative order correction", "order", id, "number", corrected.Number)
	return corrected, nil
}

// BatchRemaining reports the remaining quantities of a prepared batch.
func (s *Service) BatchRemaining(batchID string) (map[string]int, error) {
	batch, ok := s.prepared.Get(batchID)
	if !ok {
		return nil, shared.ErrNotFound
	}
	return Remaining(batch, s.orders.List()), nil
}

func (s *Service) refreshBatch(batchID string) {
	batch, ok := s.prepared.Get(batchID)
	if !ok {
		s.log.Warn("order links unknown prepared batch", "batch", batchID)
		return
	}
	status := PreparedStatusReady
	if RemainingTotal(batch, s.orders.List()) == 0 {
		status = PreparedStatusConsumed
	}
	if batch.Status == status {
		return
	}
	batch.Status = status
	if _, err := s.prepared.Upsert(batch); err != nil {
		s.log.Warn("prepared batch status update failed", "batch", batchID, "err", err)
	}
}
