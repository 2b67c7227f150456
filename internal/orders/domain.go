package orders

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus tracks order settlement.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentNotPaid PaymentStatus = "not-paid"
)

// PaymentMethod enumerates accepted tenders.
type PaymentMethod string

const (
	MethodCash  PaymentMethod = "cash"
	MethodGCash PaymentMethod = "gcash"
)

var (
	// ErrOrderImmutable rejects edits to a settled order outside an
	// administrative correction.
	ErrOrderImmutable = errors.New("orders: paid order is immutable")
	// ErrNegativeLinePrice rejects lines priced below zero.
	ErrNegativeLinePrice = errors.New("orders: line price must be >= 0")
)

// LineItem is one sold product line.
type LineItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name" validate:"required"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity" validate:"gt=0"`
}

// Order is one point-of-sale order. It is created not-paid and becomes
// immutable once settled, except through an administrative correction.
type Order struct {
	ID            string        `json:"id"`
	Number        string        `json:"orderNumber"`
	CustomerName  string        `json:"customerName" validate:"required"`
	PlacedAt      time.Time     `json:"placedAt"`
	Items         []LineItem    `json:"items" validate:"min=1,dive"`
	PaymentStatus PaymentStatus `json:"paymentStatus" validate:"oneof=paid not-paid"`
	PaymentMethod PaymentMethod `json:"paymentMethod,omitempty" validate:"omitempty,oneof=cash gcash"`
	// PreparedOrderID links the order to the pre-cooked batch it depletes.
	PreparedOrderID string    `json:"preparedOrderId,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Total derives the order sum. It is never stored.
func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range o.Items {
		total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

// IsPaid reports whether the order settled.
func (o Order) IsPaid() bool { return o.PaymentStatus == PaymentPaid }

// IsPreparedOrder reports whether the order originates from a prepared
// batch.
func (o Order) IsPreparedOrder() bool { return o.PreparedOrderID != "" }

func (o *Order) EntityID() string    { return o.ID }
func (o *Order) Modified() time.Time { return o.UpdatedAt }

func (o *Order) Stamp(id string, at time.Time) {
	o.ID = id
	o.UpdatedAt = at.UTC()
}

func (o *Order) Normalize() {
	o.CustomerName = strings.TrimSpace(o.CustomerName)
	if o.PaymentStatus == "" {
		o.PaymentStatus = PaymentNotPaid
	}
	if o.PlacedAt.IsZero() {
		o.PlacedAt = o.UpdatedAt
	}
	o.PlacedAt = o.PlacedAt.UTC()
}

func (o *Order) Validate() error {
	for _, line := range o.Items {
		if line.Price.IsNegative() {
			return fmt.Errorf("%w: %s", ErrNegativeLinePrice, line.Name)
		}
	}
	return nil
}

// PreparedStatus tracks a pre-cooked batch lifecycle.
type PreparedStatus string

const (
	PreparedStatusReady    PreparedStatus = "prepared"
	PreparedStatusConsumed PreparedStatus = "consumed"
)

// PreparedLine is one pre-cooked item quantity in a batch.
type PreparedLine struct {
	Name     string `json:"name" validate:"required"`
	Quantity int    `json:"preparedQuantity" validate:"gt=0"`
}

// PreparedOrder is a batch of pre-cooked quantities that depletes as
// linked orders are created against it.
type PreparedOrder struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	PreparedAt time.Time      `json:"preparedAt"`
	Lines      []PreparedLine `json:"lines" validate:"min=1,dive"`
	Status     PreparedStatus `json:"status" validate:"omitempty,oneof=prepared consumed"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// PreparedTotal sums the batch quantities.
func (p PreparedOrder) PreparedTotal() int {
	total := 0
	for _, line := range p.Lines {
		total += line.Quantity
	}
	return total
}

func (p *PreparedOrder) EntityID() string    { return p.ID }
func (p *PreparedOrder) Modified() time.Time { return p.UpdatedAt }

func (p *PreparedOrder) Stamp(id string, at time.Time) {
	p.ID = id
	p.UpdatedAt = at.UTC()
}

func (p *PreparedOrder) Normalize() {
	p.Label = strings.TrimSpace(p.Label)
	if p.Status == "" {
		p.Status = PreparedStatusReady
	}
	if p.PreparedAt.IsZero() {
		p.PreparedAt = p.UpdatedAt
	}
	p.PreparedAt = p.PreparedAt.UTC()
}

func (p *PreparedOrder) Validate() error { return nil }

// Remaining computes per-line remaining quantities for a batch given the
// orders linked to it: max(0, prepared − sold), independent of the order
// in which linked orders were created.
func Remaining(batch PreparedOrder, linked []Order) map[string]int {
	sold := make(map[string]int)
	for _, o := range linked {
		if o.PreparedOrderID != batch.ID {
			continue
		}
		for _, line := range o.Items {
			sold[line.Name] += line.Quantity
		}
	}
	out := make(map[string]int, len(batch.Lines))
	for _, line := range batch.Lines {
		rem := line.Quantity - sold[line.Name]
		if rem < 0 {
			rem = 0
		}
		out[line.Name] = rem
	}
	return out
}

// RemainingTotal sums Remaining over all batch lines.
func RemainingTotal(batch PreparedOrder, linked []Order) int {
	total := 0
	for _, rem := range Remaining(batch, linked) {
		total += rem
	}
	return total
}
