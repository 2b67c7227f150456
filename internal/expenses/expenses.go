// Package expenses owns the expense ledger: flat entries with no derived
// fields.
package expenses

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sarisync/sarisync/internal/bus"
	"github.com/sarisync/sarisync/internal/localcache"
	"github.com/sarisync/sarisync/internal/store"
)

// ErrNegativeAmount rejects expense amounts below zero.
var ErrNegativeAmount = errors.New("amount must be >= 0")

// Expense is one ledger entry.
type Expense struct {
	ID          string          `json:"id"`
	Description string          `json:"description" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Date        time.Time       `json:"date"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (e *Expense) EntityID() string    { return e.ID }
func (e *Expense) Modified() time.Time { return e.UpdatedAt }

func (e *Expense) Stamp(id string, at time.Time) {
	e.ID = id
	e.UpdatedAt = at.UTC()
}

func (e *Expense) Normalize() {
	e.Description = strings.TrimSpace(e.Description)
	e.Category = strings.TrimSpace(e.Category)
	if e.Date.IsZero() {
		e.Date = e.UpdatedAt
	}
	e.Date = e.Date.UTC()
}

func (e *Expense) Validate() error {
	if e.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// Store owns the expenses collection.
type Store struct {
	*store.Store[Expense, *Expense]
}

// NewStore builds the expenses store.
func NewStore(cache *localcache.Store, b *bus.Bus, log *slog.Logger) (*Store, error) {
	inner, err := store.New[Expense, *Expense](localcache.NSExpenses, cache, b, log)
	if err != nil {
		return nil, err
	}
	return &Store{Store: inner}, nil
}
