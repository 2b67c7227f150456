package inventory

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the derived stock status. It is a pure function of the stock
// count and is never stored.
type Status string

const (
	StatusInStock    Status = "in-stock"
	StatusLowStock   Status = "low-stock"
	StatusOutOfStock Status = "out-of-stock"
)

// DefaultLowStockThreshold is the stock level at or below which an item
// counts as low-stock.
const DefaultLowStockThreshold = 10

// StatusFor derives the status for a stock count against a threshold.
func StatusFor(stock, threshold int) Status {
	switch {
	case stock <= 0:
		return StatusOutOfStock
	case stock <= threshold:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// DefaultCategories is the fixed reference category list seeded into the
// remote store at startup.
var DefaultCategories = []string{
	"Beverages",
	"Snacks",
	"Canned Goods",
	"Condiments",
	"Rice & Grains",
	"Household",
	"Personal Care",
	"Frozen",
}

// Item is one inventory entry. Category is an open string set anchored by
// the seeded reference list.
type Item struct {
	ID        string          `json:"id"`
	Name      string          `json:"name" validate:"required"`
	Category  string          `json:"category"`
	Stock     int             `json:"stock" validate:"gte=0"`
	Price     decimal.Decimal `json:"price"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// ErrNegativePrice rejects items priced below zero.
var ErrNegativePrice = errors.New("price must be >= 0")

// Status derives the stock status using the default threshold.
func (i Item) Status() Status {
	return StatusFor(i.Stock, DefaultLowStockThreshold)
}

func (i *Item) EntityID() string    { return i.ID }
func (i *Item) Modified() time.Time { return i.UpdatedAt }

func (i *Item) Stamp(id string, at time.Time) {
	i.ID = id
	i.UpdatedAt = at.UTC()
}

func (i *Item) Normalize() {
	i.Name = strings.TrimSpace(i.Name)
	i.Category = strings.TrimSpace(i.Category)
	if i.Category == "" {
		i.Category = "Uncategorized"
	}
}

func (i *Item) Validate() error {
	if i.Price.IsNegative() {
		return ErrNegativePrice
	}
	return nil
}
