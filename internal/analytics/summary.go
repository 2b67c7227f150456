// Package analytics computes the read-models over the orders and expenses
// collections. Everything here is a pure fold: no persisted state, safe to
// recompute on demand or on collection-changed events.
package analytics

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sarisync/sarisync/internal/expenses"
	"github.com/sarisync/sarisync/internal/orders"
)

// ViewMode selects the bucket grouping of the sales summary.
type ViewMode string

const (
	ViewDaily   ViewMode = "daily"
	ViewMonthly ViewMode = "monthly"
	ViewYearly  ViewMode = "yearly"
)

// Bucket is one chart category. The bucket set is always complete for the
// view mode, so charts never show missing categories.
type Bucket struct {
	Label   string          `json:"label"`
	Orders  int             `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

// Summary is the sales dashboard read-model for one range.
type Summary struct {
	Range Range    `json:"range"`
	View  ViewMode `json:"view"`
	// TotalOrders counts every in-range order; revenue figures only count
	// settled ones.
	TotalOrders int             `json:"totalOrders"`
	PaidOrders  int             `json:"paidOrders"`
	Revenue     decimal.Decimal `json:"revenue"`
	Expenses    decimal.Decimal `json:"expenses"`
	Profit      decimal.Decimal `json:"profit"`
	Buckets     []Bucket        `json:"buckets"`
}

var weekdayLabels = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// SalesSummary folds orders and expenses over the range.
func SalesSummary(orderList []orders.Order, expenseList []expenses.Expense, r Range, view ViewMode) Summary {
	s := Summary{
		Range:    r,
		View:     view,
		Revenue:  decimal.Zero,
		Expenses: decimal.Zero,
		Buckets:  emptyBuckets(r, view),
	}
	index := bucketIndex(r, view)

	for _, o := range orderList {
		if !r.Contains(o.PlacedAt) {
			continue
		}
		s.TotalOrders++
		if !o.IsPaid() {
			continue
		}
		s.PaidOrders++
		total := o.Total()
		s.Revenue = s.Revenue.Add(total)
		if i, ok := index(o.PlacedAt); ok {
			s.Buckets[i].Orders++
			s.Buckets[i].Revenue = s.Buckets[i].Revenue.Add(total)
		}
	}
	for _, e := range expenseList {
		if !r.Contains(e.Date) {
			continue
		}
		s.Expenses = s.Expenses.Add(e.Amount)
	}
	s.Profit = s.Revenue.Sub(s.Expenses)
	return s
}

func emptyBuckets(r Range, view ViewMode) []Bucket {
	var labels []string
	switch view {
	case ViewMonthly:
		labels = make([]string, 12)
		for m := time.January; m <= time.December; m++ {
			labels[m-1] = m.String()[:3]
		}
	case ViewYearly:
		for y := r.From.Year(); y <= r.To.Year(); y++ {
			labels = append(labels, fmt.Sprintf("%d", y))
		}
	default:
		labels = weekdayLabels
	}
	buckets := make([]Bucket, len(labels))
	for i, label := range labels {
		buckets[i] = Bucket{Label: label, Revenue: decimal.Zero}
	}
	return buckets
}

func bucketIndex(r Range, view ViewMode) func(time.Time) (int, bool) {
	switch view {
	case ViewMonthly:
		return func(t time.Time) (int, bool) {
			return int(t.UTC().Month()) - 1, true
		}
	case ViewYearly:
		return func(t time.Time) (int, bool) {
			i := t.UTC().Year() - r.From.Year()
			return i, i >= 0 && t.UTC().Year() <= r.To.Year()
		}
	default:
		return func(t time.Time) (int, bool) {
			return int(t.UTC().Weekday()), true
		}
	}
}
