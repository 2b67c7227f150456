package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sarisync/sarisync/internal/orders"
)

// ProductMetric selects the ranking criterion for top products.
type ProductMetric string

const (
	MetricOrders   ProductMetric = "orders"
	MetricRevenue  ProductMetric = "revenue"
	MetricQuantity ProductMetric = "quantity"
)

// DefaultTopN is the truncation applied when no explicit limit is given.
const DefaultTopN = 10

// ProductStat accumulates per-product figures across order line items.
type ProductStat struct {
	Name     string          `json:"name"`
	Orders   int             `json:"orders"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// TopProducts groups line items by product name, sorts by the selected
// metric descending and truncates to the top n. Ties keep first-encounter
// order.
func TopProducts(orderList []orders.Order, metric ProductMetric, n int) []ProductStat {
	if n <= 0 {
		n = DefaultTopN
	}
	index := make(map[string]int)
	var stats []ProductStat
	for _, o := range orderList {
		counted := make(map[string]bool)
		for _, line := range o.Items {
			i, ok := index[line.Name]
			if !ok {
				i = len(stats)
				index[line.Name] = i
				stats = append(stats, ProductStat{Name: line.Name, Revenue: decimal.Zero})
			}
			if !counted[line.Name] {
				stats[i].Orders++
				counted[line.Name] = true
			}
			stats[i].Quantity += line.Quantity
			stats[i].Revenue = stats[i].Revenue.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
	}
	sort.SliceStable(stats, func(a, b int) bool {
		switch metric {
		case MetricRevenue:
			return stats[a].Revenue.GreaterThan(stats[b].Revenue)
		case MetricQuantity:
			return stats[a].Quantity > stats[b].Quantity
		default:
			return stats[a].Orders > stats[b].Orders
		}
	})
	if len(stats) > n {
		stats = stats[:n]
	}
	return stats
}
