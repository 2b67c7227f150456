package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sarisync/sarisync/internal/orders"
)

// favoriteItemCount caps the per-customer favourite item list.
const favoriteItemCount = 3

// Customer is the per-customer read-model, recomputed on demand by folding
// the orders collection grouped by customer name.
type Customer struct {
	Name          string          `json:"name"`
	MemberSince   time.Time       `json:"memberSince"`
	TotalOrders   int             `json:"totalOrders"`
	TotalSpent    decimal.Decimal `json:"totalSpent"`
	FavoriteItems []string        `json:"favoriteItems"`
}

type customerAcc struct {
	stat      Customer
	itemCount map[string]int
	itemOrder []string
}

// Customers folds the orders collection into per-customer analytics.
// Favourite items rank by frequency; ties break by first-encountered
// order. The result sorts by total spent descending, then name.
func Customers(orderList []orders.Order) []Customer {
	index := make(map[string]int)
	var accs []*customerAcc

	for _, o := range orderList {
		i, ok := index[o.CustomerName]
		if !ok {
			i = len(accs)
			index[o.CustomerName] = i
			accs = append(accs, &customerAcc{
				stat: Customer{
					Name:        o.CustomerName,
					MemberSince: o.PlacedAt,
					TotalSpent:  decimal.Zero,
				},
				itemCount: make(map[string]int),
			})
		}
		acc := accs[i]
		acc.stat.TotalOrders++
		acc.stat.TotalSpent = acc.stat.TotalSpent.Add(o.Total())
		if o.PlacedAt.Before(acc.stat.MemberSince) {
			acc.stat.MemberSince = o.PlacedAt
		}
		for _, line := range o.Items {
			if _, seen := acc.itemCount[line.Name]; !seen {
				acc.itemOrder = append(acc.itemOrder, line.Name)
			}
			acc.itemCount[line.Name] += line.Quantity
		}
	}

	out := make([]Customer, 0, len(accs))
	for _, acc := range accs {
		names := append([]string(nil), acc.itemOrder...)
		sort.SliceStable(names, func(a, b int) bool {
			return acc.itemCount[names[a]] > acc.itemCount[names[b]]
		})
		if len(names) > favoriteItemCount {
			names = names[:favoriteItemCount]
		}
		acc.stat.FavoriteItems = names
		out = append(out, acc.stat)
	}
	sort.SliceStable(out, func(a, b int) bool {
		if !out[a].TotalSpent.Equal(out[b].TotalSpent) {
			return out[a].TotalSpent.GreaterThan(out[b].TotalSpent)
		}
		return out[a].Name < out[b].Name
	})
	return out
}
