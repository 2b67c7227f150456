package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sarisync/sarisync/internal/expenses"
	"github.com/sarisync/sarisync/internal/orders"
)

func paidOrder(customer string, placedAt time.Time, total int64) orders.Order {
	return orders.Order{
		CustomerName:  customer,
		PlacedAt:      placedAt,
		PaymentStatus: orders.PaymentPaid,
		Items:         []orders.LineItem{{Name: "Item", Price: decimal.NewFromInt(total), Quantity: 1}},
	}
}

func TestRangePresets(t *testing.T) {
	now := time.Date(2025, 8, 27, 15, 30, 0, 0, time.UTC) // a Wednesday

	today := Today(now)
	require.True(t, today.Contains(now))
	require.True(t, today.Contains(time.Date(2025, 8, 27, 0, 0, 0, 0, time.UTC)))
	require.False(t, today.Contains(time.Date(2025, 8, 28, 0, 0, 0, 0, time.UTC)))

	week := ThisWeek(now)
	require.Equal(t, time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC), week.From, "week starts Monday")
	require.True(t, week.Contains(time.Date(2025, 8, 31, 23, 59, 59, 0, time.UTC)), "Sunday is in the week")
	require.False(t, week.Contains(time.Date(2025, 8, 24, 12, 0, 0, 0, time.UTC)))

	month := ThisMonth(now)
	require.True(t, month.Contains(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)))
	require.True(t, month.Contains(time.Date(2025, 8, 31, 23, 0, 0, 0, time.UTC)))
	require.False(t, month.Contains(time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)))

	custom := Custom(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC))
	require.True(t, custom.Contains(custom.From))
	require.True(t, custom.Contains(custom.To))
}

func TestWeekRangeSelectsOnlyInRangeOrders(t *testing.T) {
	now := time.Date(2025, 8, 27, 12, 0, 0, 0, time.UTC)
	orderList := []orders.Order{
		paidOrder("Ana", time.Date(2025, 8, 25, 9, 0, 0, 0, time.UTC), 100),
		paidOrder("Ben", time.Date(2025, 8, 27, 18, 0, 0, 0, time.UTC), 50),
		paidOrder("Cora", time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC), 999),
	}

	s := SalesSummary(orderList, nil, ThisWeek(now), ViewDaily)
	require.Equal(t, 2, s.TotalOrders)
	require.Equal(t, 2, s.PaidOrders)
	require.True(t, s.Revenue.Equal(decimal.NewFromInt(150)), "got %s", s.Revenue)
}

func TestRevenueCountsPaidOrdersOnly(t *testing.T) {
	now := time.Date(2025, 8, 27, 12, 0, 0, 0, time.UTC)
	unpaid := paidOrder("Dan", now, 500)
	unpaid.PaymentStatus = orders.PaymentNotPaid
	orderList := []orders.Order{paidOrder("Ana", now, 100), unpaid}
	expenseList := []expenses.Expense{
		{Description: "Ice", Amount: decimal.NewFromInt(30), Date: now},
		{Description: "Out of range", Amount: decimal.NewFromInt(999), Date: now.AddDate(0, -1, 0)},
	}

	s := SalesSummary(orderList, expenseList, Today(now), ViewDaily)
	require.Equal(t, 2, s.TotalOrders, "unpaid orders still count")
	require.Equal(t, 1, s.PaidOrders)
	require.True(t, s.Revenue.Equal(decimal.NewFromInt(100)))
	require.True(t, s.Expenses.Equal(decimal.NewFromInt(30)))
	require.True(t, s.Profit.Equal(decimal.NewFromInt(70)))
}

func TestDailyBucketsAreCompleteWeekdays(t *testing.T) {
	now := time.Date(2025, 8, 27, 12, 0, 0, 0, time.UTC)
	s := SalesSummary([]orders.Order{paidOrder("Ana", now, 40)}, nil, ThisWeek(now), ViewDaily)

	require.Len(t, s.Buckets, 7)
	require.Equal(t, "Sun", s.Buckets[0].Label)
	require.Equal(t, "Sat", s.Buckets[6].Label)
	// The 27th is a Wednesday.
	require.Equal(t, 1, s.Buckets[3].Orders)
	require.True(t, s.Buckets[3].Revenue.Equal(decimal.NewFromInt(40)))
	for i, b := range s.Buckets {
		if i == 3 {
			continue
		}
		require.Zero(t, b.Orders)
	}
}

func TestMonthlyBucketsAlwaysTwelve(t *testing.T) {
	r := Custom(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC))
	orderList := []orders.Order{
		paidOrder("Ana", time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), 10),
		paidOrder("Ben", time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), 20),
		paidOrder("Cora", time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), 5),
	}

	s := SalesSummary(orderList, nil, r, ViewMonthly)
	require.Len(t, s.Buckets, 12)
	require.Equal(t, "Jan", s.Buckets[0].Label)
	require.Equal(t, "Dec", s.Buckets[11].Label)
	require.Equal(t, 2, s.Buckets[2].Orders)
	require.True(t, s.Buckets[2].Revenue.Equal(decimal.NewFromInt(30)))
	require.Equal(t, 1, s.Buckets[10].Orders)
}

func TestYearlyBucketsSpanRangeYears(t *testing.T) {
	r := Custom(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC))
	s := SalesSummary([]orders.Order{
		paidOrder("Ana", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), 75),
	}, nil, r, ViewYearly)

	require.Len(t, s.Buckets, 3)
	require.Equal(t, []string{"2023", "2024", "2025"},
		[]string{s.Buckets[0].Label, s.Buckets[1].Label, s.Buckets[2].Label})
	require.Equal(t, 1, s.Buckets[1].Orders)
}

func TestEmptyInputYieldsZeroSummary(t *testing.T) {
	s := SalesSummary(nil, nil, Today(time.Now()), ViewDaily)
	require.Zero(t, s.TotalOrders)
	require.True(t, s.Revenue.Equal(decimal.Zero))
	require.True(t, s.Profit.Equal(decimal.Zero))
	require.Len(t, s.Buckets, 7)
}
