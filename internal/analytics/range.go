package analytics

import "time"

// RangeKind names the preset date-range predicates.
type RangeKind string

const (
	RangeToday  RangeKind = "today"
	RangeWeek   RangeKind = "week"
	RangeMonth  RangeKind = "month"
	RangeCustom RangeKind = "custom"
)

// Range is an inclusive date-range predicate.
type Range struct {
	Kind RangeKind `json:"kind"`
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Today covers the calendar day of now.
func Today(now time.Time) Range {
	now = now.UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return Range{Kind: RangeToday, From: from, To: from.AddDate(0, 0, 1).Add(-time.Nanosecond)}
}

// ThisWeek covers the calendar week of now, starting Monday.
func ThisWeek(now time.Time) Range {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	from := day.AddDate(0, 0, -offset)
	return Range{Kind: RangeWeek, From: from, To: from.AddDate(0, 0, 7).Add(-time.Nanosecond)}
}

// ThisMonth covers the calendar month of now.
func ThisMonth(now time.Time) Range {
	now = now.UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Range{Kind: RangeMonth, From: from, To: from.AddDate(0, 1, 0).Add(-time.Nanosecond)}
}

// Custom covers [from, to] inclusive.
func Custom(from, to time.Time) Range {
	return Range{Kind: RangeCustom, From: from.UTC(), To: to.UTC()}
}

// Contains reports whether t falls inside the range, boundaries included.
func (r Range) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(r.From) && !t.After(r.To)
}
