package query

import (
	"cmp"
	"math"
	"slices"
	"time"
)

// Clock supplies "now". Time-window filters and stats take it explicitly
// so results are reproducible.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Fixed returns a clock pinned at t.
func Fixed(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

// CountBy counts items per key.
func CountBy[T any, K comparable](items []T, key func(T) K) map[K]int {
	out := make(map[K]int)
	for _, item := range items {
		out[key(item)]++
	}
	return out
}

// Count counts items satisfying cond.
func Count[T any](items []T, cond func(T) bool) int {
	n := 0
	for _, item := range items {
		if cond(item) {
			n++
		}
	}
	return n
}

// SumBy sums value over items satisfying cond. A nil cond sums everything.
func SumBy[T any](items []T, cond func(T) bool, value func(T) float64) float64 {
	var sum float64
	for _, item := range items {
		if cond == nil || cond(item) {
			sum += value(item)
		}
	}
	return sum
}

// Average divides sum by count with the denominator floored at 1.
func Average(sum float64, count int) float64 {
	return sum / float64(max(count, 1))
}

// Percent returns num/den*100 clamped to [0, 100]; 0 when den is 0.
func Percent(num, den int) float64 {
	if den <= 0 || num <= 0 {
		return 0
	}
	p := float64(num) / float64(den) * 100
	if math.IsNaN(p) {
		return 0
	}
	return math.Min(p, 100)
}

// Group is one row of a top-N grouping.
type Group[K comparable] struct {
	Key   K       `json:"key"`
	Label string  `json:"label"`
	Count int     `json:"count"`
	Value float64 `json:"value"`
}

// TopN groups items by key, sums count and value per group, sorts by value
// descending and keeps the first n. Ties keep first-seen order. Items whose
// key is the zero value are skipped.
func TopN[T any, K comparable](items []T, n int, key func(T) (K, string), value func(T) float64) []Group[K] {
	var zero K
	index := make(map[K]int)
	var groups []Group[K]
	for _, item := range items {
		k, label := key(item)
		if k == zero {
			continue
		}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group[K]{Key: k, Label: label})
		}
		groups[i].Count++
		groups[i].Value += value(item)
	}
	slices.SortStableFunc(groups, func(a, b Group[K]) int {
		return cmp.Compare(b.Value, a.Value)
	})
	if n >= 0 && len(groups) > n {
		groups = groups[:n]
	}
	if groups == nil {
		groups = []Group[K]{}
	}
	return groups
}

// IsToday reports whether t falls on now's calendar day in now's location.
func IsToday(t *time.Time, now time.Time) bool {
	if t == nil {
		return false
	}
	y1, m1, d1 := t.In(now.Location()).Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// WithinLastWeek reports whether t lies in the rolling 7 days up to now.
func WithinLastWeek(t *time.Time, now time.Time) bool {
	return within(t, now.AddDate(0, 0, -7), now)
}

// WithinLastMonth reports whether t lies in the rolling month up to now.
func WithinLastMonth(t *time.Time, now time.Time) bool {
	return within(t, now.AddDate(0, -1, 0), now)
}

func within(t *time.Time, from, to time.Time) bool {
	if t == nil {
		return false
	}
	return !t.Before(from) && !t.After(to)
}
