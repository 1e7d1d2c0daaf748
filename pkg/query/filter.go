// Package query holds the generic list machinery shared by every entity view:
// filter predicates, type-aware sorting, pagination and aggregation helpers.
//
// The package knows nothing about concrete entities. Each entity package
// instantiates it with field accessors for its own type.
package query

import (
	"strings"
	"time"
)

// All is the conventional "no constraint" value for enumerated filters.
const All = "all"

// Predicate decides whether an entity passes a single constraint.
type Predicate[T any] func(T) bool

// Filter is a conjunction of predicates. The zero value matches everything.
type Filter[T any] struct {
	preds []Predicate[T]
}

// Where adds p to the conjunction. A nil predicate means "no constraint"
// and is dropped, so constructors can signal an empty filter key by
// returning nil.
func (f *Filter[T]) Where(preds ...Predicate[T]) *Filter[T] {
	for _, p := range preds {
		if p != nil {
			f.preds = append(f.preds, p)
		}
	}
	return f
}

// Len returns the number of active constraints.
func (f *Filter[T]) Len() int {
	if f == nil {
		return 0
	}
	return len(f.preds)
}

// Match reports whether item satisfies every constraint.
func (f *Filter[T]) Match(item T) bool {
	if f == nil {
		return true
	}
	for _, p := range f.preds {
		if !p(item) {
			return false
		}
	}
	return true
}

// Apply returns the matching items in their original order. The input is
// not modified.
func (f *Filter[T]) Apply(items []T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if f.Match(item) {
			out = append(out, item)
		}
	}
	return out
}

// Search matches when the lower-cased term is a substring of any text the
// accessors return.
func Search[T any](term string, fields ...func(T) []string) Predicate[T] {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" || len(fields) == 0 {
		return nil
	}
	return func(item T) bool {
		for _, field := range fields {
			for _, s := range field(item) {
				if s != "" && strings.Contains(strings.ToLower(s), term) {
					return true
				}
			}
		}
		return false
	}
}

// Text adapts single-valued string accessors for Search.
func Text[T any](get func(T) string) func(T) []string {
	return func(item T) []string { return []string{get(item)} }
}

// Equal matches exact equality. An empty value or All disables it.
func Equal[T any, V ~string](want V, get func(T) V) Predicate[T] {
	if want == "" || string(want) == All {
		return nil
	}
	return func(item T) bool { return get(item) == want }
}

// TimeRange matches when the accessor's time falls inside [from, to].
// Either bound may be nil. Items without a value fail once a bound is set.
func TimeRange[T any](from, to *time.Time, get func(T) *time.Time) Predicate[T] {
	if from == nil && to == nil {
		return nil
	}
	return func(item T) bool {
		v := get(item)
		if v == nil {
			return false
		}
		if from != nil && v.Before(*from) {
			return false
		}
		if to != nil && v.After(*to) {
			return false
		}
		return true
	}
}

// Missing matches items whose accessor has no value. want == nil disables it.
func Missing[T any](want *bool, get func(T) *time.Time) Predicate[T] {
	if want == nil {
		return nil
	}
	return func(item T) bool { return (get(item) == nil) == *want }
}

// NumberRange matches when the accessor's number falls inside [min, max].
func NumberRange[T any](min, max *float64, get func(T) float64) Predicate[T] {
	if min == nil && max == nil {
		return nil
	}
	return func(item T) bool {
		v := get(item)
		if min != nil && v < *min {
			return false
		}
		if max != nil && v > *max {
			return false
		}
		return true
	}
}

// Flag matches a boolean field or derived condition. want == nil disables it.
func Flag[T any](want *bool, get func(T) bool) Predicate[T] {
	if want == nil {
		return nil
	}
	return func(item T) bool { return get(item) == *want }
}

// When keeps a derived condition only when enabled is set. It is the shape
// used by checkbox-style filters that only ever narrow ("overdue only").
func When[T any](enabled bool, cond func(T) bool) Predicate[T] {
	if !enabled {
		return nil
	}
	return Predicate[T](cond)
}

// AnyOf matches when the item's values intersect wanted. An empty wanted
// list is no constraint.
func AnyOf[T any](wanted []string, get func(T) []string) Predicate[T] {
	set := make(map[string]struct{}, len(wanted))
	for _, w := range wanted {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			set[w] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	return func(item T) bool {
		for _, v := range get(item) {
			if _, ok := set[strings.ToLower(v)]; ok {
				return true
			}
		}
		return false
	}
}
