package query

import (
	"cmp"
	"reflect"
	"slices"
	"strings"
	"time"
)

// Direction is the sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection accepts "asc"/"desc" in any case and defaults to Asc.
func ParseDirection(s string) Direction {
	if strings.EqualFold(s, string(Desc)) {
		return Desc
	}
	return Asc
}

// Sort is a single active sort field plus direction.
type Sort struct {
	Field     string    `json:"field" form:"sort_by"`
	Direction Direction `json:"direction" form:"sort_dir"`
}

// Fields maps sortable field names to accessors. An accessor returns nil
// when the entity has no value.
type Fields[T any] map[string]func(T) any

// Has reports whether name is a known field.
func (f Fields[T]) Has(name string) bool {
	_, ok := f[name]
	return ok
}

// SortStable orders items in place by s. Equal keys keep their relative
// order. An unknown field leaves the order untouched.
func SortStable[T any](items []T, s Sort, fields Fields[T]) {
	get, ok := fields[s.Field]
	if !ok {
		return
	}
	sign := 1
	if s.Direction == Desc {
		sign = -1
	}
	slices.SortStableFunc(items, func(a, b T) int {
		return sign * Compare(get(a), get(b))
	})
}

type kind int

const (
	kindNil kind = iota
	kindBool
	kindNumber
	kindTime
	kindString
	kindOther
)

// Compare orders two field values. nil sorts lowest, times compare as
// instants, strings case-insensitively and all numeric kinds numerically.
// Values of different kinds are ordered by kind so the result is still a
// total order.
func Compare(a, b any) int {
	ka, va := normalize(a)
	kb, vb := normalize(b)
	if ka != kb {
		return cmp.Compare(ka, kb)
	}
	switch ka {
	case kindNil:
		return 0
	case kindBool:
		x, y := va.(bool), vb.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case kindNumber:
		return cmp.Compare(va.(float64), vb.(float64))
	case kindTime:
		return va.(time.Time).Compare(vb.(time.Time))
	case kindString:
		return strings.Compare(va.(string), vb.(string))
	}
	return 0
}

func normalize(v any) (kind, any) {
	switch x := v.(type) {
	case nil:
		return kindNil, nil
	case bool:
		return kindBool, x
	case *time.Time:
		if x == nil {
			return kindNil, nil
		}
		return kindTime, *x
	case time.Time:
		if x.IsZero() {
			return kindNil, nil
		}
		return kindTime, x
	case string:
		return kindString, strings.ToLower(x)
	case *string:
		if x == nil {
			return kindNil, nil
		}
		return kindString, strings.ToLower(*x)
	case int:
		return kindNumber, float64(x)
	case int32:
		return kindNumber, float64(x)
	case int64:
		return kindNumber, float64(x)
	case float32:
		return kindNumber, float64(x)
	case float64:
		return kindNumber, x
	case *float64:
		if x == nil {
			return kindNil, nil
		}
		return kindNumber, *x
	case interface{ Rank() int }:
		return kindNumber, float64(x.Rank())
	case interface{ String() string }:
		return kindString, strings.ToLower(x.String())
	}
	return normalizeKind(reflect.ValueOf(v))
}

// normalizeKind handles named types such as `type Status string` by their
// underlying kind.
func normalizeKind(rv reflect.Value) (kind, any) {
	switch rv.Kind() {
	case reflect.String:
		return kindString, strings.ToLower(rv.String())
	case reflect.Bool:
		return kindBool, rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return kindNumber, float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return kindNumber, float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return kindNumber, rv.Float()
	case reflect.Pointer:
		if rv.IsNil() {
			return kindNil, nil
		}
		return normalize(rv.Elem().Interface())
	}
	return kindOther, nil
}
