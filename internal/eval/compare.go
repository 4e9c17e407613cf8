package eval

import (
	"cmp"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// IsNull reports whether v is nil, a typed nil pointer, map, slice or
// interface, or a driver.Valuer whose value is nil (sql.NullString{} etc).
func IsNull(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			return true
		}
	}
	if valuer, ok := v.(driver.Valuer); ok {
		dv, err := valuer.Value()
		return err == nil && dv == nil
	}
	return false
}

// Bool converts a boolean-valued result to bool.
func Bool(v interface{}) (bool, error) {
	if IsNull(v) {
		return false, fmt.Errorf("%w: nil is not a boolean", ErrUnevaluable)
	}
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Bool {
		return false, fmt.Errorf("%w: %T is not a boolean", ErrUnevaluable, v)
	}
	return rv.Bool(), nil
}

// Compare applies a comparison operator (=, <>, <, >, <=, >=) to two values.
// Null operands compare equal only to each other; ordering against null is an error.
func Compare(op string, a, b interface{}) (bool, error) {
	an, bn := IsNull(a), IsNull(b)
	if an || bn {
		switch op {
		case "=":
			return an && bn, nil
		case "<>":
			return an != bn, nil
		}
		return false, fmt.Errorf("%w: %s against null", ErrUnevaluable, op)
	}

	c, err := order(a, b)
	if err != nil {
		return false, err
	}

	switch op {
	case "=":
		return c == 0, nil
	case "<>":
		return c != 0, nil
	case "<":
		return c < 0, nil
	case ">":
		return c > 0, nil
	case "<=":
		return c <= 0, nil
	case ">=":
		return c >= 0, nil
	}
	return false, fmt.Errorf("%w: unknown operator %q", ErrUnevaluable, op)
}

// order returns -1, 0 or +1. Numbers of any width compare by value.
func order(a, b interface{}) (int, error) {
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb), nil
		}
	}

	av := reflect.Indirect(reflect.ValueOf(a))
	bv := reflect.Indirect(reflect.ValueOf(b))

	switch {
	case isNumber(av.Kind()) && isNumber(bv.Kind()):
		return compareNumbers(av, bv), nil
	case av.Kind() == reflect.String && bv.Kind() == reflect.String:
		return strings.Compare(av.String(), bv.String()), nil
	case av.Kind() == reflect.Bool && bv.Kind() == reflect.Bool:
		x, y := av.Bool(), bv.Bool()
		switch {
		case x == y:
			return 0, nil
		case !x:
			return -1, nil
		}
		return 1, nil
	}

	if av.Type() == bv.Type() && av.Comparable() {
		if av.Equal(bv) {
			return 0, nil
		}
		return 1, nil
	}
	return 0, fmt.Errorf("%w: cannot compare %T with %T", ErrUnevaluable, a, b)
}

func isNumber(k reflect.Kind) bool {
	return isInt(k) || isUint(k) || k == reflect.Float32 || k == reflect.Float64
}

func isInt(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUint(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func compareNumbers(a, b reflect.Value) int {
	switch {
	case isInt(a.Kind()) && isInt(b.Kind()):
		return cmp.Compare(a.Int(), b.Int())
	case isUint(a.Kind()) && isUint(b.Kind()):
		return cmp.Compare(a.Uint(), b.Uint())
	case isInt(a.Kind()) && isUint(b.Kind()):
		if a.Int() < 0 {
			return -1
		}
		return cmp.Compare(uint64(a.Int()), b.Uint())
	case isUint(a.Kind()) && isInt(b.Kind()):
		if b.Int() < 0 {
			return 1
		}
		return cmp.Compare(a.Uint(), uint64(b.Int()))
	}
	return cmp.Compare(toFloat(a), toFloat(b))
}

func toFloat(v reflect.Value) float64 {
	switch {
	case isInt(v.Kind()):
		return float64(v.Int())
	case isUint(v.Kind()):
		return float64(v.Uint())
	}
	return v.Float()
}
