// Package compare orders scalar cell values for sorting.
package compare

import (
	"math"
	"reflect"
	"time"

	"golang.org/x/exp/constraints"
)

const (
	rankBool = iota
	rankNumber
	rankString
	rankTime
	rankOther
)

// Ordered compares two values of an ordered type.
func Ordered[T constraints.Ordered](a, b T) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// Compare returns -1, 0 or 1.
//
// Nil sorts before everything else and two nils are equal. Numbers of any
// kind compare numerically with NaN before every other number. Strings
// compare lexicographically, times chronologically and false sorts before
// true. Values of different kinds are ordered by kind
// so that the result stays a total order.
func Compare(a, b any) int {
	aNil, bNil := isNil(a), isNil(b)
	switch {
	case aNil && bNil:
		return 0
	case aNil:
		return -1
	case bNil:
		return 1
	}

	ra, va := rank(a)
	rb, vb := rank(b)
	if ra != rb {
		return Ordered(ra, rb)
	}

	switch ra {
	case rankBool:
		return Ordered(boolInt(va.Bool()), boolInt(vb.Bool()))
	case rankNumber:
		return compareNumbers(va, vb)
	case rankString:
		return Ordered(va.String(), vb.String())
	case rankTime:
		return a.(time.Time).Compare(b.(time.Time))
	}
	return 0
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func rank(v any) (int, reflect.Value) {
	if _, ok := v.(time.Time); ok {
		return rankTime, reflect.Value{}
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Bool:
		return rankBool, rv
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return rankNumber, rv
	case reflect.String:
		return rankString, rv
	}
	return rankOther, rv
}

func compareNumbers(a, b reflect.Value) int {
	switch {
	case isInt(a) && isInt(b):
		return Ordered(a.Int(), b.Int())
	case isUint(a) && isUint(b):
		return Ordered(a.Uint(), b.Uint())
	}
	fa, fb := toFloat(a), toFloat(b)
	aNaN, bNaN := math.IsNaN(fa), math.IsNaN(fb)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return -1
	case bNaN:
		return 1
	}
	return Ordered(fa, fb)
}

func isInt(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUint(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func toFloat(v reflect.Value) float64 {
	switch {
	case isInt(v):
		return float64(v.Int())
	case isUint(v):
		return float64(v.Uint())
	}
	return v.Float()
}

// ToFloat converts any numeric value to float64.
func ToFloat(v any) (float64, bool) {
	if isNil(v) {
		return 0, false
	}
	r, rv := rank(v)
	if r != rankNumber {
		return 0, false
	}
	return toFloat(rv), true
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
