package utils

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// ParseValue types a raw CSV cell: int, then float, then string.
// Empty cells stay empty strings.
func ParseValue(s string) interface{} {
	// Trim whitespace first
	s = strings.TrimSpace(s)

	// try int
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	// try float
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// IsNumeric reports whether v holds a Go integer or floating point value.
// Numeric-looking strings are not numeric.
func IsNumeric(v interface{}) bool {
	if v == nil {
		return false
	}
	k := reflect.ValueOf(v).Kind()
	return k >= reflect.Int && k <= reflect.Float64
}

// numeric safely converts supported types to float64.
func Numeric(v interface{}) float64 {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case float64:
		return val
	case float32:
		return float64(val)
	default:
		if !IsNumeric(v) {
			return 0
		}
		return reflect.ValueOf(v).Convert(reflect.TypeOf(float64(0))).Float()
	}
}

// IsMissing reports nil, empty strings and NaN.
func IsMissing(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case float64:
		return math.IsNaN(val)
	case float32:
		return math.IsNaN(float64(val))
	}
	return false
}

// AsString renders scalar values as text; nil becomes "".
func AsString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// AsInt coerces ints, integral floats and integer strings to int.
func AsInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(val))
		return i, err == nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) || val != math.Trunc(val) {
			return 0, false
		}
		return int(val), true
	case float32:
		return AsInt(float64(val))
	}
	if !IsNumeric(v) {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), true
	default:
		return int(rv.Uint()), true
	}
}
