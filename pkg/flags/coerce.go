package flags

import (
	"math"
	"reflect"
	"strings"
)

// CoerceBool converts a raw flag value into a boolean using the product's
// coercion policy. It is total: every input resolves to a value, never a
// panic or error.
//
// The policy:
//   - bool: itself.
//   - string, trimmed and lowercased: "true", "1", "yes", "on" are true;
//     "false", "0", "no", "off" are false; any other string is true —
//     an unrecognized string means the flag is present.
//   - numbers: NaN resolves to fallback, 0 is false, anything else
//     (including negatives) is true.
//   - nil: fallback.
//   - anything else: truthiness — non-nil values are true, typed nil
//     pointers/maps/slices resolve to fallback like nil does.
//
// fallback is the resolution for ambiguous inputs only; it never overrides
// a recognized value.
func CoerceBool(raw any, fallback bool) bool {
	switch v := raw.(type) {
	case nil:
		return fallback
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "false", "0", "no", "off":
			return false
		default:
			// "true", "1", "yes", "on", and everything unrecognized.
			return true
		}
	case float64:
		if math.IsNaN(v) {
			return fallback
		}
		return v != 0
	case float32:
		if math.IsNaN(float64(v)) {
			return fallback
		}
		return v != 0
	case int:
		return v != 0
	case int8:
		return v != 0
	case int16:
		return v != 0
	case int32:
		return v != 0
	case int64:
		return v != 0
	case uint:
		return v != 0
	case uint8:
		return v != 0
	case uint16:
		return v != 0
	case uint32:
		return v != 0
	case uint64:
		return v != 0
	default:
		return truthy(raw, fallback)
	}
}

// truthy resolves non-scalar values. Typed nils behave like nil.
func truthy(raw any, fallback bool) bool {
	rv := reflect.ValueOf(raw)
	if !rv.IsValid() {
		return fallback
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		if rv.IsNil() {
			return fallback
		}
	}
	return true
}
