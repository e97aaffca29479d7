// Package jsonutil coerces loosely typed JSON values. Connection config
// bundles arrive as map[string]any, so numbers show up as float64, ints or
// numeric strings depending on who produced them.
package jsonutil

import (
	"fmt"
	"strconv"
)

// CoerceString converts a JSON scalar to its string form. Returns "" for
// nil and for non-scalar values.
func CoerceString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// CoerceInt converts a JSON scalar to an int. The ok result is false when
// the value is absent or not numeric.
func CoerceInt(value any) (int, bool) {
	switch v := value.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// CoerceBool converts a JSON scalar to a bool. Accepts real booleans and
// the usual string forms.
func CoerceBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, false
		}
		return b, true
	default:
		return false, false
	}
}

// CoerceError reports a value that could not be coerced, for config
// validation messages.
func CoerceError(field string, value any) error {
	return fmt.Errorf("field %q has unusable value of type %T", field, value)
}
