package codec

import (
	"encoding/json"
	"strconv"

	"github.com/block-replay/block-replay/internal/host"
)

// Helpers reading loosely typed payload values. Numbers decoded from JSON
// arrive as float64 or json.Number; payloads built in-process carry ints.

// Int returns v as an int.
func Int(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int(f), true
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}

// Float returns v as a float64, or 0.
func Float(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	}
	return 0
}

// String returns v as a string. Numbers are formatted without a trailing
// fraction when integral.
func String(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case bool:
		return strconv.FormatBool(s)
	}
	return ""
}

// Bool returns v as a bool using truthiness of the serialized form.
func Bool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return !isFalsy(v)
}

// Map returns v as a mapping, or nil.
func Map(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// RefFrom reads a block descriptor out of a serialized block or arg.
func RefFrom(m map[string]any) host.BlockRef {
	id, _ := Int(m["id"])
	return host.BlockRef{
		ID:       id,
		Selector: String(m["selector"]),
		Spec:     String(m["spec"]),
		Template: Bool(m["template"]),
		GUID:     String(m["guid"]),
	}
}

// IsFalsy reports whether v is nil, false, a numeric zero or "".
func IsFalsy(v any) bool {
	return isFalsy(v)
}
