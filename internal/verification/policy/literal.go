package policy

import (
	"encoding/json"
	"strconv"
)

// LiteralNumber coerces a decoded literal to float64. Literals decoded from
// JSON arrive as float64, from YAML as int or float64.
func LiteralNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// LiteralString returns a literal as a string when it is one.
func LiteralString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// LiteralBool returns a literal as a bool when it is one.
func LiteralBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// validLiteral reports whether v is a scalar a condition can compare against.
func validLiteral(v any) bool {
	if _, ok := LiteralNumber(v); ok {
		return true
	}
	switch v.(type) {
	case string, bool:
		return true
	}
	return false
}

// FormatLiteral renders a literal for messages and logs.
func FormatLiteral(v any) string {
	if n, ok := LiteralNumber(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "?"
	}
	return string(b)
}
