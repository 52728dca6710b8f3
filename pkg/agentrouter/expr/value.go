package expr

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Resolve turns an operand into a value. Quoted text is a string literal,
// true/false/null and numbers are literals, and anything else is looked up
// in vars, falling back to the bare text.
func Resolve(s string, vars map[string]any) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}

	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	case "null", "nil":
		return nil
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}

	if val, ok := vars[s]; ok {
		return val
	}
	return s
}

// IsTruthy reports whether v counts as true in a bare condition.
func IsTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int, int32, int64, float32, float64, json.Number:
		return ToFloat64(val) != 0
	default:
		return true
	}
}

// ToFloat64 converts v for numeric comparison. Values that aren't numbers,
// including numeric-looking strings that fail to parse, are 0.
func ToFloat64(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case int32:
		return float64(val)
	case json.Number:
		f, _ := val.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f
	default:
		return 0
	}
}
