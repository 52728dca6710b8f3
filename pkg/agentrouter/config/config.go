package config

import (
	"encoding/json"
	"time"
)

// Config is a read-only view over a free-form option map, such as a
// worker's options block. Accessors return the default when the key is
// missing or holds an incompatible value.
type Config struct {
	data map[string]any
}

// New wraps data. A nil map behaves as empty.
func New(data map[string]any) Config {
	if data == nil {
		data = map[string]any{}
	}
	return Config{data: data}
}

// String returns the string at key.
func (c Config) String(key, def string) string {
	if s, ok := c.data[key].(string); ok {
		return s
	}
	return def
}

// Bool returns the bool at key.
func (c Config) Bool(key string, def bool) bool {
	if b, ok := c.data[key].(bool); ok {
		return b
	}
	return def
}

// Int returns the integer at key. Floats are accepted only when whole.
func (c Config) Int(key string, def int) int {
	f, ok := number(c.data[key])
	if !ok || f != float64(int(f)) {
		return def
	}
	return int(f)
}

// Float returns the number at key.
func (c Config) Float(key string, def float64) float64 {
	if f, ok := number(c.data[key]); ok {
		return f
	}
	return def
}

// Duration returns the duration at key. Strings use time.ParseDuration;
// bare numbers are seconds.
func (c Config) Duration(key string, def time.Duration) time.Duration {
	switch v := c.data[key].(type) {
	case time.Duration:
		return v
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		return def
	}
	if f, ok := number(c.data[key]); ok {
		return time.Duration(f * float64(time.Second))
	}
	return def
}

// StringSlice returns the list at key when every element is a string.
func (c Config) StringSlice(key string, def []string) []string {
	switch v := c.data[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return def
			}
			out = append(out, s)
		}
		return out
	}
	return def
}

// Sub returns the nested map at key as a Config, empty when absent.
func (c Config) Sub(key string) Config {
	m, _ := c.data[key].(map[string]any)
	return New(m)
}

// Any returns the raw value at key.
func (c Config) Any(key string, def any) any {
	if v, ok := c.data[key]; ok {
		return v
	}
	return def
}

// Has reports whether key is set.
func (c Config) Has(key string) bool {
	_, ok := c.data[key]
	return ok
}

// Raw returns the underlying map. Callers must not modify it.
func (c Config) Raw() map[string]any {
	return c.data
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
