package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/randalmurphal/agentrouter/pkg/agentrouter/config"
)

func TestConfig_Accessors(t *testing.T) {
	cfg := config.New(map[string]any{
		"model":           "router-small",
		"max_tool_rounds": 3,
		"temperature":     0.2,
		"whole":           float64(4),
		"fraction":        4.5,
		"timeout":         "1m30s",
		"seconds":         2,
		"verbose":         true,
		"tags":            []any{"a", "b"},
		"mixed":           []any{"a", 1},
		"nested":          map[string]any{"retries": int64(2)},
	})

	assert.Equal(t, "router-small", cfg.String("model", ""))
	assert.Equal(t, "x", cfg.String("max_tool_rounds", "x"), "wrong type uses default")
	assert.Equal(t, 3, cfg.Int("max_tool_rounds", 5))
	assert.Equal(t, 4, cfg.Int("whole", 0))
	assert.Equal(t, 7, cfg.Int("fraction", 7), "fractional float is not an int")
	assert.Equal(t, 5, cfg.Int("missing", 5))
	assert.InDelta(t, 0.2, cfg.Float("temperature", 0), 1e-9)
	assert.InDelta(t, 3.0, cfg.Float("max_tool_rounds", 0), 1e-9)
	assert.Equal(t, 90*time.Second, cfg.Duration("timeout", 0))
	assert.Equal(t, 2*time.Second, cfg.Duration("seconds", 0))
	assert.Equal(t, time.Second, cfg.Duration("model", time.Second))
	assert.True(t, cfg.Bool("verbose", false))
	assert.Equal(t, []string{"a", "b"}, cfg.StringSlice("tags", nil))
	assert.Equal(t, []string{"z"}, cfg.StringSlice("mixed", []string{"z"}))
	assert.Equal(t, 2, cfg.Sub("nested").Int("retries", 0))
	assert.False(t, cfg.Sub("missing").Has("retries"))
	assert.Equal(t, "d", cfg.Any("missing", "d"))
	assert.True(t, cfg.Has("verbose"))
}

func TestConfig_NilMap(t *testing.T) {
	cfg := config.New(nil)
	assert.NotNil(t, cfg.Raw())
	assert.Equal(t, "d", cfg.String("k", "d"))
	assert.False(t, cfg.Has("k"))
}
