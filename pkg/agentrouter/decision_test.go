package agentrouter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecision(t *testing.T) {
	candidates := []string{"inventory", "orders", "support"}

	tests := []struct {
		raw      string
		terminal bool
		worker   string
	}{
		{"inventory", false, "inventory"},
		{"  orders\n", false, "orders"},
		{`"support"`, false, "support"},
		{"FINISH", true, ""},
		{"finish", true, ""},
		{"END", true, ""},
		{"__end__", true, ""},
		{"'FINISH'", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			d, err := ParseDecision(tt.raw, candidates)
			require.NoError(t, err)
			assert.Equal(t, tt.terminal, d.IsTerminal())
			assert.Equal(t, tt.worker, d.Worker())
		})
	}
}

func TestParseDecision_Unknown(t *testing.T) {
	for _, raw := range []string{"nonexistent_worker", "Inventory", "", "inventory please", "TERMINAL"} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseDecision(raw, []string{"inventory"})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnknownWorker)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, []string{"inventory"}, cfgErr.Candidates)
		})
	}
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "FINISH", Finish().String())
	assert.Equal(t, "orders", Route("orders").String())
	assert.True(t, Decision{}.isZero())
	assert.False(t, Finish().isZero())
}
