package llm_test

import (
	"errors"
	"fmt"
	"testing"

	agerrors "github.com/randalmurphal/agentrouter/pkg/agentrouter/errors"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr error
	}{
		{name: "bare object", content: `{"next":"orders"}`, want: "orders"},
		{name: "code fence", content: "```json\n{\"next\": \"FINISH\"}\n```", want: "FINISH"},
		{name: "prose around", content: `I pick {"next":"support"} because...`, want: "support"},
		{name: "no object", content: "orders", wantErr: llm.ErrNoJSON},
		{name: "broken object", content: `{"next": }`, wantErr: &agerrors.JSONParseError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				Next string `json:"next"`
			}
			err := llm.DecodeJSON(tt.content, &out)
			if tt.wantErr != nil {
				var parseErr *agerrors.JSONParseError
				require.ErrorAs(t, err, &parseErr)
				assert.Equal(t, tt.content, parseErr.Input)
				if errors.Is(tt.wantErr, llm.ErrNoJSON) {
					assert.ErrorIs(t, err, llm.ErrNoJSON)
				}
				assert.Equal(t, agerrors.CategoryMalformed, agerrors.Categorize(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Next)
		})
	}
}

func TestError(t *testing.T) {
	base := errors.New("overloaded")
	err := llm.NewError("complete", base, true)

	assert.Equal(t, "llm complete: overloaded", err.Error())
	assert.ErrorIs(t, err, base)
	assert.True(t, llm.IsRetryable(err))
	assert.True(t, llm.IsRetryable(fmt.Errorf("dispatch: %w", err)))
	assert.False(t, llm.IsRetryable(base))
	assert.False(t, llm.IsRetryable(llm.NewError("complete", base, false)))
}

func TestTokenUsage_Add(t *testing.T) {
	u := llm.TokenUsage{InputTokens: 1, OutputTokens: 2, TotalTokens: 3}
	u.Add(llm.TokenUsage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30})
	assert.Equal(t, llm.TokenUsage{InputTokens: 11, OutputTokens: 22, TotalTokens: 33}, u)
}
