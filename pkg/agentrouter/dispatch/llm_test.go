package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/agentrouter/pkg/agentrouter"
	agerrors "github.com/randalmurphal/agentrouter/pkg/agentrouter/errors"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/llm"
)

var members = []string{"inventory", "orders", "support"}

func fastRetry() agerrors.RetryConfig {
	return agerrors.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		BackoffFactor:  1,
	}
}

func bookstoreState() agentrouter.State {
	return agentrouter.State{
		Log: agentrouter.NewLog(
			agentrouter.UserMessage("Is 'Dune' in stock?"),
			agentrouter.Message{Role: agentrouter.RoleAssistant, Content: "stock lookup pending", AuthorName: "inventory"},
		),
		Fields: map[string]any{"store": "downtown"},
	}
}

func testCtx() agentrouter.Context {
	return agentrouter.NewContext(context.Background())
}

func TestLLM_ParsesReplies(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  agentrouter.Decision
	}{
		{"json", `{"next": "orders"}`, agentrouter.Route("orders")},
		{"fenced json", "```json\n{\"next\": \"support\"}\n```", agentrouter.Route("support")},
		{"bare name", "inventory", agentrouter.Route("inventory")},
		{"quoted name", ` "orders" `, agentrouter.Route("orders")},
		{"finish", `{"next": "FINISH"}`, agentrouter.Finish()},
		{"bare finish", "FINISH", agentrouter.Finish()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewLLM(llm.NewScriptedClient(tt.reply), "")
			got, err := d.Decide(testCtx(), bookstoreState(), members)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLLM_UnknownMemberIsConfigError(t *testing.T) {
	d := NewLLM(llm.NewScriptedClient(`{"next": "billing"}`), "")

	_, err := d.Decide(testCtx(), bookstoreState(), members)

	var cfgErr *agentrouter.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "billing", cfgErr.Returned)
	assert.Equal(t, members, cfgErr.Candidates)
}

func TestLLM_Request(t *testing.T) {
	client := llm.NewScriptedClient("orders")
	d := NewLLM(client, "Store: ${store}. Use orders for purchases.", WithModel("router-small"))

	_, err := d.Decide(testCtx(), bookstoreState(), members)
	require.NoError(t, err)

	req := client.LastCall()
	require.NotNil(t, req)
	assert.Contains(t, req.SystemPrompt, "inventory, orders, support")
	assert.Contains(t, req.SystemPrompt, "FINISH")
	assert.Contains(t, req.SystemPrompt, "Store: downtown. Use orders for purchases.")
	assert.Equal(t, "json", req.ResponseFormat)
	assert.Equal(t, "router-small", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "inventory", req.Messages[1].Name)
}

func TestLLM_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	client := llm.ClientFunc(func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		if calls.Add(1) < 3 {
			return nil, llm.NewError("complete", errors.New("rate limit"), true)
		}
		return &llm.CompletionResponse{Content: "support"}, nil
	})

	got, err := NewLLM(client, "", WithRetry(fastRetry())).Decide(testCtx(), bookstoreState(), members)

	require.NoError(t, err)
	assert.Equal(t, agentrouter.Route("support"), got)
	assert.Equal(t, int32(3), calls.Load())
}

func TestLLM_PermanentFailureIsDispatchError(t *testing.T) {
	var calls atomic.Int32
	client := llm.ClientFunc(func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		calls.Add(1)
		return nil, llm.NewError("complete", errors.New("invalid api key"), false)
	})

	compiled, err := agentrouter.NewWorkflow("bookstore").
		AddWorker("inventory", agentrouter.WorkerFunc(func(ctx agentrouter.Context, s agentrouter.State) (agentrouter.Message, error) {
			return agentrouter.AssistantMessage("in stock"), nil
		})).
		SetDispatcher(NewLLM(client, "", WithRetry(fastRetry()))).
		Compile()
	require.NoError(t, err)

	state, err := compiled.Run(testCtx(), agentrouter.UserMessage("hi"))

	var dispErr *agentrouter.DispatchError
	require.ErrorAs(t, err, &dispErr)
	assert.Equal(t, 1, dispErr.Iteration)
	assert.Equal(t, agentrouter.StatusError, state.Status)
	assert.Equal(t, int32(1), calls.Load(), "permanent failures are not retried")
	assert.Equal(t, 1, state.Log.Len())
}

func TestLLM_ClientFromContext(t *testing.T) {
	_, err := NewLLM(nil, "").Decide(testCtx(), bookstoreState(), members)
	assert.Error(t, err)

	ctx := agentrouter.NewContext(context.Background(), agentrouter.WithCompletion(llm.NewScriptedClient("orders")))
	got, err := NewLLM(nil, "").Decide(ctx, bookstoreState(), members)
	require.NoError(t, err)
	assert.Equal(t, agentrouter.Route("orders"), got)
}

func TestSupervisorPrompt(t *testing.T) {
	p := SupervisorPrompt("  ", []string{"a", "b"})
	assert.Contains(t, p, "following workers: a, b.")
	assert.Contains(t, p, `{"next": "<worker or FINISH>"}`)
	assert.NotContains(t, p, "\n  ")
}
