package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/randalmurphal/agentrouter/pkg/agentrouter"
	agerrors "github.com/randalmurphal/agentrouter/pkg/agentrouter/errors"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/llm"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/template"
)

const supervisorTemplate = `You are a supervisor tasked with managing a conversation between the following workers: %s.
Given the conversation so far, respond with the worker to act next. Each worker will perform a task and respond with their results and status. When the work is complete, respond with %s.
Respond only with JSON of the form {"next": "<worker or %s>"}.`

// SupervisorPrompt builds the system prompt listing the members and the
// finish token, followed by any workflow-specific instructions.
func SupervisorPrompt(instructions string, candidates []string) string {
	p := fmt.Sprintf(supervisorTemplate,
		strings.Join(candidates, ", "), agentrouter.FinishToken, agentrouter.FinishToken)
	if instructions = strings.TrimSpace(instructions); instructions != "" {
		p += "\n" + instructions
	}
	return p
}

// LLM is a model-backed supervisor dispatcher.
type LLM struct {
	client       llm.Client
	instructions string
	model        string
	retry        agerrors.RetryConfig
}

// LLMOption configures an LLM dispatcher.
type LLMOption func(*LLM)

// WithModel sets the model requested from the client.
func WithModel(model string) LLMOption {
	return func(d *LLM) { d.model = model }
}

// WithRetry replaces errors.DefaultRetry for transient completion failures.
func WithRetry(cfg agerrors.RetryConfig) LLMOption {
	return func(d *LLM) { d.retry = cfg }
}

// NewLLM creates a supervisor dispatcher. A nil client falls back to the
// run context's completion client. ${field} placeholders in instructions
// are filled from the workflow fields.
func NewLLM(client llm.Client, instructions string, opts ...LLMOption) *LLM {
	d := &LLM{
		client:       client,
		instructions: instructions,
		retry:        agerrors.DefaultRetry,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decide implements agentrouter.Dispatcher. The reply may be {"next": ...}
// JSON or a bare name. Anything else is a *agentrouter.ConfigError.
func (d *LLM) Decide(ctx agentrouter.Context, state agentrouter.State, candidates []string) (agentrouter.Decision, error) {
	client := d.client
	if client == nil {
		client = ctx.Completion()
	}
	if client == nil {
		return agentrouter.Decision{}, fmt.Errorf("dispatch: no completion client")
	}

	req := llm.CompletionRequest{
		SystemPrompt:   SupervisorPrompt(template.Expand(d.instructions, state.Fields), candidates),
		Messages:       agentrouter.CompletionMessages(state.Log.View(agentrouter.FilterAll)),
		Model:          d.model,
		ResponseFormat: "json",
	}

	retry := d.retry
	if retry.OnRetry == nil {
		retry.OnRetry = func(attempt int, err error, wait time.Duration) {
			ctx.Logger().Warn("supervisor call failed, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.String("error", err.Error()),
			)
		}
	}
	res := agerrors.WithRetryContext(ctx, retry, func(rctx context.Context) (*llm.CompletionResponse, error) {
		return client.Complete(rctx, req)
	})
	if res.Err != nil {
		return agentrouter.Decision{}, res.Err
	}
	if res.Attempts > 1 {
		ctx.Logger().Info("supervisor succeeded after retry", slog.Int("attempts", res.Attempts))
	}

	answer := strings.TrimSpace(res.Value.Content)
	var reply struct {
		Next string `json:"next"`
	}
	if err := llm.DecodeJSON(answer, &reply); err == nil && reply.Next != "" {
		answer = reply.Next
	}
	ctx.Logger().Debug("supervisor answered", slog.String("next", answer))

	return agentrouter.ParseDecision(answer, candidates)
}
