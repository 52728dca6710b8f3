// Package agent provides ready-made workers: an LLM worker that can call
// tools, a deterministic single-tool worker, and a fixed-content worker.
package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/agentrouter/pkg/agentrouter"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/llm"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/template"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/tool"
)

// DefaultMaxToolRounds bounds how many times one execution may go back to
// the model with tool results.
const DefaultMaxToolRounds = 5

var (
	// ErrNoCompletionClient is returned when neither the worker nor the
	// context supplies a completion client.
	ErrNoCompletionClient = errors.New("agent: no completion client")

	// ErrToolRoundsExceeded is returned when the model keeps requesting
	// tools after the last allowed round.
	ErrToolRoundsExceeded = errors.New("agent: tool rounds exceeded")
)

// LLMWorker answers with a completion over the full conversation log,
// running any tools the model asks for along the way.
type LLMWorker struct {
	name          string
	client        llm.Client
	instruction   string
	tools         map[string]tool.Tool
	defs          []llm.Tool
	maxToolRounds int
	model         string
}

// New creates an LLM worker. A nil client falls back to the run context's
// completion client. ${field} placeholders in instruction are filled from
// the workflow fields on every execution.
func New(name string, client llm.Client, instruction string, tools ...tool.Tool) *LLMWorker {
	w := &LLMWorker{
		name:          name,
		client:        client,
		instruction:   instruction,
		tools:         make(map[string]tool.Tool, len(tools)),
		maxToolRounds: DefaultMaxToolRounds,
	}
	for _, t := range tools {
		w.tools[t.Name()] = t
		w.defs = append(w.defs, tool.Definition(t))
	}
	return w
}

// WithMaxToolRounds overrides DefaultMaxToolRounds.
func (w *LLMWorker) WithMaxToolRounds(n int) *LLMWorker {
	if n > 0 {
		w.maxToolRounds = n
	}
	return w
}

// WithModel sets the model requested from the client.
func (w *LLMWorker) WithModel(model string) *LLMWorker {
	w.model = model
	return w
}

// Execute implements agentrouter.Worker. Tool failures are reported to the
// model as {"error": "..."} results; only completion failures and an
// exhausted tool budget fail the execution.
func (w *LLMWorker) Execute(ctx agentrouter.Context, state agentrouter.State) (agentrouter.Message, error) {
	client := w.client
	if client == nil {
		client = ctx.Completion()
	}
	if client == nil {
		return agentrouter.Message{}, ErrNoCompletionClient
	}

	logger := ctx.Logger()
	req := llm.CompletionRequest{
		SystemPrompt: template.Expand(w.instruction, state.Fields),
		Messages:     agentrouter.CompletionMessages(state.Log.Messages()),
		Model:        w.model,
		Tools:        w.defs,
	}

	for round := 0; ; round++ {
		resp, err := client.Complete(ctx, req)
		if err != nil {
			return agentrouter.Message{}, err
		}
		if len(resp.ToolCalls) == 0 {
			return agentrouter.AssistantMessage(resp.Content), nil
		}
		if round == w.maxToolRounds {
			return agentrouter.Message{}, fmt.Errorf("%w: %d", ErrToolRoundsExceeded, w.maxToolRounds)
		}

		req.Messages = append(req.Messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			Name:      w.name,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			req.Messages = append(req.Messages, w.runTool(ctx, logger, call))
		}
	}
}

func (w *LLMWorker) runTool(ctx agentrouter.Context, logger *slog.Logger, call llm.ToolCall) llm.Message {
	result := llm.Message{Role: llm.RoleTool, Name: call.Name, ToolCallID: call.ID}

	t, ok := w.tools[call.Name]
	if !ok {
		result.Content = errorResult(fmt.Errorf("unknown tool %q", call.Name))
		return result
	}

	args := map[string]any{}
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			result.Content = errorResult(fmt.Errorf("invalid arguments: %w", err))
			return result
		}
	}

	start := time.Now()
	out, err := t.Call(ctx, args)
	if err != nil {
		logger.Warn("tool call failed",
			slog.String("tool", call.Name),
			slog.String("error", err.Error()))
		result.Content = errorResult(err)
		return result
	}
	logger.Debug("tool call completed",
		slog.String("tool", call.Name),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	result.Content = tool.Render(out)
	return result
}

func errorResult(err error) string {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(data)
}
