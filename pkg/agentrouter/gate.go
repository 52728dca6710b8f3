package agentrouter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/randalmurphal/agentrouter/pkg/agentrouter/observability"
	"go.opentelemetry.io/otel/attribute"
)

// suspend parks the run at a gate. The state must reach the store before
// control returns, otherwise there is nothing to resume.
func (cw *CompiledWorkflow) suspend(ctx context.Context, state State, spec *workerSpec, cfg *runConfig) (State, error) {
	if cfg.checkpointStore == nil {
		return state, ErrNoCheckpointStore
	}

	state.Status = StatusAwaitingInput
	state.Interrupt = &Interrupt{Gate: spec.name, Prompt: spec.prompt}
	state.UpdatedAt = time.Now().UTC()

	if err := cw.saveCheckpoint(ctx, cfg, state); err != nil {
		return state, err
	}

	observability.LogSuspend(cfg.logger, state.WorkflowID, spec.name)
	cfg.spans.AddSpanEvent(ctx, "workflow.suspended", attribute.String("gate", spec.name))
	return state, nil
}

// payloadMessage renders resume input as a user message. Strings are used
// verbatim; anything else is JSON-encoded. Object payloads also return
// their keys as fields.
func payloadMessage(payload any) (Message, map[string]any, error) {
	var raw []byte
	switch p := payload.(type) {
	case string:
		return Message{Role: RoleUser, Content: p}, nil, nil
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return Message{}, nil, err
		}
		raw = b
	}

	// Round trip through any so fields hold plain JSON values.
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Message{}, nil, err
	}

	msg := Message{Role: RoleUser, Content: string(raw)}
	if obj, ok := decoded.(map[string]any); ok {
		return msg, obj, nil
	}
	return msg, nil, nil
}
