package agentrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/randalmurphal/agentrouter/pkg/agentrouter/checkpoint"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/observability"
)

// Resume delivers external input to a run suspended at a gate and
// continues the loop with a fresh iteration budget.
//
// The payload is appended as a user message authored by the gate. A string
// payload becomes the content as is; anything else is JSON-encoded, and the
// keys of an object payload are merged into the extracted fields.
//
// If a checkpoint cannot be written during the resumed run, the returned
// state reports the error but the store keeps the run parked at its gate,
// so the same call can be retried.
//
// Example:
//
//	// Run stopped at manual_approver
//	state, err := compiled.Resume(ctx, store, "wf-123", map[string]any{"approved": true})
func (cw *CompiledWorkflow) Resume(ctx Context, store checkpoint.Store, workflowID string, payload any, opts ...RunOption) (State, error) {
	if ctx == nil {
		return State{}, ErrNilContext
	}
	if store == nil {
		return State{}, ErrNoCheckpointStore
	}
	if workflowID == "" {
		return State{}, ErrWorkflowIDRequired
	}

	cfg := cw.newRunConfig(ctx, opts)
	cfg.checkpointStore = store
	cfg.workflowID = workflowID

	state, sequence, err := LoadState(ctx, store, workflowID)
	if err != nil {
		return State{}, err
	}
	if state.Workflow != cw.name {
		return state, fmt.Errorf("%w: %s was written by %s", ErrWorkflowMismatch, workflowID, state.Workflow)
	}
	if state.Status != StatusAwaitingInput || state.Interrupt == nil {
		return state, fmt.Errorf("%w: %s is %s", ErrNotAwaitingInput, workflowID, state.Status)
	}
	cfg.sequence = sequence
	parked := state.clone()
	cfg.restore = &parked

	msg, fields, err := payloadMessage(payload)
	if err != nil {
		return state, fmt.Errorf("%w: resume payload: %v", ErrSerializeState, err)
	}

	gate := state.Interrupt.Gate
	msg.AuthorName = gate
	msg.Visible = true
	if spec, ok := cw.getWorker(gate); ok {
		msg.Visible = !spec.hidden
	}
	msg.Time = time.Now().UTC()

	observability.LogResume(cfg.logger, workflowID, gate)

	state.Status = StatusRunning
	state.Interrupt = nil
	state.Error = ""
	state = cw.appendMessage(state, msg, fields)

	return cw.execute(ctx, state, "resume", &cfg)
}

// LoadState reads the checkpointed state of a run along with the
// checkpoint sequence number.
//
// Returns an error wrapping both ErrNoCheckpoint and checkpoint.ErrNotFound
// when the run is unknown.
func LoadState(ctx context.Context, store checkpoint.Store, workflowID string) (State, int, error) {
	data, err := store.Load(ctx, workflowID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return State{}, 0, fmt.Errorf("%w %s: %w", ErrNoCheckpoint, workflowID, err)
		}
		return State{}, 0, &CheckpointError{
			WorkflowID: workflowID,
			Op:         "load",
			Err:        err,
		}
	}

	cp, err := checkpoint.Unmarshal(data)
	if err != nil {
		return State{}, 0, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}

	if cp.Version != checkpoint.Version {
		return State{}, 0, fmt.Errorf("%w: got %d, expected %d",
			ErrCheckpointVersionMismatch, cp.Version, checkpoint.Version)
	}

	var state State
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return State{}, 0, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}
	if state.Fields == nil {
		state.Fields = map[string]any{}
	}

	return state, cp.Sequence, nil
}
