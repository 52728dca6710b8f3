package agentrouter

import (
	"maps"
	"time"
)

// Status is the lifecycle position of a workflow run.
type Status string

// Workflow statuses.
const (
	StatusRunning       Status = "running"
	StatusAwaitingInput Status = "awaiting_input"
	StatusDone          Status = "done"
	StatusError         Status = "error"
)

// Interrupt is the pending question of a run parked at a gate.
type Interrupt struct {
	Gate   string `json:"gate"`
	Prompt string `json:"prompt"`
}

// State is the full persisted state of one workflow run.
//
// State is a value: the router never mutates a State it has handed out.
// Fields must hold JSON-compatible values so the state survives a
// checkpoint round trip.
type State struct {
	WorkflowID string         `json:"workflow_id"`
	Workflow   string         `json:"workflow"`
	Log        Log            `json:"log"`
	Fields     map[string]any `json:"extracted_fields"`

	// CurrentWorker is the last worker or gate the dispatcher selected.
	CurrentWorker string `json:"current_worker,omitempty"`

	Status Status `json:"status"`

	// Iterations counts dispatch decisions that selected a worker or gate,
	// across every invocation of the run.
	Iterations int `json:"iterations"`

	Interrupt *Interrupt `json:"interrupt,omitempty"`
	Error     string     `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Field returns an extracted field.
func (s State) Field(key string) (any, bool) {
	v, ok := s.Fields[key]
	return v, ok
}

// Visible returns the end-user projection of the log.
func (s State) Visible() []Message {
	return s.Log.View(FilterVisible)
}

// Delta is a proposed change to a State. Only the router applies deltas.
type Delta struct {
	Messages []Message
	Fields   map[string]any
}

// apply returns a new State with d merged in. Fields is copied, so s is
// left untouched.
func (s State) apply(d Delta) State {
	next := s
	next.Log = s.Log.Append(d.Messages...)
	if len(d.Fields) > 0 {
		next.Fields = make(map[string]any, len(s.Fields)+len(d.Fields))
		maps.Copy(next.Fields, s.Fields)
		maps.Copy(next.Fields, d.Fields)
	}
	next.UpdatedAt = time.Now().UTC()
	return next
}

// clone returns a copy that shares nothing mutable with s.
func (s State) clone() State {
	c := s
	c.Fields = maps.Clone(s.Fields)
	if s.Interrupt != nil {
		in := *s.Interrupt
		c.Interrupt = &in
	}
	return c
}
