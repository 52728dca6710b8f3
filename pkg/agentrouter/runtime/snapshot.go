package runtime

import (
	"time"

	"github.com/randalmurphal/agentrouter/pkg/agentrouter"
)

// Snapshot is the caller's view of a run.
type Snapshot struct {
	WorkflowID string                 `json:"workflow_id"`
	Workflow   string                 `json:"workflow"`
	Status     agentrouter.Status     `json:"status"`
	Log        []agentrouter.Message  `json:"log"`
	Visible    []agentrouter.Message  `json:"visible"`
	Fields     map[string]any         `json:"fields"`
	Interrupt  *agentrouter.Interrupt `json:"interrupt,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Iterations int                    `json:"iterations"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// NewSnapshot projects a state. Fields is never nil so the JSON form is
// stable.
func NewSnapshot(s agentrouter.State) Snapshot {
	snap := Snapshot{
		WorkflowID: s.WorkflowID,
		Workflow:   s.Workflow,
		Status:     s.Status,
		Log:        s.Log.Messages(),
		Visible:    s.Visible(),
		Fields:     s.Fields,
		Interrupt:  s.Interrupt,
		Error:      s.Error,
		Iterations: s.Iterations,
		UpdatedAt:  s.UpdatedAt,
	}
	if snap.Fields == nil {
		snap.Fields = map[string]any{}
	}
	return snap
}
