package checkpoint

import (
	"encoding/json"
	"time"
)

// Version is the current checkpoint format version.
// Increment when making breaking changes to checkpoint structure.
const Version = 1

// Checkpoint is the persisted envelope around a workflow state.
// The state itself is opaque JSON owned by the router.
type Checkpoint struct {
	Version    int       `json:"version"`
	WorkflowID string    `json:"workflow_id"`
	Workflow   string    `json:"workflow"`
	Sequence   int       `json:"sequence"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`

	State json.RawMessage `json:"state"`
}

// Marshal serializes a checkpoint to JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a checkpoint from JSON.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// New creates a checkpoint envelope. State must already be JSON-serialized.
func New(workflowID, workflow string, sequence int, status string, state []byte) *Checkpoint {
	return &Checkpoint{
		Version:    Version,
		WorkflowID: workflowID,
		Workflow:   workflow,
		Sequence:   sequence,
		Status:     status,
		Timestamp:  time.Now().UTC(),
		State:      state,
	}
}
