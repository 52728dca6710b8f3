// Package checkpoint provides durable workflow state storage.
//
// A checkpoint is the latest snapshot of one workflow run, keyed by its
// workflow id. The router saves a checkpoint whenever a run suspends at an
// interrupt gate, finishes, or fails, and a later Resume loads it again.
package checkpoint

import (
	"context"
	"errors"
	"time"
)

// Store persists workflow checkpoints keyed by workflow id.
// Implementations must be safe for concurrent use. Writers to the same
// workflow id are expected to be serialized by the caller.
type Store interface {
	// Save stores the latest checkpoint for a workflow.
	// Overwrites any previous checkpoint for the same id.
	Save(ctx context.Context, workflowID string, data []byte) error

	// Load retrieves the latest checkpoint.
	// Returns ErrNotFound if the workflow has no checkpoint.
	Load(ctx context.Context, workflowID string) ([]byte, error)

	// List returns metadata for every stored workflow, ordered by
	// last update (oldest first).
	// Returns an empty slice (not error) if the store is empty.
	List(ctx context.Context) ([]Info, error)

	// Delete removes a workflow's checkpoint.
	// Returns nil if it doesn't exist.
	Delete(ctx context.Context, workflowID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides metadata without loading full state.
type Info struct {
	WorkflowID string
	Revision   int
	UpdatedAt  time.Time
	Size       int64
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")

	// ErrEmptyID indicates a save or load without a workflow id.
	ErrEmptyID = errors.New("workflow id is empty")
)
