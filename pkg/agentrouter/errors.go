package agentrouter

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for workflow building and compilation.
var (
	// ErrNoDispatcher indicates SetDispatcher() was not called before Compile().
	ErrNoDispatcher = errors.New("dispatcher not set")

	// ErrNoWorkers indicates a workflow with neither workers nor gates.
	ErrNoWorkers = errors.New("workflow has no workers")

	// ErrInvalidMaxIterations indicates an iteration cap outside 1..MaxIterationsLimit.
	ErrInvalidMaxIterations = errors.New("invalid max iterations")

	// ErrUnknownWorker indicates a name that is not a registered worker or gate.
	ErrUnknownWorker = errors.New("unknown worker")
)

// Sentinel errors for execution.
var (
	// ErrRecursionLimit indicates the dispatch loop exceeded the iteration cap.
	ErrRecursionLimit = errors.New("recursion limit reached")

	// ErrNilContext indicates Run() was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrEmptyDecision indicates a dispatcher returned the zero Decision.
	ErrEmptyDecision = errors.New("dispatcher returned empty decision")

	// ErrEmptySeed indicates Run() was called with a seed message without content.
	ErrEmptySeed = errors.New("seed message is empty")
)

// Sentinel errors for checkpointing and resume.
var (
	// ErrWorkflowIDRequired indicates checkpointing was enabled without a workflow id.
	ErrWorkflowIDRequired = errors.New("workflow id required for checkpointing")

	// ErrNoCheckpointStore indicates a gate was reached with no store to park the run in.
	ErrNoCheckpointStore = errors.New("no checkpoint store configured")

	// ErrSerializeState indicates state serialization failed.
	ErrSerializeState = errors.New("failed to serialize state")

	// ErrDeserializeState indicates state deserialization failed.
	ErrDeserializeState = errors.New("failed to deserialize state")

	// ErrNoCheckpoint indicates no checkpoint exists for the workflow id.
	ErrNoCheckpoint = errors.New("no checkpoint found for workflow")

	// ErrNotAwaitingInput indicates Resume() on a run that is not parked at a gate.
	ErrNotAwaitingInput = errors.New("workflow is not awaiting input")

	// ErrWorkflowMismatch indicates a checkpoint written by a different workflow.
	ErrWorkflowMismatch = errors.New("checkpoint belongs to a different workflow")

	// ErrCheckpointVersionMismatch indicates the checkpoint version is incompatible.
	ErrCheckpointVersionMismatch = errors.New("checkpoint version mismatch")
)

// ConfigError reports a dispatcher decision outside the candidate set.
// It is fatal and never retried: the workflow definition and the dispatcher
// disagree about who exists.
type ConfigError struct {
	// Returned is the name the dispatcher chose.
	Returned string
	// Candidates is the valid set at the time of the decision.
	Candidates []string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("dispatcher returned %q, want one of [%s]: %v",
		e.Returned, strings.Join(e.Candidates, ", "), e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// DispatchError wraps a failure of the dispatcher itself, after whatever
// retry policy the dispatcher applies internally.
type DispatchError struct {
	// Iteration is the dispatch call that failed (1-based, per invocation).
	Iteration int
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %d: %v", e.Iteration, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *DispatchError) Unwrap() error {
	return e.Err
}

// RecursionLimitError provides context when the iteration cap is exceeded.
type RecursionLimitError struct {
	// Max is the configured iteration limit.
	Max int
	// Worker is the worker that would have executed next.
	Worker string
}

// Error implements the error interface.
func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("recursion limit (%d) reached before worker %s", e.Max, e.Worker)
}

// Unwrap returns ErrRecursionLimit for errors.Is support.
func (e *RecursionLimitError) Unwrap() error {
	return ErrRecursionLimit
}

// CancellationError records where the run was when its context was cancelled.
type CancellationError struct {
	// Worker is the worker that was about to execute or was executing.
	Worker string
	// Cause is the underlying cancellation cause (context.Canceled or context.DeadlineExceeded).
	Cause error
	// WasExecuting is true if cancellation occurred during worker execution.
	WasExecuting bool
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	if e.WasExecuting {
		return fmt.Sprintf("cancelled during worker %s: %v", e.Worker, e.Cause)
	}
	if e.Worker == "" {
		return fmt.Sprintf("cancelled before dispatch: %v", e.Cause)
	}
	return fmt.Sprintf("cancelled before worker %s: %v", e.Worker, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// CheckpointError wraps errors from checkpoint operations.
type CheckpointError struct {
	// WorkflowID is the run whose checkpoint failed.
	WorkflowID string
	// Op is the operation that failed ("save", "load", "serialize").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CheckpointError) Unwrap() error {
	return e.Err
}

// WorkerError wraps a failure returned by a worker. The router always
// contains it: the error text becomes the worker's message and the run
// continues.
type WorkerError struct {
	Worker string
	Err    error
}

// Error implements the error interface.
func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %s: %v", e.Worker, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *WorkerError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from a worker or dispatcher.
// It includes the stack trace for debugging.
type PanicError struct {
	// Worker is the worker that panicked, or "dispatcher".
	Worker string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", e.Worker, e.Value)
}
