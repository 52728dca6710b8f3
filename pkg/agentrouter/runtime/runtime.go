// Package runtime hosts compiled workflows behind a start/resume/status
// API keyed by workflow id. It owns the checkpoint store and serializes
// every operation on one id.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/agentrouter/pkg/agentrouter"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/checkpoint"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/llm"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/lock"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/observability"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/registry"
)

var (
	// ErrWorkflowNotFound is returned for a workflow name nobody registered.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrRunExists is returned when Start is given an id that already has
	// a checkpoint.
	ErrRunExists = errors.New("workflow run already exists")

	// ErrNotAwaitingInput is returned when resuming a run that is not
	// parked at a gate.
	ErrNotAwaitingInput = agentrouter.ErrNotAwaitingInput
)

// Seed starts a run.
type Seed struct {
	Content string
	Fields  map[string]any
	// WorkflowID is generated when empty.
	WorkflowID string
}

// Runtime runs registered workflows against one checkpoint store.
type Runtime struct {
	workflows *registry.Registry[string, *agentrouter.CompiledWorkflow]
	store     checkpoint.Store
	locks     *lock.Keyed

	logger     *slog.Logger
	completion llm.Client
	locker     lock.Locker
	lockTTL    time.Duration
	runOpts    []agentrouter.RunOption
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger handed to every run.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) { r.logger = logger }
}

// WithCompletion sets the completion client workers and dispatchers fall
// back to when they were built without one.
func WithCompletion(client llm.Client) Option {
	return func(r *Runtime) { r.completion = client }
}

// WithLocker adds a distributed lock around every operation on an id.
func WithLocker(l lock.Locker) Option {
	return func(r *Runtime) { r.locker = l }
}

// WithLockTTL sets how long the distributed lock outlives a holder that
// stopped refreshing it. Default lock.DefaultTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(r *Runtime) { r.lockTTL = ttl }
}

// WithMetrics records run metrics.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(r *Runtime) { r.runOpts = append(r.runOpts, agentrouter.WithMetrics(m)) }
}

// WithTracing enables OpenTelemetry spans for every run.
func WithTracing() Option {
	return func(r *Runtime) { r.runOpts = append(r.runOpts, agentrouter.WithTracing(true)) }
}

// WithMaxIterations overrides each workflow's own iteration cap.
func WithMaxIterations(n int) Option {
	return func(r *Runtime) { r.runOpts = append(r.runOpts, agentrouter.WithMaxIterations(n)) }
}

// WithRunOptions appends arbitrary run options.
func WithRunOptions(opts ...agentrouter.RunOption) Option {
	return func(r *Runtime) { r.runOpts = append(r.runOpts, opts...) }
}

// New creates a Runtime on store.
func New(store checkpoint.Store, opts ...Option) *Runtime {
	r := &Runtime{
		workflows: registry.New[string, *agentrouter.CompiledWorkflow](),
		store:     store,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	lockOpts := []lock.Option{lock.WithLogger(r.logger)}
	if r.locker != nil {
		lockOpts = append(lockOpts, lock.WithLocker(r.locker))
	}
	if r.lockTTL > 0 {
		lockOpts = append(lockOpts, lock.WithTTL(r.lockTTL))
	}
	r.locks = lock.NewKeyed(lockOpts...)
	return r
}

// Register adds a compiled workflow under its name.
func (r *Runtime) Register(compiled *agentrouter.CompiledWorkflow) error {
	return r.workflows.Add(compiled.Name(), compiled)
}

// Workflows returns the registered names, sorted.
func (r *Runtime) Workflows() []string {
	return registry.SortedKeys(r.workflows)
}

// Workflow returns a registered workflow.
func (r *Runtime) Workflow(name string) (*agentrouter.CompiledWorkflow, bool) {
	return r.workflows.Get(name)
}

// Store returns the checkpoint store.
func (r *Runtime) Store() checkpoint.Store {
	return r.store
}

func (r *Runtime) context(ctx context.Context, workflowID string) agentrouter.Context {
	opts := []agentrouter.ContextOption{
		agentrouter.WithLogger(r.logger),
		agentrouter.WithContextWorkflowID(workflowID),
	}
	if r.completion != nil {
		opts = append(opts, agentrouter.WithCompletion(r.completion))
	}
	return agentrouter.NewContext(ctx, opts...)
}

// Start runs workflow from seed until it finishes, fails or parks at a
// gate. A run that fails still returns its snapshot, with Status error,
// along with the error.
func (r *Runtime) Start(ctx context.Context, workflow string, seed Seed) (Snapshot, error) {
	compiled, ok := r.workflows.Get(workflow)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflow)
	}
	if strings.TrimSpace(seed.Content) == "" {
		return Snapshot{}, agentrouter.ErrEmptySeed
	}

	id := seed.WorkflowID
	if id == "" {
		id = uuid.NewString()
	}

	var snap Snapshot
	err := r.locks.Do(ctx, id, func(ctx context.Context) error {
		if _, err := r.store.Load(ctx, id); err == nil {
			return fmt.Errorf("%w: %s", ErrRunExists, id)
		} else if !errors.Is(err, checkpoint.ErrNotFound) {
			return &agentrouter.CheckpointError{WorkflowID: id, Op: "load", Err: err}
		}

		opts := append([]agentrouter.RunOption{
			agentrouter.WithWorkflowID(id),
			agentrouter.WithCheckpointing(r.store),
			agentrouter.WithFields(seed.Fields),
		}, r.runOpts...)

		state, err := compiled.Run(r.context(ctx, id), agentrouter.UserMessage(seed.Content), opts...)
		snap = NewSnapshot(state)
		return err
	})
	return snap, err
}

// Resume delivers payload to a run parked at a gate and continues it.
// Unknown ids wrap checkpoint.ErrNotFound; runs that are not waiting
// wrap ErrNotAwaitingInput.
func (r *Runtime) Resume(ctx context.Context, workflowID string, payload any) (Snapshot, error) {
	var snap Snapshot
	err := r.locks.Do(ctx, workflowID, func(ctx context.Context) error {
		state, _, err := agentrouter.LoadState(ctx, r.store, workflowID)
		if err != nil {
			return err
		}
		compiled, ok := r.workflows.Get(state.Workflow)
		if !ok {
			snap = NewSnapshot(state)
			return fmt.Errorf("%w: %s", ErrWorkflowNotFound, state.Workflow)
		}

		state, err = compiled.Resume(r.context(ctx, workflowID), r.store, workflowID, payload, r.runOpts...)
		snap = NewSnapshot(state)
		return err
	})
	return snap, err
}

// Status returns the latest snapshot of a run.
func (r *Runtime) Status(ctx context.Context, workflowID string) (Snapshot, error) {
	state, _, err := agentrouter.LoadState(ctx, r.store, workflowID)
	if err != nil {
		return Snapshot{}, err
	}
	return NewSnapshot(state), nil
}

// Runs lists stored runs, oldest update first.
func (r *Runtime) Runs(ctx context.Context) ([]checkpoint.Info, error) {
	return r.store.List(ctx)
}

// Close closes the checkpoint store.
func (r *Runtime) Close() error {
	return r.store.Close()
}
