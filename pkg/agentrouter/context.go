package agentrouter

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/llm"
)

// Context provides execution context to workers and dispatchers.
// It extends context.Context with router services and metadata.
//
// Context is immutable after creation. The router creates derived contexts
// for each dispatch and worker call with updated metadata and an enriched
// logger.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with workflow_id,
	// worker and iteration during a run.
	// Never returns nil - defaults to slog.Default() if not configured.
	Logger() *slog.Logger

	// Completion returns the default completion client, or nil if not
	// configured. Workers built with their own client ignore it.
	Completion() llm.Client

	// WorkflowID returns the identifier of the run.
	// Auto-generated if not configured.
	WorkflowID() string

	// Worker returns the worker being executed, or "" during dispatch.
	Worker() string

	// Iteration returns the cumulative iteration number of the current step.
	Iteration() int
}

type executionContext struct {
	context.Context

	logger     *slog.Logger
	completion llm.Client
	workflowID string
	worker     string
	iteration  int
}

func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

func (c *executionContext) Completion() llm.Client {
	return c.completion
}

func (c *executionContext) WorkflowID() string {
	return c.workflowID
}

func (c *executionContext) Worker() string {
	return c.worker
}

func (c *executionContext) Iteration() int {
	return c.iteration
}

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCompletion sets the default completion client.
func WithCompletion(client llm.Client) ContextOption {
	return func(c *executionContext) {
		c.completion = client
	}
}

// WithContextWorkflowID sets the workflow id for the context.
// If not set, a UUID will be auto-generated. WithWorkflowID as a RunOption
// takes precedence for Run().
func WithContextWorkflowID(id string) ContextOption {
	return func(c *executionContext) {
		c.workflowID = id
	}
}

// NewContext creates an execution context from a standard context.
//
// Example:
//
//	ctx := agentrouter.NewContext(context.Background(),
//	    agentrouter.WithLogger(myLogger),
//	    agentrouter.WithCompletion(client))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context:    ctx,
		logger:     slog.Default(),
		workflowID: uuid.NewString(),
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// derive returns a context for one step of a run. parent carries the
// tracing span; services come from base.
func derive(parent context.Context, base Context, workflowID, worker string, iteration int) Context {
	logger := base.Logger().With(
		slog.String("workflow_id", workflowID),
		slog.Int("iteration", iteration),
	)
	if worker != "" {
		logger = logger.With(slog.String("worker", worker))
	}
	return &executionContext{
		Context:    parent,
		logger:     logger,
		completion: base.Completion(),
		workflowID: workflowID,
		worker:     worker,
		iteration:  iteration,
	}
}
