package agentrouter

import (
	"fmt"
	"log/slog"
	"maps"

	"github.com/randalmurphal/agentrouter/pkg/agentrouter/checkpoint"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/observability"
)

// runConfig holds configuration for one Run or Resume invocation.
type runConfig struct {
	maxIterations int // 0 means the workflow's own cap
	workflowID    string
	fields        map[string]any

	checkpointStore        checkpoint.Store
	checkpointFailureFatal bool
	sequence               int
	// restore is the checkpoint to put back when this invocation fails to
	// persist; nil means the run had none.
	restore *State

	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
}

func defaultRunConfig() runConfig {
	return runConfig{
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// MaxIterationsLimit is the largest accepted iteration cap.
const MaxIterationsLimit = 10000

// WithMaxIterations overrides the workflow's iteration cap for this call.
//
// Panics if n is not positive or exceeds MaxIterationsLimit.
//
// Example:
//
//	state, err := compiled.Run(ctx, seed, agentrouter.WithMaxIterations(10))
func WithMaxIterations(n int) RunOption {
	if n <= 0 {
		panic("agentrouter: max iterations must be > 0")
	}
	if n > MaxIterationsLimit {
		panic(fmt.Sprintf("agentrouter: max iterations exceeds limit (%d)", MaxIterationsLimit))
	}
	return func(c *runConfig) {
		c.maxIterations = n
	}
}

// WithWorkflowID sets the run identifier, which is also the checkpoint key.
// Defaults to ctx.WorkflowID().
func WithWorkflowID(id string) RunOption {
	return func(c *runConfig) {
		c.workflowID = id
	}
}

// WithFields seeds the extracted fields of a new run.
func WithFields(fields map[string]any) RunOption {
	return func(c *runConfig) {
		c.fields = maps.Clone(fields)
	}
}

// WithCheckpointing enables state persistence. Required for workflows with
// gates: a run cannot suspend without somewhere to park.
func WithCheckpointing(store checkpoint.Store) RunOption {
	return func(c *runConfig) {
		c.checkpointStore = store
	}
}

// WithCheckpointFailureFatal makes per-iteration checkpoint failures abort
// the run. Suspend saves are always fatal.
func WithCheckpointFailureFatal() RunOption {
	return func(c *runConfig) {
		c.checkpointFailureFatal = true
	}
}

// WithObservabilityLogger sets the logger for run-level events.
// Workers log through ctx.Logger() independently.
func WithObservabilityLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables OpenTelemetry spans per run, dispatch and worker.
func WithTracing(enabled bool) RunOption {
	return func(c *runConfig) {
		c.tracingEnabled = enabled
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithSpanManager sets a custom span manager and enables tracing.
func WithSpanManager(sm observability.SpanManager) RunOption {
	return func(c *runConfig) {
		if sm != nil {
			c.spans = sm
			c.tracingEnabled = true
		}
	}
}
