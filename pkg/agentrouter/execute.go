package agentrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"runtime/debug"
	"strings"
	"time"

	"github.com/randalmurphal/agentrouter/pkg/agentrouter/checkpoint"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/observability"
	"go.opentelemetry.io/otel/trace"
)

// Run starts a new workflow run with seed as its first message.
// Returns the state when the run finishes, suspends at a gate, or fails.
//
// The state is returned on error too, with Status set to StatusError and
// Error describing the failure, so partial progress is never lost. A
// failure to write a checkpoint removes the run's checkpoint instead, so
// the same workflow id can be started again.
//
// Execution flow:
//  1. Ask the dispatcher for the next worker, given the full log
//  2. Validate the decision against the registered workers
//  3. Finish, suspend at a gate, or execute the worker
//  4. Append the worker's message and run the extractors
//  5. Repeat until finished, suspended, failed, or the iteration cap trips
//
// Example:
//
//	ctx := agentrouter.NewContext(context.Background())
//	state, err := compiled.Run(ctx, agentrouter.UserMessage("Process application APP1"),
//	    agentrouter.WithCheckpointing(store))
//	if err != nil {
//	    // state.Log holds everything appended before the failure
//	}
func (cw *CompiledWorkflow) Run(ctx Context, seed Message, opts ...RunOption) (State, error) {
	if ctx == nil {
		return State{}, ErrNilContext
	}
	if strings.TrimSpace(seed.Content) == "" {
		return State{}, ErrEmptySeed
	}

	cfg := cw.newRunConfig(ctx, opts)
	if cfg.workflowID == "" {
		cfg.workflowID = ctx.WorkflowID()
	}
	if cfg.checkpointStore != nil && cfg.workflowID == "" {
		return State{}, ErrWorkflowIDRequired
	}

	now := time.Now().UTC()
	state := State{
		WorkflowID: cfg.workflowID,
		Workflow:   cw.name,
		Fields:     map[string]any{},
		Status:     StatusRunning,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	maps.Copy(state.Fields, cfg.fields)

	if seed.Role == "" {
		seed.Role = RoleUser
	}
	if seed.Time.IsZero() {
		seed.Time = now
	}
	state = cw.appendMessage(state, seed, nil)

	return cw.execute(ctx, state, "start", &cfg)
}

func (cw *CompiledWorkflow) newRunConfig(ctx Context, opts []RunOption) runConfig {
	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxIterations == 0 {
		cfg.maxIterations = cw.maxIterations
	}
	if cfg.logger == nil {
		cfg.logger = ctx.Logger()
	}
	return cfg
}

// execute wraps the dispatch loop with run-level observability and error
// bookkeeping. It is shared by Run and Resume.
func (cw *CompiledWorkflow) execute(ctx Context, state State, op string, cfg *runConfig) (result State, runErr error) {
	startTime := time.Now()
	observability.LogRunStart(cfg.logger, cw.name, state.WorkflowID, op)

	var tracingCtx context.Context = ctx
	if cfg.tracingEnabled {
		var runSpan trace.Span
		tracingCtx, runSpan = cfg.spans.StartRunSpan(ctx, cw.name, state.WorkflowID)
		defer func() {
			cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}

	result, runErr = cw.loop(tracingCtx, ctx, state, cfg)

	duration := time.Since(startTime)
	durationMs := float64(duration.Milliseconds())

	if runErr != nil {
		result.Status = StatusError
		result.Error = runErr.Error()
		result.Interrupt = nil
		result.UpdatedAt = time.Now().UTC()

		// Best effort: the caller is already getting runErr.
		if cfg.checkpointStore != nil {
			saveCtx := context.WithoutCancel(tracingCtx)
			var cpErr *CheckpointError
			if errors.As(runErr, &cpErr) {
				cw.rollback(saveCtx, cfg, result.WorkflowID)
			} else if err := cw.saveCheckpoint(saveCtx, cfg, result); err != nil {
				observability.LogCheckpointError(cfg.logger, result.WorkflowID, "save", err)
			}
		}
		observability.LogRunError(cfg.logger, result.WorkflowID, runErr, durationMs, result.CurrentWorker)
	} else {
		observability.LogRunComplete(cfg.logger, result.WorkflowID, string(result.Status), durationMs, result.Iterations)
	}

	cfg.metrics.RecordRun(tracingCtx, cw.name, string(result.Status), duration)
	return result, runErr
}

// loop runs dispatch/execute cycles until a terminal decision, a gate, or a
// fatal error. The iteration budget is per invocation.
func (cw *CompiledWorkflow) loop(tracingCtx context.Context, ctx Context, state State, cfg *runConfig) (State, error) {
	used := 0

	for {
		if err := ctx.Err(); err != nil {
			return state, &CancellationError{Cause: err}
		}

		decision, err := cw.dispatch(tracingCtx, ctx, state, cfg)
		if err != nil {
			return state, err
		}

		if decision.IsTerminal() {
			state.Status = StatusDone
			state.UpdatedAt = time.Now().UTC()
			if err := cw.checkpoint(tracingCtx, cfg, state); err != nil {
				return state, err
			}
			return state, nil
		}

		name := decision.Worker()
		used++
		if used > cfg.maxIterations {
			return state, &RecursionLimitError{Max: cfg.maxIterations, Worker: name}
		}
		state.Iterations++
		state.CurrentWorker = name

		spec, _ := cw.getWorker(name)
		if spec.gate {
			return cw.suspend(tracingCtx, state, spec, cfg)
		}

		state, err = cw.runWorker(tracingCtx, ctx, state, spec, cfg)
		if err != nil {
			return state, err
		}

		if err := cw.checkpoint(tracingCtx, cfg, state); err != nil {
			return state, err
		}
	}
}

// dispatch asks the dispatcher for one decision and validates it.
// The dispatcher is called exactly once; its answer is never replayed.
func (cw *CompiledWorkflow) dispatch(tracingCtx context.Context, ctx Context, state State, cfg *runConfig) (decision Decision, err error) {
	iteration := state.Iterations + 1

	spanCtx := tracingCtx
	if cfg.tracingEnabled {
		var span trace.Span
		spanCtx, span = cfg.spans.StartDispatchSpan(tracingCtx, iteration)
		defer func() {
			cfg.spans.EndSpanWithError(span, err)
		}()
	}

	candidates := cw.Workers()
	dctx := derive(spanCtx, ctx, state.WorkflowID, "", iteration)

	decision, err = callDispatcher(dctx, cw.dispatcher, state.clone(), candidates)
	if err != nil {
		var cfgErr *ConfigError
		switch {
		case errors.As(err, &cfgErr):
			return Decision{}, cfgErr
		case ctx.Err() != nil:
			return Decision{}, &CancellationError{Cause: ctx.Err()}
		default:
			return Decision{}, &DispatchError{Iteration: iteration, Err: err}
		}
	}

	if decision.isZero() {
		return Decision{}, &ConfigError{Candidates: candidates, Err: ErrEmptyDecision}
	}
	if !decision.IsTerminal() && !cw.HasWorker(decision.Worker()) {
		return Decision{}, &ConfigError{
			Returned:   decision.Worker(),
			Candidates: candidates,
			Err:        ErrUnknownWorker,
		}
	}

	observability.LogDecision(cfg.logger, decision.String(), iteration)
	cfg.metrics.RecordDecision(spanCtx, decision.String())
	return decision, nil
}

func callDispatcher(ctx Context, d Dispatcher, state State, candidates []string) (decision Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				Worker: "dispatcher",
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()
	return d.Decide(ctx, state, candidates)
}

// runWorker executes one worker and appends its message. Worker errors and
// panics are contained as error content; only cancellation is returned.
func (cw *CompiledWorkflow) runWorker(tracingCtx context.Context, ctx Context, state State, spec *workerSpec, cfg *runConfig) (State, error) {
	observability.LogWorkerStart(cfg.logger, spec.name)

	spanCtx := tracingCtx
	var span trace.Span
	if cfg.tracingEnabled {
		spanCtx, span = cfg.spans.StartWorkerSpan(tracingCtx, spec.name)
	}

	wctx := derive(spanCtx, ctx, state.WorkflowID, spec.name, state.Iterations)

	start := time.Now()
	msg, err := executeWorker(wctx, spec, state.clone())
	duration := time.Since(start)

	cfg.metrics.RecordWorkerExecution(spanCtx, spec.name, duration, err)
	if cfg.tracingEnabled {
		cfg.spans.EndSpanWithError(span, err)
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return state, &CancellationError{
			Worker:       spec.name,
			Cause:        ctxErr,
			WasExecuting: true,
		}
	}

	if err != nil {
		observability.LogWorkerError(cfg.logger, spec.name, &WorkerError{Worker: spec.name, Err: err})
		msg = ErrorMessage(err)
	} else {
		observability.LogWorkerComplete(cfg.logger, spec.name, float64(duration.Milliseconds()))
	}

	return cw.appendMessage(state, stamp(msg, spec), nil), nil
}

// executeWorker runs a worker with panic recovery.
func executeWorker(ctx Context, spec *workerSpec, state State) (msg Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			msg = Message{}
			err = &PanicError{
				Worker: spec.name,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()
	return spec.worker.Execute(ctx, state)
}

// stamp applies the router-owned parts of a worker message.
func stamp(msg Message, spec *workerSpec) Message {
	msg.AuthorName = spec.name
	if msg.Role == "" {
		msg.Role = RoleAssistant
	}
	msg.Visible = !spec.hidden
	if msg.Time.IsZero() {
		msg.Time = time.Now().UTC()
	}
	return msg
}

// appendMessage appends msg, runs the extractors on it, and merges their
// fields followed by extra.
func (cw *CompiledWorkflow) appendMessage(state State, msg Message, extra map[string]any) State {
	fields := make(map[string]any)
	for _, e := range cw.extractors {
		maps.Copy(fields, e.Extract(msg))
	}
	maps.Copy(fields, extra)
	return state.apply(Delta{Messages: []Message{msg}, Fields: fields})
}

// checkpoint saves state after a step. Failures are logged and swallowed
// unless WithCheckpointFailureFatal was given.
func (cw *CompiledWorkflow) checkpoint(ctx context.Context, cfg *runConfig, state State) error {
	if cfg.checkpointStore == nil {
		return nil
	}
	if err := cw.saveCheckpoint(ctx, cfg, state); err != nil {
		if cfg.checkpointFailureFatal {
			return err
		}
		observability.LogCheckpointError(cfg.logger, state.WorkflowID, "save", err)
	}
	return nil
}

// rollback puts back the checkpoint the invocation started from, so the
// same Start or Resume can be retried once the store recovers. Steps saved
// in between are discarded along with the failed invocation.
func (cw *CompiledWorkflow) rollback(ctx context.Context, cfg *runConfig, workflowID string) {
	var err error
	if cfg.restore == nil {
		err = cfg.checkpointStore.Delete(ctx, workflowID)
	} else {
		err = cw.saveCheckpoint(ctx, cfg, *cfg.restore)
	}
	if err != nil {
		observability.LogCheckpointError(cfg.logger, workflowID, "rollback", err)
	}
}

// saveCheckpoint persists state, returning a *CheckpointError on failure.
func (cw *CompiledWorkflow) saveCheckpoint(ctx context.Context, cfg *runConfig, state State) error {
	stateBytes, err := json.Marshal(state)
	if err != nil {
		return &CheckpointError{
			WorkflowID: state.WorkflowID,
			Op:         "serialize",
			Err:        fmt.Errorf("%w: %v", ErrSerializeState, err),
		}
	}

	cfg.sequence++
	cp := checkpoint.New(state.WorkflowID, cw.name, cfg.sequence, string(state.Status), stateBytes)

	data, err := cp.Marshal()
	if err != nil {
		return &CheckpointError{
			WorkflowID: state.WorkflowID,
			Op:         "marshal",
			Err:        err,
		}
	}

	if err := cfg.checkpointStore.Save(ctx, state.WorkflowID, data); err != nil {
		return &CheckpointError{
			WorkflowID: state.WorkflowID,
			Op:         "save",
			Err:        err,
		}
	}

	sizeBytes := len(data)
	observability.LogCheckpoint(cfg.logger, state.WorkflowID, sizeBytes)
	cfg.metrics.RecordCheckpoint(ctx, cw.name, int64(sizeBytes))
	return nil
}
