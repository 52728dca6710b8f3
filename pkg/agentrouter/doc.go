/*
Package agentrouter runs supervised multi-agent workflows.

# Overview

A workflow is a set of named workers plus a dispatcher. The router
alternates between asking the dispatcher who should act next and running
that worker, over a shared append-only conversation log. Each worker
contributes exactly one message per turn. The loop ends when the
dispatcher says FINISH, when an interrupt gate parks the run waiting for
a human, or when the iteration cap trips.

# Basic Usage

	wf := agentrouter.NewWorkflow("greeter").
	    AddWorker("greet", agentrouter.WorkerFunc(func(ctx agentrouter.Context, s agentrouter.State) (agentrouter.Message, error) {
	        return agentrouter.AssistantMessage("hello"), nil
	    })).
	    SetDispatcher(agentrouter.DispatcherFunc(func(ctx agentrouter.Context, s agentrouter.State, _ []string) (agentrouter.Decision, error) {
	        if last, _ := s.Log.Last(); last.AuthorName == "greet" {
	            return agentrouter.Finish(), nil
	        }
	        return agentrouter.Route("greet"), nil
	    }))

	compiled, err := wf.Compile()
	if err != nil {
	    log.Fatal(err)
	}

	ctx := agentrouter.NewContext(context.Background())
	state, err := compiled.Run(ctx, agentrouter.UserMessage("hi"))

The router, not the worker, stamps each message with the worker's name,
its visibility and a default assistant role.

# Dispatchers

A Dispatcher sees the full log, including hidden messages, and the list
of registered names. It answers Route(name) or Finish(). An answer that
names nobody registered fails the run with a ConfigError; a dispatcher
that errors fails it with a DispatchError. The dispatch subpackage has an
LLM supervisor and an expression-based rules dispatcher.

# Failures

Worker errors and panics never fail the run. They become an error
message (IsError set, content "error: ...") so the dispatcher can route
around them. Cancellation, dispatcher failures, configuration errors and
the recursion limit are fatal: Run returns the error together with the
state at that point, Status set to StatusError.

	state, err := compiled.Run(ctx, seed)
	var limit *agentrouter.RecursionLimitError
	if errors.As(err, &limit) {
	    log.Printf("gave up before %s after %d steps", limit.Worker, limit.Max)
	}

# Gates and Resume

A gate registered with AddGate suspends the run. The state is saved to
the checkpoint store with Status StatusAwaitingInput and an Interrupt
holding the gate's prompt:

	state, err := compiled.Run(ctx, seed,
	    agentrouter.WithWorkflowID("wf-123"),
	    agentrouter.WithCheckpointing(store))
	// state.Status == agentrouter.StatusAwaitingInput

	state, err = compiled.Resume(ctx, store, "wf-123", map[string]any{"approved": true})

Resume appends the payload as a user message and continues with a fresh
iteration budget.

# Observability

	state, err := compiled.Run(ctx, seed,
	    agentrouter.WithObservabilityLogger(logger),
	    agentrouter.WithMetrics(observability.NewMetricsRecorder()),
	    agentrouter.WithTracing(true))

Logs carry workflow_id, worker and iteration. Spans are
agentrouter.run > agentrouter.dispatch / agentrouter.worker.{name}.

# Thread Safety

  - Workflow is NOT safe for concurrent use during construction
  - CompiledWorkflow IS safe for concurrent use (immutable)
  - Runs of different workflow ids are independent; the runtime
    subpackage serializes calls for the same id

# Subpackages

  - agent: LLM, tool and static workers
  - checkpoint: state stores (memory, SQLite, file, Redis, Postgres)
  - config: YAML workflow definitions
  - dispatch: LLM and rules dispatchers
  - errors: failure classification and retry
  - expr: condition expressions for rules
  - extract: field extractors
  - llm: completion client interface
  - lock: per-id locking
  - observability: logging, metrics, and tracing helpers
  - registry: compiled workflow registry
  - runtime: start/resume/status facade
  - template: instruction placeholders
  - tool: tools callable by workers
*/
package agentrouter
