package agentrouter

import (
	"fmt"
	"strings"
	"sync"
)

// DefaultMaxIterations is the iteration cap used when neither the workflow
// nor the run options set one.
const DefaultMaxIterations = 25

// Workflow is a mutable builder for a supervised workflow: a set of named
// workers and gates plus the dispatcher that chooses among them.
//
// Workflow is NOT thread-safe during building. Use a single goroutine to
// construct it, then call Compile() to create an immutable CompiledWorkflow
// that can be safely shared.
//
// Example:
//
//	wf := agentrouter.NewWorkflow("credit_approval").
//	    AddWorker("credit_score_checker", scoreWorker).
//	    AddWorker("final_decision", decisionWorker).
//	    AddGate("manual_approver", "Approve the application now?").
//	    SetDispatcher(rules)
//
//	compiled, err := wf.Compile()
type Workflow struct {
	mu            sync.RWMutex
	name          string
	members       []*workerSpec
	index         map[string]*workerSpec
	dispatcher    Dispatcher
	extractors    []Extractor
	maxIterations int
}

// NewWorkflow creates a workflow builder.
//
// Panics if name is empty.
func NewWorkflow(name string) *Workflow {
	if name == "" {
		panic("agentrouter: workflow name cannot be empty")
	}
	return &Workflow{
		name:          name,
		index:         make(map[string]*workerSpec),
		maxIterations: DefaultMaxIterations,
	}
}

// AddWorker registers a worker under name.
// Returns the workflow for method chaining.
//
// Panics if:
//   - name is empty
//   - name is a terminal token ("FINISH", "END", "__end__", any case)
//   - name contains whitespace (space, tab, newline)
//   - w is nil
//   - name is already registered
func (wf *Workflow) AddWorker(name string, w Worker, opts ...WorkerOption) *Workflow {
	if w == nil {
		panic("agentrouter: worker cannot be nil")
	}
	spec := &workerSpec{name: name, worker: w}
	for _, opt := range opts {
		opt(spec)
	}
	return wf.add(spec)
}

// AddGate registers an interrupt gate. Selecting a gate suspends the run
// with prompt until Resume supplies input.
// Returns the workflow for method chaining.
//
// Panics under the same naming rules as AddWorker.
func (wf *Workflow) AddGate(name, prompt string, opts ...WorkerOption) *Workflow {
	spec := &workerSpec{name: name, gate: true, prompt: prompt}
	for _, opt := range opts {
		opt(spec)
	}
	return wf.add(spec)
}

func (wf *Workflow) add(spec *workerSpec) *Workflow {
	validateName(spec.name)

	wf.mu.Lock()
	defer wf.mu.Unlock()

	if _, exists := wf.index[spec.name]; exists {
		panic(fmt.Sprintf("agentrouter: duplicate worker name: %s", spec.name))
	}
	wf.index[spec.name] = spec
	wf.members = append(wf.members, spec)
	return wf
}

func validateName(name string) {
	if name == "" {
		panic("agentrouter: worker name cannot be empty")
	}

	lower := strings.ToLower(name)
	for _, reserved := range terminalTokens {
		if lower == reserved {
			panic(fmt.Sprintf("agentrouter: worker name cannot be reserved word %q", name))
		}
	}

	if strings.ContainsAny(name, " \t\n\r") {
		panic("agentrouter: worker name cannot contain whitespace")
	}
}

// SetDispatcher sets the dispatcher. Calling it again replaces the previous one.
// Returns the workflow for method chaining.
func (wf *Workflow) SetDispatcher(d Dispatcher) *Workflow {
	wf.mu.Lock()
	defer wf.mu.Unlock()

	wf.dispatcher = d
	return wf
}

// AddExtractor appends a field extractor. Extractors run in registration
// order on every appended message; later ones win on key collisions.
// Returns the workflow for method chaining.
func (wf *Workflow) AddExtractor(e Extractor) *Workflow {
	if e == nil {
		panic("agentrouter: extractor cannot be nil")
	}

	wf.mu.Lock()
	defer wf.mu.Unlock()

	wf.extractors = append(wf.extractors, e)
	return wf
}

// SetMaxIterations sets the workflow's own iteration cap.
// WithMaxIterations on a run overrides it.
// Returns the workflow for method chaining.
//
// Validation happens at Compile() time.
func (wf *Workflow) SetMaxIterations(n int) *Workflow {
	wf.mu.Lock()
	defer wf.mu.Unlock()

	wf.maxIterations = n
	return wf
}
