package agentrouter

import "slices"

// CompiledWorkflow is an immutable, executable workflow.
// It is created by calling Compile() on a Workflow builder.
//
// CompiledWorkflow is thread-safe and can be used concurrently for multiple
// Run() and Resume() calls on different workflow ids.
type CompiledWorkflow struct {
	name          string
	workers       map[string]*workerSpec
	candidates    []string // registration order
	dispatcher    Dispatcher
	extractors    []Extractor
	maxIterations int
}

// Name returns the workflow name.
func (cw *CompiledWorkflow) Name() string {
	return cw.name
}

// Workers returns the names the dispatcher may choose from, in
// registration order. Gates are included.
func (cw *CompiledWorkflow) Workers() []string {
	return slices.Clone(cw.candidates)
}

// HasWorker checks if a worker or gate is registered under name.
func (cw *CompiledWorkflow) HasWorker(name string) bool {
	_, exists := cw.workers[name]
	return exists
}

// IsGate returns true if name is an interrupt gate.
func (cw *CompiledWorkflow) IsGate(name string) bool {
	spec, exists := cw.workers[name]
	return exists && spec.gate
}

// GatePrompt returns the prompt of a gate, or "" for anything else.
func (cw *CompiledWorkflow) GatePrompt(name string) string {
	if spec, exists := cw.workers[name]; exists && spec.gate {
		return spec.prompt
	}
	return ""
}

// MaxIterations returns the workflow's own iteration cap.
func (cw *CompiledWorkflow) MaxIterations() int {
	return cw.maxIterations
}

func (cw *CompiledWorkflow) getWorker(name string) (*workerSpec, bool) {
	spec, exists := cw.workers[name]
	return spec, exists
}
