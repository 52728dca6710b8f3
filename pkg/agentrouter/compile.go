package agentrouter

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// Compile validates the workflow and creates an executable CompiledWorkflow.
// Returns an error if validation fails. Multiple errors are joined together.
//
// Validation checks:
//  1. A dispatcher must be set
//  2. At least one worker or gate must be registered
//  3. The iteration cap must be in 1..MaxIterationsLimit
//  4. A dispatcher implementing Targeted may only name registered workers
//
// Workers a Targeted dispatcher can never select are logged as warnings
// but do not cause compilation to fail.
func (wf *Workflow) Compile() (*CompiledWorkflow, error) {
	wf.mu.RLock()
	defer wf.mu.RUnlock()

	var errs []error

	if wf.dispatcher == nil {
		errs = append(errs, ErrNoDispatcher)
	}

	if len(wf.members) == 0 {
		errs = append(errs, ErrNoWorkers)
	}

	if wf.maxIterations <= 0 || wf.maxIterations > MaxIterationsLimit {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidMaxIterations, wf.maxIterations))
	}

	if t, ok := wf.dispatcher.(Targeted); ok {
		targets := t.Targets()
		for _, name := range targets {
			if _, exists := wf.index[name]; !exists {
				errs = append(errs, fmt.Errorf("%w: dispatcher target '%s' is not registered", ErrUnknownWorker, name))
			}
		}
		wf.warnUnroutable(targets)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return wf.buildCompiled(), nil
}

// warnUnroutable logs workers the dispatcher never names.
func (wf *Workflow) warnUnroutable(targets []string) {
	for _, m := range wf.members {
		if !slices.Contains(targets, m.name) {
			slog.Warn("worker is never selected by the dispatcher",
				"workflow", wf.name, "worker", m.name)
		}
	}
}

func (wf *Workflow) buildCompiled() *CompiledWorkflow {
	cw := &CompiledWorkflow{
		name:          wf.name,
		workers:       make(map[string]*workerSpec, len(wf.members)),
		candidates:    make([]string, 0, len(wf.members)),
		dispatcher:    wf.dispatcher,
		extractors:    slices.Clone(wf.extractors),
		maxIterations: wf.maxIterations,
	}
	for _, m := range wf.members {
		spec := *m
		cw.workers[m.name] = &spec
		cw.candidates = append(cw.candidates, m.name)
	}
	return cw
}
