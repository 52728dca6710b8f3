package agentrouter

// Worker performs one unit of work and reports it as a single message.
//
// The router owns the output contract: it stamps AuthorName with the
// registered name, defaults Role to assistant, applies the registered
// visibility, and turns a returned error into error content. Workers
// should not try to do any of that themselves.
type Worker interface {
	Execute(ctx Context, state State) (Message, error)
}

// WorkerFunc adapts a function to Worker.
type WorkerFunc func(ctx Context, state State) (Message, error)

// Execute implements Worker.
func (f WorkerFunc) Execute(ctx Context, state State) (Message, error) {
	return f(ctx, state)
}

// WorkerOption configures a worker or gate registration.
type WorkerOption func(*workerSpec)

// Hidden keeps the worker's messages out of the visible projection.
// The dispatcher still sees them.
func Hidden() WorkerOption {
	return func(s *workerSpec) {
		s.hidden = true
	}
}

// workerSpec is one registered member of a workflow.
type workerSpec struct {
	name   string
	worker Worker

	// gate is true for interrupt gates, which suspend instead of executing.
	gate   bool
	prompt string

	hidden bool
}

// Extractor pulls structured fields out of a newly appended message.
// It returns nil when the message holds nothing of interest.
type Extractor interface {
	Extract(msg Message) map[string]any
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(msg Message) map[string]any

// Extract implements Extractor.
func (f ExtractorFunc) Extract(msg Message) map[string]any {
	return f(msg)
}
