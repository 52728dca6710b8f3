package agentrouter

import (
	"context"
	"sync"
)

// Helper workers

// static returns a worker that always answers content.
func static(content string) Worker {
	return WorkerFunc(func(ctx Context, s State) (Message, error) {
		return AssistantMessage(content), nil
	})
}

// makeTrackingWorker creates a worker that records its execution.
func makeTrackingWorker(name string, tracker *[]string) Worker {
	return WorkerFunc(func(ctx Context, s State) (Message, error) {
		*tracker = append(*tracker, name)
		return AssistantMessage(name + " done"), nil
	})
}

// makeFailingWorker creates a worker that returns the given error.
func makeFailingWorker(err error) Worker {
	return WorkerFunc(func(ctx Context, s State) (Message, error) {
		return Message{}, err
	})
}

// makePanicWorker creates a worker that panics with the given value.
func makePanicWorker(value any) Worker {
	return WorkerFunc(func(ctx Context, s State) (Message, error) {
		panic(value)
	})
}

// Helper dispatchers

// sequence routes to each name in turn, then finishes.
type sequence struct {
	mu    sync.Mutex
	names []string
	calls int
}

func newSequence(names ...string) *sequence {
	return &sequence{names: names}
}

func (s *sequence) Decide(ctx Context, state State, candidates []string) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.calls
	s.calls++
	if i >= len(s.names) {
		return Finish(), nil
	}
	return Route(s.names[i]), nil
}

func (s *sequence) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// always routes to the same name forever.
func always(name string) Dispatcher {
	return DispatcherFunc(func(ctx Context, s State, _ []string) (Decision, error) {
		return Route(name), nil
	})
}

// untilAuthored routes to name until it has written a message, then finishes.
func untilAuthored(name string) Dispatcher {
	return DispatcherFunc(func(ctx Context, s State, _ []string) (Decision, error) {
		if last, _ := s.Log.Last(); last.AuthorName == name {
			return Finish(), nil
		}
		return Route(name), nil
	})
}

// testCtx creates a simple test context.
func testCtx() Context {
	return NewContext(context.Background())
}

// authors lists message authors in log order, "" for the seed.
func authors(s State) []string {
	out := make([]string, 0, s.Log.Len())
	for _, m := range s.Log.Messages() {
		out = append(out, m.AuthorName)
	}
	return out
}
