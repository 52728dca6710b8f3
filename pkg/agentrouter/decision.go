package agentrouter

import (
	"slices"
	"strings"
)

// FinishToken is the name a dispatcher uses to end the run.
const FinishToken = "FINISH"

// terminal tokens accepted by ParseDecision, compared case-insensitively.
var terminalTokens = []string{"finish", "end", "__end__"}

// Decision is a dispatcher's answer: run a named worker, or finish.
// The zero value is neither and is rejected by the router.
type Decision struct {
	next     string
	terminal bool
}

// Route selects the named worker or gate.
func Route(name string) Decision {
	return Decision{next: name}
}

// Finish ends the run.
func Finish() Decision {
	return Decision{terminal: true}
}

// IsTerminal reports whether the decision ends the run.
func (d Decision) IsTerminal() bool {
	return d.terminal
}

// Worker returns the selected name, or "" for a terminal decision.
func (d Decision) Worker() string {
	return d.next
}

// String returns the worker name or FINISH.
func (d Decision) String() string {
	if d.terminal {
		return FinishToken
	}
	return d.next
}

func (d Decision) isZero() bool {
	return !d.terminal && d.next == ""
}

// ParseDecision interprets a raw dispatcher answer. Surrounding whitespace
// and quotes are ignored. FINISH, END and __end__ (any case) finish the
// run; anything else must match a candidate exactly.
func ParseDecision(raw string, candidates []string) (Decision, error) {
	name := strings.Trim(strings.TrimSpace(raw), "\"'`")
	if slices.Contains(terminalTokens, strings.ToLower(name)) {
		return Finish(), nil
	}
	if slices.Contains(candidates, name) {
		return Route(name), nil
	}
	return Decision{}, &ConfigError{
		Returned:   name,
		Candidates: slices.Clone(candidates),
		Err:        ErrUnknownWorker,
	}
}

// Dispatcher picks the next worker. It sees the full log and the names it
// may choose from, and must answer with one of them or Finish.
type Dispatcher interface {
	Decide(ctx Context, state State, candidates []string) (Decision, error)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx Context, state State, candidates []string) (Decision, error)

// Decide implements Dispatcher.
func (f DispatcherFunc) Decide(ctx Context, state State, candidates []string) (Decision, error) {
	return f(ctx, state, candidates)
}

// Targeted is implemented by dispatchers that know up front which workers
// they can route to. Compile checks the targets against the registered set.
type Targeted interface {
	Targets() []string
}
