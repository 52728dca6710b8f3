package dispatch

import (
	"errors"
	"fmt"
	"maps"

	"github.com/randalmurphal/agentrouter/pkg/agentrouter"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/expr"
)

// Rule routes to Next when When holds. An empty When always holds.
type Rule struct {
	When string `yaml:"when,omitempty" json:"when,omitempty"`
	Next string `yaml:"next" json:"next"`
}

// Rules routes with the first matching rule and finishes when none match.
type Rules struct {
	rules []Rule
	eval  *expr.Evaluator
}

// NewRules validates every condition up front.
func NewRules(rules ...Rule) (*Rules, error) {
	var errs []error
	for i, r := range rules {
		if r.Next == "" {
			errs = append(errs, fmt.Errorf("rule %d: next is required", i+1))
		}
		if err := expr.Validate(r.When); err != nil {
			errs = append(errs, fmt.Errorf("rule %d: %w", i+1, err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &Rules{rules: rules, eval: expr.New()}, nil
}

// MustRules is NewRules that panics on error.
func MustRules(rules ...Rule) *Rules {
	r, err := NewRules(rules...)
	if err != nil {
		panic(err)
	}
	return r
}

// Targets implements agentrouter.Targeted so Compile can reject rules that
// name unregistered workers.
func (r *Rules) Targets() []string {
	var out []string
	seen := map[string]bool{}
	for _, rule := range r.rules {
		if d, err := agentrouter.ParseDecision(rule.Next, nil); err == nil && d.IsTerminal() {
			continue
		}
		if !seen[rule.Next] {
			seen[rule.Next] = true
			out = append(out, rule.Next)
		}
	}
	return out
}

// Decide implements agentrouter.Dispatcher.
func (r *Rules) Decide(ctx agentrouter.Context, state agentrouter.State, candidates []string) (agentrouter.Decision, error) {
	vars := Vars(state, candidates)
	for i, rule := range r.rules {
		ok, err := r.eval.Evaluate(rule.When, vars)
		if err != nil {
			return agentrouter.Decision{}, fmt.Errorf("rule %d: %w", i+1, err)
		}
		if rule.When == "" || ok {
			ctx.Logger().Debug("rule matched", "rule", i+1, "when", rule.When, "next", rule.Next)
			return agentrouter.ParseDecision(rule.Next, candidates)
		}
	}
	return agentrouter.Finish(), nil
}

// Vars builds the variables rules are evaluated against: the extracted
// fields plus last_worker, last_error, iterations, message_count and a
// visited_<worker> flag per candidate. Router-supplied names win over
// fields of the same name.
func Vars(state agentrouter.State, candidates []string) map[string]any {
	vars := make(map[string]any, len(state.Fields)+len(candidates)+4)
	maps.Copy(vars, state.Fields)

	for _, c := range candidates {
		vars["visited_"+c] = false
	}
	for _, m := range state.Log.Messages() {
		if m.AuthorName != "" {
			vars["visited_"+m.AuthorName] = true
		}
	}

	last, _ := state.Log.Last()
	vars["last_worker"] = last.AuthorName
	vars["last_error"] = ""
	if last.IsError {
		vars["last_error"] = last.Content
	}
	vars["iterations"] = state.Iterations
	vars["message_count"] = state.Log.Len()
	return vars
}
