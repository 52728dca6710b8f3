package expr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSyntax is wrapped by every malformed-expression error.
var ErrSyntax = errors.New("expr: syntax error")

// BinaryOp compares two resolved values.
type BinaryOp func(left, right any) bool

// Evaluator evaluates boolean expressions with optional custom operators.
type Evaluator struct {
	customOps map[string]BinaryOp
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCustomOperator registers a word operator such as "matches". The name
// must not collide with a built-in operator.
func WithCustomOperator(name string, fn BinaryOp) Option {
	return func(e *Evaluator) {
		if e.customOps == nil {
			e.customOps = make(map[string]BinaryOp)
		}
		e.customOps[name] = fn
	}
}

// New creates an Evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate evaluates expr against vars. An empty expression is false.
func (e *Evaluator) Evaluate(expr string, vars map[string]any) (bool, error) {
	return e.eval(expr, vars)
}

// Validate reports whether expr is well formed without needing real values.
func (e *Evaluator) Validate(expr string) error {
	_, err := e.eval(expr, nil)
	return err
}

// Eval evaluates expr with the default evaluator.
func Eval(expr string, vars map[string]any) (bool, error) {
	return New().Evaluate(expr, vars)
}

// Validate checks expr with the default evaluator.
func Validate(expr string) error {
	return New().Validate(expr)
}

func (e *Evaluator) eval(expr string, vars map[string]any) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false, nil
	}
	if strings.Count(expr, "'")%2 != 0 || strings.Count(expr, `"`)%2 != 0 {
		return false, fmt.Errorf("%w: unbalanced quotes in %q", ErrSyntax, expr)
	}

	if left, right, ok := splitLogical(expr, "or"); ok {
		l, err := e.eval(left, vars)
		if err != nil {
			return false, err
		}
		r, err := e.eval(right, vars)
		if err != nil {
			return false, err
		}
		return l || r, nil
	}

	if left, right, ok := splitLogical(expr, "and"); ok {
		l, err := e.eval(left, vars)
		if err != nil {
			return false, err
		}
		r, err := e.eval(right, vars)
		if err != nil {
			return false, err
		}
		return l && r, nil
	}

	if inner, ok := strings.CutPrefix(expr, "not "); ok {
		v, err := e.eval(inner, vars)
		return !v, err
	}
	if inner, ok := strings.CutPrefix(expr, "!"); ok && !strings.HasPrefix(expr, "!=") {
		v, err := e.eval(inner, vars)
		return !v, err
	}

	if name, ok := strings.CutSuffix(expr, " exists"); ok {
		return present(strings.TrimSpace(name), vars), nil
	}
	if name, ok := strings.CutSuffix(expr, " missing"); ok {
		return !present(strings.TrimSpace(name), vars), nil
	}

	for _, op := range builtinOps {
		if left, right, ok := cutUnquoted(expr, op.token); ok {
			return binary(op.name, left, right, op.compare, vars)
		}
	}

	for name, fn := range e.customOps {
		if left, right, ok := cutUnquoted(expr, " "+name+" "); ok {
			return binary(name, left, right, fn, vars)
		}
	}

	return IsTruthy(Resolve(expr, vars)), nil
}

func binary(name, left, right string, fn BinaryOp, vars map[string]any) (bool, error) {
	left, right = strings.TrimSpace(left), strings.TrimSpace(right)
	if left == "" || right == "" {
		return false, fmt.Errorf("%w: operator %s needs two operands", ErrSyntax, name)
	}
	return fn(Resolve(left, vars), Resolve(right, vars)), nil
}

// splitLogical splits on the first keyword outside quotes.
func splitLogical(expr, keyword string) (string, string, bool) {
	return cutUnquoted(expr, " "+keyword+" ")
}

// cutUnquoted is strings.Cut that ignores sep inside string literals.
func cutUnquoted(expr, sep string) (string, string, bool) {
	var quote byte
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case strings.HasPrefix(expr[i:], sep):
			return expr[:i], expr[i+len(sep):], true
		}
	}
	return "", "", false
}

func present(name string, vars map[string]any) bool {
	v, ok := vars[name]
	return ok && v != nil
}
