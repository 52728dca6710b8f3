package template

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// bracePattern matches ${path} and ${path:-fallback}.
	bracePattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z0-9_]+)*)(:-[^}]*)?\}`)

	// dollarPattern matches $name at a word boundary, so $port does not
	// match inside $portNumber.
	dollarPattern = regexp.MustCompile(`\$([a-zA-Z_][a-zA-Z0-9_]*)\b`)

	// wholePattern matches a string that is exactly one brace placeholder.
	wholePattern = regexp.MustCompile(`^` + bracePattern.String() + `$`)
)

// Expander expands placeholders in strings.
type Expander struct {
	missingAction MissingAction
	dollarStyle   bool
}

// NewExpander creates an Expander. By default missing variables are kept
// and only the brace style is expanded.
func NewExpander(opts ...Option) *Expander {
	e := &Expander{missingAction: MissingKeep}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand replaces placeholders in s with values from vars. An error is only
// returned under MissingError.
func (e *Expander) Expand(s string, vars map[string]any) (string, error) {
	if s == "" {
		return "", nil
	}

	var missing []string
	out := bracePattern.ReplaceAllStringFunc(s, func(match string) string {
		m := bracePattern.FindStringSubmatch(match)
		if val, ok := Lookup(vars, m[1]); ok {
			return fmt.Sprint(val)
		}
		if m[2] != "" {
			return strings.TrimPrefix(m[2], ":-")
		}
		return e.onMissing(match, m[1], &missing)
	})

	if e.dollarStyle {
		out = dollarPattern.ReplaceAllStringFunc(out, func(match string) string {
			name := match[1:]
			if val, ok := vars[name]; ok {
				return fmt.Sprint(val)
			}
			return e.onMissing(match, name, &missing)
		})
	}

	if len(missing) > 0 {
		return out, &UndefinedVariableError{Names: missing}
	}
	return out, nil
}

func (e *Expander) onMissing(match, name string, missing *[]string) string {
	switch e.missingAction {
	case MissingEmpty:
		return ""
	case MissingError:
		*missing = append(*missing, name)
		return match
	default:
		return match
	}
}

// MustExpand is Expand that panics on error.
func (e *Expander) MustExpand(s string, vars map[string]any) string {
	out, err := e.Expand(s, vars)
	if err != nil {
		panic(fmt.Sprintf("template: %v", err))
	}
	return out
}

// ExpandArgs expands every string in mapping, recursing into nested maps and
// slices. A string that is exactly one placeholder is replaced by the raw
// value rather than its printed form.
func (e *Expander) ExpandArgs(mapping map[string]any, vars map[string]any) (map[string]any, error) {
	if mapping == nil {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(mapping))
	for k, v := range mapping {
		expanded, err := e.expandValue(v, vars)
		if err != nil {
			return nil, err
		}
		out[k] = expanded
	}
	return out, nil
}

func (e *Expander) expandValue(v any, vars map[string]any) (any, error) {
	switch val := v.(type) {
	case string:
		if m := wholePattern.FindStringSubmatch(val); m != nil {
			if raw, ok := Lookup(vars, m[1]); ok {
				return raw, nil
			}
		}
		return e.Expand(val, vars)
	case map[string]any:
		return e.ExpandArgs(val, vars)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			expanded, err := e.expandValue(item, vars)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	default:
		return v, nil
	}
}

// Lookup resolves a dotted path through nested map[string]any values.
func Lookup(vars map[string]any, path string) (any, bool) {
	var cur any = vars
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Placeholders lists the variable paths referenced by brace placeholders in
// s, in order of first appearance.
func Placeholders(s string) []string {
	var names []string
	seen := map[string]bool{}
	for _, m := range bracePattern.FindAllStringSubmatch(s, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// UndefinedVariableError is returned under MissingError when placeholders
// have no value.
type UndefinedVariableError struct {
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}

var defaultExpander = NewExpander()

// Expand expands s with the default expander, keeping missing placeholders.
func Expand(s string, vars map[string]any) string {
	out, _ := defaultExpander.Expand(s, vars)
	return out
}

// ExpandArgs expands a tool argument mapping with the default expander.
func ExpandArgs(mapping map[string]any, vars map[string]any) map[string]any {
	out, _ := defaultExpander.ExpandArgs(mapping, vars)
	return out
}
