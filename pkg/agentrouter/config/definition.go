package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/randalmurphal/agentrouter/pkg/agentrouter/dispatch"
)

// Worker kinds.
const (
	KindAgent  = "agent"
	KindTool   = "tool"
	KindStatic = "static"
	KindGate   = "gate"
)

// Dispatcher kinds.
const (
	DispatchRules = "rules"
	DispatchLLM   = "llm"
)

// Tool kinds.
const (
	ToolHTTP    = "http"
	ToolCommand = "command"
)

// Definition describes one workflow.
type Definition struct {
	Name          string         `yaml:"name" json:"name"`
	Description   string         `yaml:"description,omitempty" json:"description,omitempty"`
	MaxIterations int            `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
	Dispatcher    DispatcherDef  `yaml:"dispatcher" json:"dispatcher"`
	Workers       []WorkerDef    `yaml:"workers" json:"workers"`
	Tools         []ToolDef      `yaml:"tools,omitempty" json:"tools,omitempty"`
	Extractors    []ExtractorDef `yaml:"extractors,omitempty" json:"extractors,omitempty"`
}

// DispatcherDef selects and configures the dispatcher.
type DispatcherDef struct {
	Kind         string          `yaml:"kind" json:"kind"`
	Instructions string          `yaml:"instructions,omitempty" json:"instructions,omitempty"`
	Model        string          `yaml:"model,omitempty" json:"model,omitempty"`
	Rules        []dispatch.Rule `yaml:"rules,omitempty" json:"rules,omitempty"`
	Retry        *RetryDef       `yaml:"retry,omitempty" json:"retry,omitempty"`
}

// RetryDef bounds retries of transient failures. Durations use
// time.ParseDuration syntax.
type RetryDef struct {
	MaxAttempts    int    `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`
	InitialBackoff string `yaml:"initial_backoff,omitempty" json:"initial_backoff,omitempty"`
	MaxBackoff     string `yaml:"max_backoff,omitempty" json:"max_backoff,omitempty"`
}

// WorkerDef describes a worker or gate. Which fields apply depends on Kind.
type WorkerDef struct {
	Name string `yaml:"name" json:"name"`
	Kind string `yaml:"kind" json:"kind"`

	// agent
	Instruction string   `yaml:"instruction,omitempty" json:"instruction,omitempty"`
	Tools       []string `yaml:"tools,omitempty" json:"tools,omitempty"`

	// tool
	Tool string         `yaml:"tool,omitempty" json:"tool,omitempty"`
	Args map[string]any `yaml:"args,omitempty" json:"args,omitempty"`

	// tool and static
	Content string `yaml:"content,omitempty" json:"content,omitempty"`

	// gate
	Prompt string `yaml:"prompt,omitempty" json:"prompt,omitempty"`

	Hidden  bool           `yaml:"hidden,omitempty" json:"hidden,omitempty"`
	Options map[string]any `yaml:"options,omitempty" json:"options,omitempty"`
}

// ToolDef describes a tool workers can share.
type ToolDef struct {
	Name        string         `yaml:"name" json:"name"`
	Kind        string         `yaml:"kind" json:"kind"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Parameters  map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`

	// http
	Method  string `yaml:"method,omitempty" json:"method,omitempty"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Token   string `yaml:"token,omitempty" json:"token,omitempty"`
	Retry   *RetryDef `yaml:"retry,omitempty" json:"retry,omitempty"`

	// command
	Command string   `yaml:"command,omitempty" json:"command,omitempty"`
	Args    []string `yaml:"args,omitempty" json:"args,omitempty"`
	Timeout string   `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// ExtractorDef describes a field extractor. Builtin names a predefined
// extractor; otherwise Pattern (regex) or Key (JSON content) is used.
type ExtractorDef struct {
	Field   string `yaml:"field,omitempty" json:"field,omitempty"`
	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Key     string `yaml:"key,omitempty" json:"key,omitempty"`
	Kind    string `yaml:"kind,omitempty" json:"kind,omitempty"`
	Builtin string `yaml:"builtin,omitempty" json:"builtin,omitempty"`
}

// Validate checks the definition's structure. It does not compile rule
// conditions or regexes; Build reports those.
func (d *Definition) Validate() error {
	var errs []error
	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if d.MaxIterations < 0 {
		errs = append(errs, fmt.Errorf("max_iterations must not be negative, got %d", d.MaxIterations))
	}

	switch d.Dispatcher.Kind {
	case DispatchRules, DispatchLLM:
	default:
		errs = append(errs, fmt.Errorf("dispatcher: unknown kind %q", d.Dispatcher.Kind))
	}

	tools := map[string]bool{}
	for i, t := range d.Tools {
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("tools[%d]: name is required", i))
			continue
		}
		if tools[t.Name] {
			errs = append(errs, fmt.Errorf("tools[%d]: duplicate tool %q", i, t.Name))
		}
		tools[t.Name] = true
		switch t.Kind {
		case ToolHTTP:
		case ToolCommand:
			if t.Command == "" {
				errs = append(errs, fmt.Errorf("tool %s: command is required", t.Name))
			}
		default:
			errs = append(errs, fmt.Errorf("tool %s: unknown kind %q", t.Name, t.Kind))
		}
	}

	if len(d.Workers) == 0 {
		errs = append(errs, errors.New("at least one worker is required"))
	}
	seen := map[string]bool{}
	for i, w := range d.Workers {
		if err := checkName(w.Name); err != nil {
			errs = append(errs, fmt.Errorf("workers[%d]: %w", i, err))
			continue
		}
		if seen[w.Name] {
			errs = append(errs, fmt.Errorf("workers[%d]: duplicate worker %q", i, w.Name))
		}
		seen[w.Name] = true

		switch w.Kind {
		case KindAgent:
			if w.Instruction == "" {
				errs = append(errs, fmt.Errorf("worker %s: instruction is required", w.Name))
			}
		case KindTool:
			if w.Tool == "" {
				errs = append(errs, fmt.Errorf("worker %s: tool is required", w.Name))
			}
		case KindStatic:
		case KindGate:
			if w.Prompt == "" {
				errs = append(errs, fmt.Errorf("gate %s: prompt is required", w.Name))
			}
		default:
			errs = append(errs, fmt.Errorf("worker %s: unknown kind %q", w.Name, w.Kind))
		}
	}

	for i, e := range d.Extractors {
		if e.Builtin == "" && e.Field == "" {
			errs = append(errs, fmt.Errorf("extractors[%d]: field is required", i))
		}
		if e.Builtin == "" && e.Pattern == "" && e.Key == "" {
			errs = append(errs, fmt.Errorf("extractors[%d]: one of builtin, pattern or key is required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("workflow %q: %w", d.Name, errors.Join(errs...))
	}
	return nil
}

var reservedNames = []string{"finish", "end", "__end__"}

func checkName(name string) error {
	switch {
	case name == "":
		return errors.New("name is required")
	case strings.ContainsAny(name, " \t\n\r"):
		return fmt.Errorf("name %q contains whitespace", name)
	case slices.Contains(reservedNames, strings.ToLower(name)):
		return fmt.Errorf("name %q is reserved", name)
	}
	return nil
}
