package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/randalmurphal/agentrouter/pkg/agentrouter"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/agent"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/dispatch"
	agerrors "github.com/randalmurphal/agentrouter/pkg/agentrouter/errors"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/extract"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/llm"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/registry"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/tool"
)

// Deps carries what a definition can't express.
type Deps struct {
	// Completion backs agent workers and the llm dispatcher. It may be nil
	// when the run context supplies one.
	Completion llm.Client

	// ToolBaseURL and ToolToken apply to http tools that set neither.
	ToolBaseURL string
	ToolToken   string
	HTTPClient  *http.Client

	// Tools are Go tools available to workers by name alongside the
	// definition's own.
	Tools []tool.Tool

	Logger *slog.Logger
}

// Build compiles a definition into a runnable workflow.
func Build(def *Definition, deps Deps) (*agentrouter.CompiledWorkflow, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tools, err := buildTools(def, deps)
	if err != nil {
		return nil, fmt.Errorf("workflow %q: %w", def.Name, err)
	}

	wf := agentrouter.NewWorkflow(def.Name)
	if def.MaxIterations > 0 {
		wf.SetMaxIterations(def.MaxIterations)
	}

	for _, w := range def.Workers {
		var opts []agentrouter.WorkerOption
		if w.Hidden {
			opts = append(opts, agentrouter.Hidden())
		}

		if w.Kind == KindGate {
			wf.AddGate(w.Name, w.Prompt, opts...)
			continue
		}

		worker, err := buildWorker(w, tools, deps)
		if err != nil {
			return nil, fmt.Errorf("workflow %q: %w", def.Name, err)
		}
		wf.AddWorker(w.Name, worker, opts...)
	}

	for i, e := range def.Extractors {
		ex, err := buildExtractor(e)
		if err != nil {
			return nil, fmt.Errorf("workflow %q: extractors[%d]: %w", def.Name, i, err)
		}
		wf.AddExtractor(ex)
	}

	d, err := buildDispatcher(def.Dispatcher, deps)
	if err != nil {
		return nil, fmt.Errorf("workflow %q: dispatcher: %w", def.Name, err)
	}
	wf.SetDispatcher(d)

	compiled, err := wf.Compile()
	if err != nil {
		return nil, fmt.Errorf("workflow %q: %w", def.Name, err)
	}
	logger.Debug("workflow built",
		slog.String("workflow", def.Name),
		slog.Int("workers", len(def.Workers)),
		slog.Int("tools", tools.Len()),
	)
	return compiled, nil
}

func buildTools(def *Definition, deps Deps) (*registry.Registry[string, tool.Tool], error) {
	reg := registry.New[string, tool.Tool]()
	for _, t := range deps.Tools {
		if err := reg.Add(t.Name(), t); err != nil {
			return nil, err
		}
	}

	for _, td := range def.Tools {
		var params json.RawMessage
		if td.Parameters != nil {
			b, err := json.Marshal(td.Parameters)
			if err != nil {
				return nil, fmt.Errorf("tool %s: parameters: %w", td.Name, err)
			}
			params = b
		}

		var t tool.Tool
		switch td.Kind {
		case ToolHTTP:
			baseURL, token := td.BaseURL, td.Token
			if baseURL == "" {
				baseURL = deps.ToolBaseURL
			}
			if token == "" {
				token = deps.ToolToken
			}
			if baseURL == "" {
				return nil, fmt.Errorf("tool %s: base_url is required", td.Name)
			}
			opts := []tool.HTTPOption{
				tool.WithBaseURL(baseURL),
				tool.WithPath(td.Path),
				tool.WithToken(token),
				tool.WithDescription(td.Description),
				tool.WithParameters(params),
			}
			if td.Method != "" {
				opts = append(opts, tool.WithMethod(td.Method))
			}
			if deps.HTTPClient != nil {
				opts = append(opts, tool.WithHTTPClient(deps.HTTPClient))
			}
			if td.Retry != nil {
				cfg, err := retryConfig(*td.Retry)
				if err != nil {
					return nil, fmt.Errorf("tool %s: retry: %w", td.Name, err)
				}
				opts = append(opts, tool.WithRetry(cfg))
			}
			t = tool.NewHTTP(td.Name, opts...)
		case ToolCommand:
			opts := []tool.CommandOption{
				tool.WithCommandArgs(td.Args...),
				tool.WithCommandDescription(td.Description),
				tool.WithCommandParameters(params),
			}
			if td.Timeout != "" {
				d, err := time.ParseDuration(td.Timeout)
				if err != nil {
					return nil, fmt.Errorf("tool %s: timeout: %w", td.Name, err)
				}
				opts = append(opts, tool.WithCommandTimeout(d))
			}
			t = tool.NewCommand(td.Name, td.Command, opts...)
		}

		if err := reg.Add(td.Name, t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func buildWorker(w WorkerDef, tools *registry.Registry[string, tool.Tool], deps Deps) (agentrouter.Worker, error) {
	options := New(w.Options)

	switch w.Kind {
	case KindAgent:
		var ts []tool.Tool
		for _, name := range w.Tools {
			t, ok := tools.Get(name)
			if !ok {
				return nil, fmt.Errorf("worker %s: unknown tool %q", w.Name, name)
			}
			ts = append(ts, t)
		}
		return agent.New(w.Name, deps.Completion, w.Instruction, ts...).
			WithModel(options.String("model", "")).
			WithMaxToolRounds(options.Int("max_tool_rounds", agent.DefaultMaxToolRounds)), nil

	case KindTool:
		t, ok := tools.Get(w.Tool)
		if !ok {
			return nil, fmt.Errorf("worker %s: unknown tool %q", w.Name, w.Tool)
		}
		return agent.ToolWorker(w.Name, t, agent.WithArgs(w.Args), agent.WithContent(w.Content)), nil

	case KindStatic:
		return agent.Static(w.Name, w.Content), nil
	}
	return nil, fmt.Errorf("worker %s: unknown kind %q", w.Name, w.Kind)
}

func buildExtractor(e ExtractorDef) (agentrouter.Extractor, error) {
	switch {
	case e.Builtin == "credit_score":
		return extract.CreditScore(), nil
	case e.Builtin != "":
		return nil, fmt.Errorf("unknown builtin %q", e.Builtin)
	case e.Key != "":
		return extract.JSONField(e.Field, e.Key), nil
	}

	ex, err := extract.Regex(e.Field, e.Pattern, extract.Kind(e.Kind))
	if err != nil {
		return nil, err
	}
	return ex, nil
}

func buildDispatcher(d DispatcherDef, deps Deps) (agentrouter.Dispatcher, error) {
	switch d.Kind {
	case DispatchRules:
		rules, err := dispatch.NewRules(d.Rules...)
		if err != nil {
			return nil, err
		}
		return rules, nil
	case DispatchLLM:
		opts := []dispatch.LLMOption{dispatch.WithModel(d.Model)}
		if d.Retry != nil {
			cfg, err := retryConfig(*d.Retry)
			if err != nil {
				return nil, fmt.Errorf("retry: %w", err)
			}
			opts = append(opts, dispatch.WithRetry(cfg))
		}
		return dispatch.NewLLM(deps.Completion, d.Instructions, opts...), nil
	}
	return nil, fmt.Errorf("unknown kind %q", d.Kind)
}

func retryConfig(r RetryDef) (agerrors.RetryConfig, error) {
	var opts []agerrors.RetryOption
	if r.MaxAttempts > 0 {
		opts = append(opts, agerrors.WithMaxAttempts(r.MaxAttempts))
	}
	for _, d := range []struct {
		value string
		apply func(time.Duration) agerrors.RetryOption
	}{
		{r.InitialBackoff, agerrors.WithInitialBackoff},
		{r.MaxBackoff, agerrors.WithMaxBackoff},
	} {
		if d.value == "" {
			continue
		}
		dur, err := time.ParseDuration(d.value)
		if err != nil {
			return agerrors.RetryConfig{}, err
		}
		opts = append(opts, d.apply(dur))
	}
	return agerrors.NewRetryConfig(opts...), nil
}
