package agent

import (
	"log/slog"
	"maps"

	"github.com/randalmurphal/agentrouter/pkg/agentrouter"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/template"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/tool"
)

// ToolOption configures a ToolWorker.
type ToolOption func(*ToolRunner)

// WithArgs declares how tool arguments are built from workflow fields.
// Values are expanded with template.ExpandArgs.
func WithArgs(mapping map[string]any) ToolOption {
	return func(w *ToolRunner) { w.args = mapping }
}

// WithContent renders the tool result through a template. The result's
// keys, when it is an object, and the workflow fields are both in scope,
// and ${result} is the whole result.
func WithContent(tmpl string) ToolOption {
	return func(w *ToolRunner) { w.content = tmpl }
}

// ToolRunner calls one tool deterministically. Build it with ToolWorker.
type ToolRunner struct {
	name    string
	tool    tool.Tool
	args    map[string]any
	content string
}

// ToolWorker creates a worker that invokes t once per execution. A tool
// failure is returned as the execution error and so becomes error content
// in the log.
func ToolWorker(name string, t tool.Tool, opts ...ToolOption) *ToolRunner {
	w := &ToolRunner{name: name, tool: t}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Execute implements agentrouter.Worker.
func (w *ToolRunner) Execute(ctx agentrouter.Context, state agentrouter.State) (agentrouter.Message, error) {
	args := template.ExpandArgs(w.args, state.Fields)
	ctx.Logger().Debug("calling tool", slog.String("tool", w.tool.Name()), slog.String("worker", w.name))

	out, err := w.tool.Call(ctx, args)
	if err != nil {
		return agentrouter.Message{}, err
	}

	if w.content == "" {
		return agentrouter.AssistantMessage(tool.Render(out)), nil
	}

	vars := maps.Clone(state.Fields)
	if vars == nil {
		vars = map[string]any{}
	}
	if obj, ok := out.(map[string]any); ok {
		maps.Copy(vars, obj)
	}
	vars["result"] = tool.Render(out)
	return agentrouter.AssistantMessage(template.Expand(w.content, vars)), nil
}

// Static returns a worker that always answers content, with ${field}
// placeholders filled from the workflow fields.
func Static(name, content string) agentrouter.Worker {
	return agentrouter.WorkerFunc(func(ctx agentrouter.Context, state agentrouter.State) (agentrouter.Message, error) {
		return agentrouter.AssistantMessage(template.Expand(content, state.Fields)), nil
	})
}
