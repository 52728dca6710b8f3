package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	agerrors "github.com/randalmurphal/agentrouter/pkg/agentrouter/errors"
)

// CommandTool runs a local program with the arguments as a JSON object on
// stdin and returns its stdout, parsed as JSON when possible.
type CommandTool struct {
	name        string
	description string
	params      json.RawMessage

	command string
	args    []string
	dir     string
	env     []string
	timeout time.Duration
}

// CommandOption configures a CommandTool.
type CommandOption func(*CommandTool)

// WithCommandArgs sets fixed program arguments.
func WithCommandArgs(args ...string) CommandOption {
	return func(t *CommandTool) { t.args = args }
}

// WithCommandDescription sets the description offered to models.
func WithCommandDescription(d string) CommandOption {
	return func(t *CommandTool) { t.description = d }
}

// WithCommandParameters sets the argument schema.
func WithCommandParameters(schema json.RawMessage) CommandOption {
	return func(t *CommandTool) { t.params = schema }
}

// WithDir sets the working directory.
func WithDir(dir string) CommandOption {
	return func(t *CommandTool) { t.dir = dir }
}

// WithEnv adds KEY=VALUE pairs to the inherited environment.
func WithEnv(env ...string) CommandOption {
	return func(t *CommandTool) { t.env = append(t.env, env...) }
}

// WithCommandTimeout bounds each run. Zero means no bound beyond ctx.
func WithCommandTimeout(d time.Duration) CommandOption {
	return func(t *CommandTool) { t.timeout = d }
}

// NewCommand creates a command tool.
func NewCommand(name, command string, opts ...CommandOption) *CommandTool {
	t := &CommandTool{name: name, command: command}
	for _, opt := range opts {
		opt(t)
	}
	if t.params == nil {
		t.params = Schema(nil)
	}
	return t
}

func (t *CommandTool) Name() string                { return t.name }
func (t *CommandTool) Description() string         { return t.description }
func (t *CommandTool) Parameters() json.RawMessage { return t.params }

// Call implements Tool. A non-zero exit is an *Error carrying stderr.
func (t *CommandTool) Call(ctx context.Context, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, &Error{Tool: t.name, Err: fmt.Errorf("encode args: %w", err)}
	}

	parent := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, t.command, t.args...)
	cmd.Dir = t.dir
	cmd.WaitDelay = time.Second
	if len(t.env) > 0 {
		cmd.Env = append(cmd.Environ(), t.env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if parent.Err() == nil {
				ctxErr = &agerrors.TimeoutError{Operation: t.command, Duration: t.timeout.String(), Err: ctxErr}
			}
			return nil, &Error{Tool: t.name, Err: ctxErr}
		}
		return nil, &Error{Tool: t.name, Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))}
	}

	return decodeResult(stdout.Bytes()), nil
}
