package llm

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

// CommandClient implements Client by running an external program once per
// call. The request is written to stdin as JSON. Stdout is parsed as a
// CompletionResponse when it is JSON, otherwise taken as plain content.
type CommandClient struct {
	path    string
	args    []string
	model   string
	workdir string
	env     []string
	timeout time.Duration
}

// CommandOption configures CommandClient.
type CommandOption func(*CommandClient)

// NewCommandClient creates a client for the program at path.
func NewCommandClient(path string, opts ...CommandOption) *CommandClient {
	c := &CommandClient{
		path:    path,
		timeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithArgs sets extra arguments passed on every call.
func WithArgs(args ...string) CommandOption {
	return func(c *CommandClient) { c.args = args }
}

// WithModel sets the default model written into requests that lack one.
func WithModel(model string) CommandOption {
	return func(c *CommandClient) { c.model = model }
}

// WithWorkdir sets the working directory for the program.
func WithWorkdir(dir string) CommandOption {
	return func(c *CommandClient) { c.workdir = dir }
}

// WithEnv appends KEY=VALUE pairs to the program environment.
func WithEnv(env ...string) CommandOption {
	return func(c *CommandClient) { c.env = env }
}

// WithTimeout bounds each call. Zero disables the bound.
func WithTimeout(d time.Duration) CommandOption {
	return func(c *CommandClient) { c.timeout = d }
}

// Complete implements Client.
func (c *CommandClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	if req.Model == "" {
		req.Model = c.model
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, NewError("complete", fmt.Errorf("encode request: %w", err), false)
	}

	parent := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.path, c.args...)
	if c.workdir != "" {
		cmd.Dir = c.workdir
	}
	if len(c.env) > 0 {
		cmd.Env = append(cmd.Environ(), c.env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// Check for context cancellation first
		if ctx.Err() != nil {
			if parent.Err() == nil {
				return nil, NewError("complete", &agerrors.TimeoutError{Operation: c.path, Duration: c.timeout.String(), Err: ctx.Err()}, true)
			}
			return nil, NewError("complete", ctx.Err(), ctx.Err() == context.DeadlineExceeded)
		}

		errMsg := stderr.String()
		return nil, NewError("complete", fmt.Errorf("%w: %s", err, errMsg), isRetryableError(errMsg))
	}

	resp := c.parseResponse(stdout.Bytes())
	resp.Duration = time.Since(start)
	return resp, nil
}

// parseResponse accepts either a JSON CompletionResponse or raw text.
func (c *CommandClient) parseResponse(data []byte) *CompletionResponse {
	trimmed := bytes.TrimSpace(data)

	var resp CompletionResponse
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &resp); err == nil && (resp.Content != "" || len(resp.ToolCalls) > 0) {
			if resp.FinishReason == "" {
				resp.FinishReason = "stop"
			}
			if resp.Model == "" {
				resp.Model = c.model
			}
			return &resp
		}
	}

	return &CompletionResponse{
		Content:      string(trimmed),
		FinishReason: "stop",
		Model:        c.model,
	}
}

// isRetryableError checks if an error message indicates a transient error.
func isRetryableError(errMsg string) bool {
	errLower := strings.ToLower(errMsg)
	return strings.Contains(errLower, "rate limit") ||
		strings.Contains(errLower, "timeout") ||
		strings.Contains(errLower, "overloaded") ||
		strings.Contains(errLower, "503") ||
		strings.Contains(errLower, "529")
}
