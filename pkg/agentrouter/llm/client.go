// Package llm defines the completion service boundary consumed by
// dispatchers and agent workers.
//
// No provider is bundled. CommandClient adapts any external program that
// speaks the JSON request/response shapes in this package, and
// ScriptedClient replays canned responses for tests and demos.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	agerrors "github.com/randalmurphal/agentrouter/pkg/agentrouter/errors"
)

// Client performs completion calls. Implementations must be safe for
// concurrent use; the router never assumes two identical requests return
// identical responses.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

// Complete implements Client.
func (f ClientFunc) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return f(ctx, req)
}

// Error is a completion failure with a retry hint.
type Error struct {
	Op        string
	Err       error
	Retryable bool
}

// NewError wraps err for operation op.
func NewError(op string, err error, retryable bool) *Error {
	return &Error{Op: op, Err: err, Retryable: retryable}
}

func (e *Error) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Temporary reports the retry hint to error classifiers.
func (e *Error) Temporary() bool {
	return e.Retryable
}

// IsRetryable reports whether err carries a retryable completion failure.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// ErrNoJSON is returned by DecodeJSON when content holds no JSON object.
var ErrNoJSON = errors.New("no JSON object in content")

// DecodeJSON decodes the first JSON object found in content into v.
// Models often wrap JSON in prose or code fences, so everything outside
// the outermost braces is ignored. Failures are *agerrors.JSONParseError.
func DecodeJSON(content string, v any) error {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return &agerrors.JSONParseError{Input: content, Message: ErrNoJSON.Error(), Err: ErrNoJSON}
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), v); err != nil {
		return &agerrors.JSONParseError{Input: content, Message: err.Error(), Err: err}
	}
	return nil
}
