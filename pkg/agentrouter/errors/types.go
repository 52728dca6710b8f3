package errors

import (
	"fmt"
	"time"
)

// HTTPError is a non-2xx reply from a tool endpoint.
type HTTPError struct {
	StatusCode int
	Message    string
	Endpoint   string

	// RetryIn is the server's Retry-After hint, zero when absent.
	RetryIn time.Duration
}

// RetryAfter reports the server-requested wait to WithRetryContext.
func (e *HTTPError) RetryAfter() time.Duration {
	return e.RetryIn
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("HTTP %d at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// JSONParseError indicates a collaborator returned output that isn't the
// JSON the caller asked for.
type JSONParseError struct {
	Input   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *JSONParseError) Error() string {
	return fmt.Sprintf("JSON parse error: %s", e.Message)
}

func (e *JSONParseError) Unwrap() error {
	return e.Err
}

// TimeoutError indicates an operation hit its own time bound, as opposed
// to the caller's deadline.
type TimeoutError struct {
	Operation string
	Duration  string
	Err       error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s: %s", e.Duration, e.Operation)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}
