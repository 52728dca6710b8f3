package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	agerrors "github.com/randalmurphal/agentrouter/pkg/agentrouter/errors"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/template"
)

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// HTTPTool calls a JSON API. GET and DELETE send the arguments as query
// parameters and other methods send them as a JSON body. Placeholders in
// the path, such as /applications/${application_id}, are filled from the
// arguments and those arguments are not sent again.
type HTTPTool struct {
	name        string
	description string
	params      json.RawMessage

	method  string
	baseURL string
	path    string
	token   string

	client *http.Client
	retry  agerrors.RetryConfig
}

// HTTPOption configures an HTTPTool.
type HTTPOption func(*HTTPTool)

// WithMethod sets the HTTP method. Default GET.
func WithMethod(method string) HTTPOption {
	return func(t *HTTPTool) { t.method = strings.ToUpper(method) }
}

// WithBaseURL sets the API root.
func WithBaseURL(u string) HTTPOption {
	return func(t *HTTPTool) { t.baseURL = strings.TrimRight(u, "/") }
}

// WithPath sets the endpoint path below the base URL.
func WithPath(p string) HTTPOption {
	return func(t *HTTPTool) { t.path = p }
}

// WithToken sends Authorization: Bearer <token> on every call.
func WithToken(token string) HTTPOption {
	return func(t *HTTPTool) { t.token = token }
}

// WithDescription sets the description offered to models.
func WithDescription(d string) HTTPOption {
	return func(t *HTTPTool) { t.description = d }
}

// WithParameters sets the argument schema.
func WithParameters(schema json.RawMessage) HTTPOption {
	return func(t *HTTPTool) { t.params = schema }
}

// WithHTTPClient replaces the default client, which has a 30s timeout.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTool) { t.client = c }
}

// WithRetry retries transient failures (5xx, 429, timeouts). Default is a
// single attempt.
func WithRetry(cfg agerrors.RetryConfig) HTTPOption {
	return func(t *HTTPTool) { t.retry = cfg }
}

// NewHTTP creates an HTTP tool.
func NewHTTP(name string, opts ...HTTPOption) *HTTPTool {
	t := &HTTPTool{
		name:   name,
		method: http.MethodGet,
		client: &http.Client{Timeout: 30 * time.Second},
		retry:  agerrors.NoRetry,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.params == nil {
		t.params = Schema(nil)
	}
	return t
}

func (t *HTTPTool) Name() string                { return t.name }
func (t *HTTPTool) Description() string         { return t.description }
func (t *HTTPTool) Parameters() json.RawMessage { return t.params }

// Call implements Tool. Failures are returned as *Error wrapping either the
// transport error or an *errors.HTTPError.
func (t *HTTPTool) Call(ctx context.Context, args map[string]any) (any, error) {
	res := agerrors.WithRetryContext(ctx, t.retry, func(ctx context.Context) (any, error) {
		return t.do(ctx, args)
	})
	if res.Err != nil {
		return nil, &Error{Tool: t.name, Err: res.Err}
	}
	return res.Value, nil
}

func (t *HTTPTool) do(ctx context.Context, args map[string]any) (any, error) {
	endpoint, rest := t.resolvePath(args)

	var body io.Reader
	switch t.method {
	case http.MethodGet, http.MethodDelete:
		if len(rest) > 0 {
			q := url.Values{}
			for k, v := range rest {
				q.Set(k, fmt.Sprint(v))
			}
			endpoint += "?" + q.Encode()
		}
	default:
		data, err := json.Marshal(rest)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, t.method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(data))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		httpErr := &agerrors.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    msg,
			Endpoint:   t.method + " " + t.path,
		}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			httpErr.RetryIn = time.Duration(secs) * time.Second
		}
		return nil, httpErr
	}

	return decodeResult(data), nil
}

// resolvePath expands path placeholders and returns the arguments that
// were not consumed by them.
func (t *HTTPTool) resolvePath(args map[string]any) (string, map[string]any) {
	used := template.Placeholders(t.path)
	escaped := make(map[string]any, len(used))
	for _, name := range used {
		if v, ok := args[name]; ok {
			escaped[name] = url.PathEscape(fmt.Sprint(v))
		}
	}

	rest := make(map[string]any, len(args))
	for k, v := range args {
		if _, ok := escaped[k]; !ok {
			rest[k] = v
		}
	}
	return t.baseURL + template.Expand(t.path, escaped), rest
}

// decodeResult returns parsed JSON when the payload is JSON and the text
// otherwise.
func decodeResult(data []byte) any {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		var v any
		if err := json.Unmarshal(trimmed, &v); err == nil {
			return v
		}
	}
	return string(trimmed)
}
