package tool

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agerrors "github.com/randalmurphal/agentrouter/pkg/agentrouter/errors"
)

func TestHTTPTool_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/credit-check", r.URL.Path)
		assert.Equal(t, "C1", r.URL.Query().Get("customer_id"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"customer_id":"C1","credit_score":720}`)
	}))
	defer srv.Close()

	tl := NewHTTP("check_credit_score",
		WithBaseURL(srv.URL+"/"),
		WithPath("/credit-check"),
		WithToken("secret"),
		WithParameters(Schema(map[string]string{"customer_id": "string"}, "customer_id")),
	)

	out, err := tl.Call(context.Background(), map[string]any{"customer_id": "C1"})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"customer_id": "C1", "credit_score": float64(720)}, out)
}

func TestHTTPTool_PostBodyAndPathParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/applications/APP 1/decision", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"decision": "approved"}, body)

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, "recorded")
	}))
	defer srv.Close()

	tl := NewHTTP("make_final_decision",
		WithMethod("post"),
		WithBaseURL(srv.URL),
		WithPath("/applications/${application_id}/decision"),
	)

	out, err := tl.Call(context.Background(), map[string]any{
		"application_id": "APP 1",
		"decision":       "approved",
	})

	require.NoError(t, err)
	assert.Equal(t, "recorded", out)
}

func TestHTTPTool_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "customer not found", http.StatusNotFound)
	}))
	defer srv.Close()

	tl := NewHTTP("check_credit_score", WithBaseURL(srv.URL), WithPath("/credit-check"))
	_, err := tl.Call(context.Background(), map[string]any{"customer_id": "nobody"})

	var toolErr *Error
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "check_credit_score", toolErr.Tool)

	var httpErr *agerrors.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, "customer not found", httpErr.Message)
	assert.Equal(t, "GET /credit-check", httpErr.Endpoint)
}

func TestHTTPTool_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	tl := NewHTTP("down", WithBaseURL(url))
	_, err := tl.Call(context.Background(), nil)

	var toolErr *Error
	assert.ErrorAs(t, err, &toolErr)
}

func TestHTTPTool_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	tl := NewHTTP("flaky", WithBaseURL(srv.URL), WithRetry(agerrors.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		BackoffFactor:  1,
	}))

	out, err := tl.Call(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPTool_RetryAfterHint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewHTTP("limited", WithBaseURL(srv.URL)).Call(context.Background(), nil)

	var httpErr *agerrors.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
	assert.Equal(t, 2*time.Second, httpErr.RetryAfter())
	assert.Equal(t, agerrors.CategoryTransient, agerrors.Categorize(err))
}

func TestHTTPTool_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	tl := NewHTTP("strict", WithBaseURL(srv.URL), WithRetry(agerrors.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		BackoffFactor:  1,
	}))

	_, err := tl.Call(context.Background(), nil)

	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

type creditArgs struct {
	CustomerID string  `json:"customer_id"`
	Amount     int     `json:"amount"`
	Ratio      float64 `json:"ratio"`
}

func TestDecodeArgs(t *testing.T) {
	var got creditArgs
	err := DecodeArgs(map[string]any{
		"customer_id": "C1",
		"amount":      "5000",
		"ratio":       0.3,
		"extra":       true,
	}, &got)

	require.NoError(t, err)
	assert.Equal(t, creditArgs{CustomerID: "C1", Amount: 5000, Ratio: 0.3}, got)
}

func TestDecodeArgs_Invalid(t *testing.T) {
	var got creditArgs
	err := DecodeArgs(map[string]any{"amount": "lots"}, &got)
	assert.ErrorContains(t, err, "decode tool args")
}

func TestFunc(t *testing.T) {
	tl := Func("score", "Looks up a score",
		Schema(map[string]string{"customer_id": "string"}, "customer_id"),
		func(ctx context.Context, args creditArgs) (any, error) {
			if args.CustomerID == "" {
				return nil, errors.New("customer_id is required")
			}
			return map[string]any{"credit_score": 720}, nil
		})

	assert.Equal(t, "score", tl.Name())
	assert.Equal(t, "Looks up a score", tl.Description())

	out, err := tl.Call(context.Background(), map[string]any{"customer_id": "C1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"credit_score": 720}, out)

	_, err = tl.Call(context.Background(), map[string]any{})
	var toolErr *Error
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "tool score: customer_id is required", err.Error())
}

func TestSchema(t *testing.T) {
	var got map[string]any
	require.NoError(t, json.Unmarshal(Schema(map[string]string{"b": "number", "a": "string"}, "b", "a"), &got))

	assert.Equal(t, "object", got["type"])
	assert.Equal(t, []any{"a", "b"}, got["required"])
	assert.Equal(t, map[string]any{"type": "number"}, got["properties"].(map[string]any)["b"])

	assert.NotContains(t, string(Schema(nil)), "required")
}

func TestDefinition(t *testing.T) {
	tl := NewHTTP("check", WithDescription("Check things"))
	def := Definition(tl)

	assert.Equal(t, "check", def.Name)
	assert.Equal(t, "Check things", def.Description)
	assert.JSONEq(t, `{"type":"object","properties":{}}`, string(def.Parameters))
}

func TestRender(t *testing.T) {
	assert.Equal(t, "", Render(nil))
	assert.Equal(t, "plain", Render("plain"))
	assert.Equal(t, "raw", Render([]byte("raw")))
	assert.Equal(t, `{"credit_score":720}`, Render(map[string]any{"credit_score": 720}))
}

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX commands")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestCommandTool_EchoesArgs(t *testing.T) {
	requireUnix(t)

	tl := NewCommand("echo", "cat")
	out, err := tl.Call(context.Background(), map[string]any{"customer_id": "C1"})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"customer_id": "C1"}, out)
}

func TestCommandTool_Failure(t *testing.T) {
	requireUnix(t)

	tl := NewCommand("broken", "sh", WithCommandArgs("-c", "echo bureau offline >&2; exit 3"))
	_, err := tl.Call(context.Background(), nil)

	var toolErr *Error
	require.ErrorAs(t, err, &toolErr)
	assert.Contains(t, err.Error(), "bureau offline")
}

func TestCommandTool_Timeout(t *testing.T) {
	requireUnix(t)

	tl := NewCommand("slow", "sh", WithCommandArgs("-c", "exec sleep 5"), WithCommandTimeout(50*time.Millisecond))
	_, err := tl.Call(context.Background(), nil)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	var timeoutErr *agerrors.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "50ms", timeoutErr.Duration)
}

func TestCommandTool_TextOutput(t *testing.T) {
	requireUnix(t)

	tl := NewCommand("greet", "sh", WithCommandArgs("-c", "echo hello $GREETING_SUFFIX"), WithEnv("GREETING_SUFFIX=there"))
	out, err := tl.Call(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, "hello there", out)
}
