package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHandler captures log records for testing.
type testHandler struct {
	buf    *bytes.Buffer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func newTestHandler() *testHandler {
	return &testHandler{
		buf:   &bytes.Buffer{},
		level: slog.LevelDebug,
	}
}

func (h *testHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testHandler) Handle(_ context.Context, r slog.Record) error {
	// Build a map from the record
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}

	// Add pre-configured attrs
	for _, attr := range h.attrs {
		data[attr.Key] = attr.Value.Any()
	}

	// Add record attrs
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})

	// Encode as JSON
	enc := json.NewEncoder(h.buf)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return nil
}

func (h *testHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newH := &testHandler{
		buf:    h.buf,
		level:  h.level,
		attrs:  make([]slog.Attr, len(h.attrs)+len(attrs)),
		groups: h.groups,
	}
	copy(newH.attrs, h.attrs)
	copy(newH.attrs[len(h.attrs):], attrs)
	return newH
}

func (h *testHandler) WithGroup(name string) slog.Handler {
	newH := &testHandler{
		buf:    h.buf,
		level:  h.level,
		attrs:  h.attrs,
		groups: append(h.groups, name),
	}
	return newH
}

func (h *testHandler) getLastRecord() map[string]any {
	lines := bytes.Split(h.buf.Bytes(), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if len(lines[i]) > 0 {
			var m map[string]any
			if err := json.Unmarshal(lines[i], &m); err == nil {
				return m
			}
		}
	}
	return nil
}

func TestEnrichLogger(t *testing.T) {
	t.Run("adds workflow_id, worker, and iteration", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		enriched := EnrichLogger(logger, "wf-123", "credit_score_checker", 2)
		enriched.Info("test message")

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "wf-123", record["workflow_id"])
		assert.Equal(t, "credit_score_checker", record["worker"])
		assert.Equal(t, float64(2), record["iteration"]) // JSON decodes ints as float64
		assert.Equal(t, "test message", record["msg"])
	})

	t.Run("nil logger returns nil", func(t *testing.T) {
		assert.Nil(t, EnrichLogger(nil, "wf-123", "w", 1))
	})
}

func TestLogRunStart(t *testing.T) {
	h := newTestHandler()
	LogRunStart(slog.New(h), "credit_approval", "wf-456", "resume")

	record := h.getLastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "INFO", record["level"])
	assert.Equal(t, "workflow run starting", record["msg"])
	assert.Equal(t, "credit_approval", record["workflow"])
	assert.Equal(t, "wf-456", record["workflow_id"])
	assert.Equal(t, "resume", record["op"])

	assert.NotPanics(t, func() { LogRunStart(nil, "w", "id", "start") })
}

func TestLogRunComplete(t *testing.T) {
	h := newTestHandler()
	LogRunComplete(slog.New(h), "wf-789", "awaiting_input", 123.5, 5)

	record := h.getLastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "INFO", record["level"])
	assert.Equal(t, "wf-789", record["workflow_id"])
	assert.Equal(t, "awaiting_input", record["status"])
	assert.Equal(t, 123.5, record["duration_ms"])
	assert.Equal(t, float64(5), record["iterations"])

	assert.NotPanics(t, func() { LogRunComplete(nil, "wf", "done", 1, 1) })
}

func TestLogRunError(t *testing.T) {
	h := newTestHandler()
	LogRunError(slog.New(h), "wf-err", errors.New("connection failed"), 50.0, "background_checker")

	record := h.getLastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "workflow run failed", record["msg"])
	assert.Equal(t, "connection failed", record["error"])
	assert.Equal(t, "background_checker", record["last_worker"])

	assert.NotPanics(t, func() { LogRunError(nil, "wf", errors.New("err"), 0, "w") })
}

func TestLogDecision(t *testing.T) {
	h := newTestHandler()
	LogDecision(slog.New(h), "validate_kyc", 3)

	record := h.getLastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "DEBUG", record["level"])
	assert.Equal(t, "validate_kyc", record["next"])
	assert.Equal(t, float64(3), record["iteration"])
}

func TestLogWorkerLifecycle(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)

	LogWorkerStart(logger, "fetch")
	record := h.getLastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "DEBUG", record["level"])
	assert.Equal(t, "worker starting", record["msg"])
	assert.Equal(t, "fetch", record["worker"])

	LogWorkerComplete(logger, "fetch", 45.7)
	record = h.getLastRecord()
	assert.Equal(t, "worker completed", record["msg"])
	assert.Equal(t, 45.7, record["duration_ms"])

	LogWorkerError(logger, "fetch", errors.New("validation failed"))
	record = h.getLastRecord()
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "validation failed", record["error"])

	assert.NotPanics(t, func() {
		LogWorkerStart(nil, "w")
		LogWorkerComplete(nil, "w", 1)
		LogWorkerError(nil, "w", errors.New("err"))
	})
}

func TestLogSuspendAndResume(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)

	LogSuspend(logger, "wf-1", "manual_approver")
	record := h.getLastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "workflow awaiting input", record["msg"])
	assert.Equal(t, "manual_approver", record["gate"])

	LogResume(logger, "wf-1", "manual_approver")
	record = h.getLastRecord()
	assert.Equal(t, "workflow resumed", record["msg"])
	assert.Equal(t, "wf-1", record["workflow_id"])
}

func TestLogCheckpoint(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)

	LogCheckpoint(logger, "wf-1", 1024)
	record := h.getLastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "DEBUG", record["level"])
	assert.Equal(t, "checkpoint saved", record["msg"])
	assert.Equal(t, float64(1024), record["size_bytes"])

	LogCheckpointError(logger, "wf-1", "save", errors.New("disk full"))
	record = h.getLastRecord()
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "save", record["operation"])
	assert.Equal(t, "disk full", record["error"])
}

func TestTimedOperation(t *testing.T) {
	t.Run("measures duration", func(t *testing.T) {
		done := TimedOperation()
		time.Sleep(10 * time.Millisecond)
		assert.GreaterOrEqual(t, done(), 10.0)
	})

	t.Run("can be called multiple times", func(t *testing.T) {
		done := TimedOperation()
		time.Sleep(5 * time.Millisecond)
		d1 := done()
		time.Sleep(5 * time.Millisecond)
		d2 := done()
		assert.Greater(t, d2, d1)
	})
}
