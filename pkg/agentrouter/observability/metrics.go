package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records router metrics.
// Use NewMetricsRecorder() for OTel, NewPrometheusRecorder() for Prometheus,
// or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordWorkerExecution records a worker execution. A non-nil err means the
	// failure was contained as an error message.
	RecordWorkerExecution(ctx context.Context, worker string, duration time.Duration, err error)

	// RecordDecision records one dispatcher decision ("FINISH" for terminal).
	RecordDecision(ctx context.Context, next string)

	// RecordRun records an invocation returning with the given status.
	RecordRun(ctx context.Context, workflow, status string, duration time.Duration)

	// RecordCheckpoint records a checkpoint save operation.
	RecordCheckpoint(ctx context.Context, workflow string, sizeBytes int64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	workerExecutions metric.Int64Counter
	workerLatency    metric.Float64Histogram
	workerErrors     metric.Int64Counter
	decisions        metric.Int64Counter
	runs             metric.Int64Counter
	runLatency       metric.Float64Histogram
	checkpointSize   metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("agentrouter")

	workerExecutions, err := meter.Int64Counter("agentrouter.worker.executions",
		metric.WithDescription("Number of worker executions"),
	)
	if err != nil {
		return nil, err
	}

	workerLatency, err := meter.Float64Histogram("agentrouter.worker.latency_ms",
		metric.WithDescription("Worker execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	workerErrors, err := meter.Int64Counter("agentrouter.worker.errors",
		metric.WithDescription("Number of worker failures absorbed into the log"),
	)
	if err != nil {
		return nil, err
	}

	decisions, err := meter.Int64Counter("agentrouter.dispatch.decisions",
		metric.WithDescription("Number of dispatcher decisions by target"),
	)
	if err != nil {
		return nil, err
	}

	runs, err := meter.Int64Counter("agentrouter.workflow.runs",
		metric.WithDescription("Number of workflow invocations by outcome"),
	)
	if err != nil {
		return nil, err
	}

	runLatency, err := meter.Float64Histogram("agentrouter.workflow.latency_ms",
		metric.WithDescription("Workflow invocation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	checkpointSize, err := meter.Int64Histogram("agentrouter.checkpoint.size_bytes",
		metric.WithDescription("Checkpoint size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		workerExecutions: workerExecutions,
		workerLatency:    workerLatency,
		workerErrors:     workerErrors,
		decisions:        decisions,
		runs:             runs,
		runLatency:       runLatency,
		checkpointSize:   checkpointSize,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordWorkerExecution records a worker execution.
func (m *otelMetrics) RecordWorkerExecution(ctx context.Context, worker string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("worker", worker))

	m.workerExecutions.Add(ctx, 1, attrs)
	m.workerLatency.Record(ctx, float64(duration.Milliseconds()), attrs)

	if err != nil {
		m.workerErrors.Add(ctx, 1, attrs)
	}
}

// RecordDecision records a dispatcher decision.
func (m *otelMetrics) RecordDecision(ctx context.Context, next string) {
	m.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("next", next)))
}

// RecordRun records a workflow invocation.
func (m *otelMetrics) RecordRun(ctx context.Context, workflow, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("workflow", workflow),
		attribute.String("status", status),
	)
	m.runs.Add(ctx, 1, attrs)
	m.runLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordCheckpoint records a checkpoint save.
func (m *otelMetrics) RecordCheckpoint(ctx context.Context, workflow string, sizeBytes int64) {
	m.checkpointSize.Record(ctx, sizeBytes, metric.WithAttributes(attribute.String("workflow", workflow)))
}

// multiMetrics fans out to several recorders.
type multiMetrics []MetricsRecorder

// Multi returns a recorder that forwards to every non-nil recorder given.
func Multi(recorders ...MetricsRecorder) MetricsRecorder {
	var out multiMetrics
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return NoopMetrics{}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func (m multiMetrics) RecordWorkerExecution(ctx context.Context, worker string, duration time.Duration, err error) {
	for _, r := range m {
		r.RecordWorkerExecution(ctx, worker, duration, err)
	}
}

func (m multiMetrics) RecordDecision(ctx context.Context, next string) {
	for _, r := range m {
		r.RecordDecision(ctx, next)
	}
}

func (m multiMetrics) RecordRun(ctx context.Context, workflow, status string, duration time.Duration) {
	for _, r := range m {
		r.RecordRun(ctx, workflow, status, duration)
	}
}

func (m multiMetrics) RecordCheckpoint(ctx context.Context, workflow string, sizeBytes int64) {
	for _, r := range m {
		r.RecordCheckpoint(ctx, workflow, sizeBytes)
	}
}
