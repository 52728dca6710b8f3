package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer resolves against the current global provider on every call so a
// provider installed after package init is honored.
func tracer() trace.Tracer {
	return otel.Tracer("agentrouter")
}

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartRunSpan starts a span covering one Run or Resume invocation.
	StartRunSpan(ctx context.Context, workflow, workflowID string) (context.Context, trace.Span)

	// StartDispatchSpan starts a span for one dispatcher decision.
	StartDispatchSpan(ctx context.Context, iteration int) (context.Context, trace.Span)

	// StartWorkerSpan starts a span for a worker execution.
	// The worker span should be a child of the run span.
	StartWorkerSpan(ctx context.Context, worker string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

func (m *otelSpanManager) StartRunSpan(ctx context.Context, workflow, workflowID string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "agentrouter.run",
		trace.WithAttributes(
			attribute.String("workflow.name", workflow),
			attribute.String("workflow.id", workflowID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) StartDispatchSpan(ctx context.Context, iteration int) (context.Context, trace.Span) {
	return tracer().Start(ctx, "agentrouter.dispatch",
		trace.WithAttributes(
			attribute.Int("dispatch.iteration", iteration),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) StartWorkerSpan(ctx context.Context, worker string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "agentrouter.worker."+worker,
		trace.WithAttributes(
			attribute.String("worker.name", worker),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	AddSpanEvent(ctx, name, attrs...)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
