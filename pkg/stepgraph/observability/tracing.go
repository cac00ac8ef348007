package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// SpanManager creates the spans of a run. A run span is the root; fork spans
// are children of the span that was current when the fork started, and step
// spans are children of the run or of the enclosing fork.
//
// Use NewSpanManager for the global OTel tracer provider or DisabledSpans.
type SpanManager interface {
	// StartRunSpan starts the root span of a run. resumedFrom is the node a
	// resumed run continues at, empty for a fresh run.
	StartRunSpan(ctx context.Context, graph, runID, resumedFrom string) (context.Context, trace.Span)

	// StartStepSpan starts the span of one step execution.
	StartStepSpan(ctx context.Context, node string) (context.Context, trace.Span)

	// StartForkSpan starts a span covering every branch of a fork up to the
	// merge at its join.
	StartForkSpan(ctx context.Context, fork string, branches []string) (context.Context, trace.Span)

	// EndSpan records err, sets attrs and ends the span. A nil span is ignored.
	EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue)
}

type otelSpanManager struct {
	tracer trace.Tracer
}

var disabledSpans = &otelSpanManager{tracer: tracenoop.NewTracerProvider().Tracer(instrumentationName)}

// NewSpanManager returns a SpanManager on the global OTel tracer provider.
//
// Configure the provider first:
//
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return NewSpanManagerWithProvider(otel.GetTracerProvider())
}

// NewSpanManagerWithProvider returns a SpanManager bound to provider.
func NewSpanManagerWithProvider(provider trace.TracerProvider) SpanManager {
	return &otelSpanManager{tracer: provider.Tracer(instrumentationName)}
}

// DisabledSpans returns the shared SpanManager backed by the OTel no-op
// tracer. Runs use it unless tracing is enabled.
func DisabledSpans() SpanManager {
	return disabledSpans
}

func (m *otelSpanManager) StartRunSpan(ctx context.Context, graph, runID, resumedFrom string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("graph.name", graph),
		attribute.String("run.id", runID),
	}
	if resumedFrom != "" {
		attrs = append(attrs, attribute.String("run.resumed_from", resumedFrom))
	}
	return m.tracer.Start(ctx, "stepgraph.run",
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) StartStepSpan(ctx context.Context, node string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "stepgraph.step."+node,
		trace.WithAttributes(attribute.String("node.id", node)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) StartForkSpan(ctx context.Context, fork string, branches []string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "stepgraph.fork."+fork,
		trace.WithAttributes(
			attribute.String("fork.node", fork),
			attribute.StringSlice("fork.branches", branches),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
