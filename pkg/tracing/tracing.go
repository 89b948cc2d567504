package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer     trace.Tracer
	propagator = propagation.TraceContext{}
)

// SetTracer sets the tracer used by StartSpan. Until it is called spans are no-ops.
func SetTracer(t trace.Tracer) {
	tracer = t
}

// StartSpan starts a span named "pkg.Type.Method" with optional attributes.
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	if len(attrs) == 0 {
		return tracer.Start(ctx, spanName)
	}
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// AuthorityKey tags a span with the identity it works on.
func AuthorityKey(key string) attribute.KeyValue {
	return attribute.String("heather.authority_key", key)
}

func activeSpan(ctx context.Context) (trace.Span, bool) {
	if tracer == nil {
		return nil, false
	}
	span := trace.SpanFromContext(ctx)
	return span, span.SpanContext().IsValid()
}

// GetTraceID returns the trace ID from the context, or "" when no span is recording.
func GetTraceID(ctx context.Context) string {
	span, ok := activeSpan(ctx)
	if !ok {
		return ""
	}
	return span.SpanContext().TraceID().String()
}

// Carrier returns the W3C trace headers for the active span, empty without one.
func Carrier(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	if _, ok := activeSpan(ctx); ok {
		propagator.Inject(ctx, carrier)
	}
	return carrier
}

// ContextFromCarrier resumes a remote trace described by W3C trace headers.
func ContextFromCarrier(ctx context.Context, headers map[string]string) context.Context {
	return propagator.Extract(ctx, propagation.MapCarrier(headers))
}
