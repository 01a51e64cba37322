// Package tracing instruments proxied requests with OpenTelemetry spans.
// No remote exporter is wired: spans live entirely in-process via an
// sdktrace.TracerProvider, since no collector endpoint is part of this
// system's scope.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an in-process OpenTelemetry tracer provider.
type Tracer struct {
	enabled  bool
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// New creates a Tracer. When enabled is false, StartProxySpan is a no-op that
// returns the incoming context and a non-recording span.
func New(enabled bool) *Tracer {
	t := &Tracer{enabled: enabled}
	if !enabled {
		return t
	}

	t.provider = sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(t.provider)
	t.tracer = t.provider.Tracer("hubrouter")
	return t
}

// IsEnabled returns whether tracing is active.
func (t *Tracer) IsEnabled() bool {
	return t.enabled
}

// StartProxySpan starts a span for one proxied request, tagged with the
// request classification, the chosen hub's uuid, and the session id when
// known (session id may be empty for non-affinity requests).
func (t *Tracer) StartProxySpan(ctx context.Context, routeClass, hubUUID, sessionID string) (context.Context, trace.Span) {
	if !t.enabled {
		return ctx, trace.SpanFromContext(ctx)
	}
	attrs := []attribute.KeyValue{
		attribute.String("hubrouter.route_class", routeClass),
	}
	if hubUUID != "" {
		attrs = append(attrs, attribute.String("hubrouter.hub_uuid", hubUUID))
	}
	if sessionID != "" {
		attrs = append(attrs, attribute.String("hubrouter.session_id", sessionID))
	}
	return t.tracer.Start(ctx, "forward "+routeClass,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// Close shuts down the tracer provider, flushing any buffered spans.
func (t *Tracer) Close(ctx context.Context) error {
	if t.provider != nil {
		return t.provider.Shutdown(ctx)
	}
	return nil
}
