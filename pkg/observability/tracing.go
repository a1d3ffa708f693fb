package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span wraps an OpenTelemetry span and collects attributes until End.
type Span struct {
	span       trace.Span
	startTime  time.Time
	attributes []attribute.KeyValue
}

// StartSpan starts a span on the global tracer provider.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, name)
	return ctx, &Span{span: span, startTime: time.Now()}
}

// SetAttribute records an attribute, applied when the span ends.
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// End sets the span status from err and ends it.
func (s *Span) End(err error) {
	s.attributes = append(s.attributes, attribute.Int64("duration_ms", time.Since(s.startTime).Milliseconds()))
	s.span.SetAttributes(s.attributes...)
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}

// RunTracer names spans after the format pair of a run, e.g.
// "csv2parquet.resolve".
type RunTracer struct {
	source      string
	destination string
}

// NewRunTracer creates a tracer for one source/destination pair.
func NewRunTracer(source, destination string) *RunTracer {
	return &RunTracer{source: source, destination: destination}
}

// StartSpan starts a span for one pipeline stage.
func (rt *RunTracer) StartSpan(ctx context.Context, stage string) (context.Context, *Span) {
	ctx, span := StartSpan(ctx, fmt.Sprintf("%s2%s.%s", rt.source, rt.destination, stage))
	span.SetAttribute("tabconv.source", rt.source)
	span.SetAttribute("tabconv.destination", rt.destination)
	return ctx, span
}

// TraceStage runs fn inside a stage span.
func (rt *RunTracer) TraceStage(ctx context.Context, stage string, fn func(ctx context.Context) error) error {
	ctx, span := rt.StartSpan(ctx, stage)
	err := fn(ctx)
	span.End(err)
	return err
}
