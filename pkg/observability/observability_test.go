package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestTracingExportsStageSpans(t *testing.T) {
	var out bytes.Buffer
	shutdown, err := InitTracing(TracingConfig{
		Enabled:        true,
		ServiceName:    "tabconv-test",
		ServiceVersion: "test",
		Output:         &out,
	})
	require.NoError(t, err)

	rt := NewRunTracer("csv", "parquet")
	ctx := context.Background()

	err = rt.TraceStage(ctx, "resolve", func(ctx context.Context) error {
		_, span := rt.StartSpan(ctx, "infer")
		span.SetAttribute("columns", 3)
		span.End(nil)
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = rt.TraceStage(ctx, "stream", func(context.Context) error { return boom })
	assert.Equal(t, boom, err)

	require.NoError(t, shutdown(ctx))

	text := out.String()
	assert.Contains(t, text, `"Name": "csv2parquet.resolve"`)
	assert.Contains(t, text, `"Name": "csv2parquet.infer"`)
	assert.Contains(t, text, `"Name": "csv2parquet.stream"`)
	assert.Contains(t, text, `"Description": "boom"`)
	assert.Contains(t, text, "tabconv-test")
}

func TestTracingDisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{})
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "anything")
	assert.False(t, span.span.SpanContext().IsValid())
	span.End(nil)

	assert.NotNil(t, otel.GetTracerProvider())
	assert.NoError(t, shutdown(context.Background()))
}
