package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetupDisabled(t *testing.T) {
	restoreGlobals(t)

	p, err := Setup(context.Background(), Config{})
	require.NoError(t, err)
	assert.NoError(t, p.ForceFlush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))

	// Trace context still propagates through NATS headers.
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}

func TestSetupEnabled(t *testing.T) {
	restoreGlobals(t)

	cfg, err := ParseEndpoint("http://127.0.0.1:1")
	require.NoError(t, err)
	p, err := Setup(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	require.NotNil(t, p.tp)
	assert.Same(t, p.tp, otel.GetTracerProvider())
}

func TestForceFlushExportsEndedSpans(t *testing.T) {
	restoreGlobals(t)

	exporter := tracetest.NewInMemoryExporter()
	p, err := install(Config{ServiceVersion: "1.2.3", Command: "export", SampleRatio: 1},
		sdktrace.WithBatcher(exporter))
	require.NoError(t, err)

	_, span := StartExportSpan(context.Background(), "template", 2)
	span.End()

	require.NoError(t, p.ForceFlush(context.Background()))
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "export.template", spans[0].Name)

	attrs := map[string]string{}
	for _, kv := range spans[0].Resource.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "blueprint", attrs["service.name"])
	assert.Equal(t, "1.2.3", attrs["service.version"])
	assert.Equal(t, "export", attrs["blueprint.command"])

	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestZeroSampleRatioDropsRootSpans(t *testing.T) {
	restoreGlobals(t)

	exporter := tracetest.NewInMemoryExporter()
	p, err := install(Config{SampleRatio: 0}, sdktrace.WithSyncer(exporter))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	_, span := StartCommandSpan(context.Background(), "export")
	span.End()
	assert.Empty(t, exporter.GetSpans())
}

// restoreGlobals puts the process-wide tracer provider and propagator back
// after the test.
func restoreGlobals(t *testing.T) {
	t.Helper()
	tp, prop := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
	})
}
