package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTestTracer installs a provider that exports synchronously to memory.
func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	restoreGlobals(t)

	exporter := tracetest.NewInMemoryExporter()
	p, err := install(Config{Command: "test", SampleRatio: 1}, sdktrace.WithSyncer(exporter))
	if err != nil {
		t.Fatalf("install failed: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	return exporter
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestStartSpans(t *testing.T) {
	exporter := setupTestTracer(t)
	ctx := context.Background()

	_, cmd := StartCommandSpan(ctx, "export")
	cmd.End()
	_, prov := StartProviderSpan(ctx, "openai", "generate")
	prov.End()
	_, exp := StartExportSpan(ctx, "ai", 3)
	exp.End()
	_, art := StartArtifactSpan(ctx, "component-spec", "API")
	art.End()

	spans := exporter.GetSpans()
	if len(spans) != 4 {
		t.Fatalf("expected 4 spans, got %d", len(spans))
	}

	want := []struct {
		name      string
		component string
	}{
		{"command.export", "cli"},
		{"provider.generate", "provider"},
		{"export.ai", "export"},
		{"artifact.component-spec", "generate"},
	}
	for i, w := range want {
		if spans[i].Name != w.name {
			t.Errorf("span %d name = %q, want %q", i, spans[i].Name, w.name)
		}
		v, ok := attrValue(spans[i].Attributes, "component")
		if !ok || v.AsString() != w.component {
			t.Errorf("span %d component = %v, want %q", i, v.AsString(), w.component)
		}
	}

	if v, _ := attrValue(spans[2].Attributes, "nodes"); v.AsInt64() != 3 {
		t.Errorf("export span nodes = %d, want 3", v.AsInt64())
	}
}

func TestRecordSuccessAndError(t *testing.T) {
	exporter := setupTestTracer(t)
	ctx := context.Background()

	_, ok := StartProviderSpan(ctx, "openai", "generate")
	RecordSuccess(ok, attribute.Int("tokens_used", 42))
	RecordDuration(ok, "call", 1500*time.Millisecond)
	ok.End()

	_, bad := StartProviderSpan(ctx, "openai", "stream")
	RecordError(bad, errors.New("boom"))
	RecordError(bad, nil)
	bad.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	if spans[0].Status.Code != codes.Ok {
		t.Errorf("success span status = %v", spans[0].Status.Code)
	}
	if v, _ := attrValue(spans[0].Attributes, "call_ms"); v.AsInt64() != 1500 {
		t.Errorf("call_ms = %d, want 1500", v.AsInt64())
	}
	if spans[1].Status.Code != codes.Error || spans[1].Status.Description != "boom" {
		t.Errorf("error span status = %+v", spans[1].Status)
	}
	if len(spans[1].Events) != 1 {
		t.Errorf("expected one recorded error event, got %d", len(spans[1].Events))
	}
}

func TestSpanContextPropagation(t *testing.T) {
	exporter := setupTestTracer(t)

	ctx, parent := StartExportSpan(context.Background(), "template", 1)
	_, child := StartArtifactSpan(ctx, "project-rules", "PROJECT_RULES.md")
	child.End()
	parent.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Parent.SpanID() != spans[1].SpanContext.SpanID() {
		t.Error("artifact span should be a child of the export span")
	}
}
