package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartCommandSpan creates a span for a CLI command execution.
//
// Usage:
//
//	ctx, span := telemetry.StartCommandSpan(ctx, "export")
//	defer span.End()
func StartCommandSpan(ctx context.Context, cmdName string) (context.Context, trace.Span) {
	tracer := otel.Tracer("commands")
	ctx, span := tracer.Start(ctx, "command."+cmdName)

	span.SetAttributes(
		attribute.String("command", cmdName),
		attribute.String("component", "cli"),
	)

	return ctx, span
}

// StartProviderSpan creates a span for a provider API call.
//
// Usage:
//
//	ctx, span := telemetry.StartProviderSpan(ctx, "openai", "generate")
//	defer span.End()
//
//	span.SetAttributes(attribute.String("model", model))
func StartProviderSpan(ctx context.Context, providerName, operation string) (context.Context, trace.Span) {
	tracer := otel.Tracer("providers")
	ctx, span := tracer.Start(ctx, "provider."+operation)

	span.SetAttributes(
		attribute.String("provider", providerName),
		attribute.String("operation", operation),
		attribute.String("component", "provider"),
	)

	return ctx, span
}

// StartExportSpan creates a span around one export run.
func StartExportSpan(ctx context.Context, mode string, nodes int) (context.Context, trace.Span) {
	tracer := otel.Tracer("export")
	ctx, span := tracer.Start(ctx, "export."+mode)

	span.SetAttributes(
		attribute.String("mode", mode),
		attribute.Int("nodes", nodes),
		attribute.String("component", "export"),
	)

	return ctx, span
}

// StartArtifactSpan creates a span for generating a single document.
func StartArtifactSpan(ctx context.Context, kind, name string) (context.Context, trace.Span) {
	tracer := otel.Tracer("generate")
	ctx, span := tracer.Start(ctx, "artifact."+kind)

	span.SetAttributes(
		attribute.String("artifact", name),
		attribute.String("kind", kind),
		attribute.String("component", "generate"),
	)

	return ctx, span
}

// RecordSuccess marks a span as successful with optional result attributes.
func RecordSuccess(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
}

// RecordError records an error in a span and sets error status.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(
		attribute.Bool("error", true),
	)
}

// RecordDuration records the duration of an operation as a span attribute.
func RecordDuration(span trace.Span, name string, duration time.Duration) {
	span.SetAttributes(
		attribute.Int64(name+"_ms", duration.Milliseconds()),
	)
}
