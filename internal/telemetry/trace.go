package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartCommandSpan opens the root span of a CLI command, named
// command.<name>
func StartCommandSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return TracerProvider().Tracer("sweep/commands").Start(ctx, "command."+name,
		trace.WithAttributes(
			attribute.String("command", name),
			attribute.String("component", "cli"),
		))
}

// StartMonitorSpan opens the root span of one monitoring run
func StartMonitorSpan(ctx context.Context, trigger string) (context.Context, trace.Span) {
	return TracerProvider().Tracer("sweep/monitor").Start(ctx, "monitor.run",
		trace.WithAttributes(
			attribute.String("monitor.trigger", trigger),
			attribute.String("component", "monitor"),
		))
}

func RecordSuccess(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
}

// RecordError marks span as failed. A nil err leaves it untouched.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.Bool("error", true))
}
