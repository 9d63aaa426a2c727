package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "aurixa/services/orchestration-engine"

// StartPipelineSpan opens a span covering one pipeline run.
func StartPipelineSpan(ctx context.Context, sessionID, mode string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("pipeline.session_id", sessionID),
			attribute.String("pipeline.mode", mode),
		),
	)
}

// StartStepSpan opens a span for a single pipeline step.
func StartStepSpan(ctx context.Context, step string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "pipeline.step",
		trace.WithAttributes(attribute.String("pipeline.step", step)),
	)
}
