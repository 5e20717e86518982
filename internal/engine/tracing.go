package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/otto-ai/otto/internal/tools"
)

func (e *Engine) startDispatchSpan(ctx context.Context, req tools.Request) (context.Context, trace.Span) {
	ctx, span := e.tracer.Start(ctx, "engine.dispatch")
	span.SetAttributes(
		attribute.String("tool.name", req.ToolName),
		attribute.String("tool.source", req.Source.String()),
		attribute.String("request.id", req.ID),
	)
	return ctx, span
}

func endDispatchSpan(span trace.Span, res *tools.Result) {
	span.SetAttributes(
		attribute.Bool("tool.success", res.Success),
		attribute.Int64("tool.duration_ms", res.DurationMs),
	)
	if res.Error != nil {
		span.SetAttributes(attribute.String("tool.error_code", res.Error.Code))
	}
	span.End()
}

func (e *Engine) startBatchSpan(ctx context.Context, size int) (context.Context, trace.Span) {
	ctx, span := e.tracer.Start(ctx, "engine.dispatch_batch")
	span.SetAttributes(attribute.Int("batch.size", size))
	return ctx, span
}
