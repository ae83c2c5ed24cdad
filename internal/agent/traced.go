package agent

import (
	"context"
	"log/slog"
	"time"

	"walletai/internal/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const maxSpanInput = 2048

// SpanAttributer lets a tool add its own attributes to the tool span, for
// example the endpoint an HTTP function calls.
type SpanAttributer interface {
	SpanAttributes() []attribute.KeyValue
}

type tracedTool struct {
	Tool
}

func withTrace(t Tool) Tool {
	return &tracedTool{Tool: t}
}

func (t *tracedTool) Execute(ctx context.Context, input string) (string, error) {
	attrs := []attribute.KeyValue{
		attribute.String("gen_ai.operation.name", "execute_tool"),
		attribute.String("gen_ai.tool.name", t.Name()),
		attribute.String("gen_ai.tool.input", clip(input)),
		attribute.String("walletai.session_id", SessionIDFromContext(ctx)),
	}
	if id := TweetIDFromContext(ctx); id != "" {
		attrs = append(attrs, attribute.String("walletai.tweet_id", id))
	}
	if a, ok := t.Tool.(SpanAttributer); ok {
		attrs = append(attrs, a.SpanAttributes()...)
	}

	ctx, span := trace.Tracer().Start(ctx, "tool "+t.Name(), oteltrace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	result, err := t.Tool.Execute(ctx, input)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Warn("tool failed", "tool", t.Name(), "session_id", SessionIDFromContext(ctx), "elapsed", elapsed, "error", err)
		return result, err
	}

	span.SetAttributes(attribute.Int("gen_ai.tool.output_length", len(result)))
	slog.Debug("tool finished", "tool", t.Name(), "session_id", SessionIDFromContext(ctx), "elapsed", elapsed)
	return result, nil
}

func clip(s string) string {
	if len(s) <= maxSpanInput {
		return s
	}
	return s[:maxSpanInput] + "…"
}
