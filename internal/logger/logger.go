package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

// New creates a structured logger for the client. Format is "json" or
// "text"; anything else falls back to text, which suits interactive use.
func New(component, level, format string) *slog.Logger {
	return NewWithWriter(component, level, format, os.Stderr)
}

// NewWithWriter creates a structured logger writing to the given writer.
func NewWithWriter(component, level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With(
		slog.String("component", component),
	)
}

// WithContext returns a logger annotated with trace context when the
// calling host propagates an OpenTelemetry span.
func WithContext(ctx context.Context, l *slog.Logger) *slog.Logger {
	if spanCtx := trace.SpanFromContext(ctx).SpanContext(); spanCtx.IsValid() {
		l = l.With(
			slog.String("trace_id", spanCtx.TraceID().String()),
			slog.String("span_id", spanCtx.SpanID().String()),
		)
	}
	return l
}
