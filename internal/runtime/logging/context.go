package logging

import (
	"context"
	"log/slog"
)

// CorrelationIDField is the structured field carrying the correlation ID on
// every log line written for a request.
const CorrelationIDField = "correlation_id"

type correlationIDKey struct{}

type loggerKey struct{}

// WithCorrelationID stores the correlation ID on ctx. The value lives exactly
// as long as the request's context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationIDFromContext returns the correlation ID stored on ctx, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

// WithLogger stores a request-scoped logger on ctx.
func WithLogger(ctx context.Context, logger ServiceLogger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the request-scoped logger, or fallback when none is set.
func FromContext(ctx context.Context, fallback ServiceLogger) ServiceLogger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey{}).(ServiceLogger); ok && logger != nil {
			return logger
		}
	}
	return fallback
}

// CorrelationHandler adds the correlation ID found on the record's context to
// every record passed to the wrapped handler. Records logged without a context
// (or outside a request) pass through untouched.
type CorrelationHandler struct {
	next slog.Handler
}

// NewCorrelationHandler wraps next.
func NewCorrelationHandler(next slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{next: next}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, record slog.Record) error {
	if id := CorrelationIDFromContext(ctx); id != "" {
		record = record.Clone()
		record.AddAttrs(slog.String(CorrelationIDField, id))
	}
	return h.next.Handle(ctx, record)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{next: h.next.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{next: h.next.WithGroup(name)}
}
