package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/budget-analyzer/service-common/internal/runtime/api"
)

const tracerName = "github.com/budget-analyzer/service-common"

// CorrelationIDAttribute is the span attribute holding the correlation ID.
const CorrelationIDAttribute = attribute.Key("correlation.id")

// Tracing starts request spans and annotates them.
type Tracing struct {
	tracer trace.Tracer
}

// NewTracing uses tp, or the global provider when tp is nil.
func NewTracing(tp trace.TracerProvider) *Tracing {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracing{tracer: tp.Tracer(tracerName)}
}

// Start opens a server span for an inbound request.
func (t *Tracing) Start(ctx context.Context, method, path string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, method+" "+path,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
}

// AnnotateSpan records the correlation ID on the span active in ctx.
func AnnotateSpan(ctx context.Context, correlationID string) {
	trace.SpanFromContext(ctx).SetAttributes(CorrelationIDAttribute.String(correlationID))
}

// RecordError records a handled failure on the span active in ctx. Only
// server-side failures mark the span as errored.
func RecordError(ctx context.Context, res api.Resolution) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(
		attribute.String("error.type", string(res.Type())),
		attribute.Int("http.response.status_code", res.Status),
	)
	if res.Err != nil {
		span.RecordError(res.Err)
	}
	if res.Status >= 500 {
		span.SetStatus(codes.Error, string(res.Type()))
	}
}

// Hooks returns hooks that record handled failures on the request span.
func (t *Tracing) Hooks() Hooks {
	return Hooks{
		OnRequestError: func(info RequestInfo, res api.Resolution) {
			if info.Context != nil {
				RecordError(info.Context, res)
			}
		},
	}
}
