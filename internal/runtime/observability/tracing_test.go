package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/budget-analyzer/service-common/internal/runtime/api"
	errorspkg "github.com/budget-analyzer/service-common/internal/runtime/errors"
)

func newRecordedTracing(t *testing.T) (*Tracing, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewTracing(tp), sr
}

func TestTracingAnnotatesAndRecordsServerFailures(t *testing.T) {
	tracing, sr := newRecordedTracing(t)

	ctx, span := tracing.Start(context.Background(), "GET", "/api/items")
	AnnotateSpan(ctx, "req_0123456789abcdef")
	tracing.Hooks().Error(RequestInfo{Context: ctx}, api.ResponseBuilder{}.Resolve(errors.New("boom")))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "GET /api/items", s.Name())
	assert.Equal(t, codes.Error, s.Status().Code)

	attrs := map[string]string{}
	for _, kv := range s.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "req_0123456789abcdef", attrs["correlation.id"])
	assert.Equal(t, "INTERNAL_ERROR", attrs["error.type"])
	assert.Len(t, s.Events(), 1)
}

func TestTracingClientFailureLeavesStatusUnset(t *testing.T) {
	tracing, sr := newRecordedTracing(t)

	ctx, span := tracing.Start(context.Background(), "GET", "/x")
	RecordError(ctx, api.ResponseBuilder{}.Resolve(errorspkg.NewResourceNotFound("gone")))
	span.End()

	require.Len(t, sr.Ended(), 1)
	assert.Equal(t, codes.Unset, sr.Ended()[0].Status().Code)
}

func TestRecordErrorWithoutSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordError(context.Background(), api.Resolution{Status: 500})
		AnnotateSpan(context.Background(), "req_x")
	})
}
