package streaming

import (
	"strings"

	"github.com/shiwano/errdef"

	"github.com/budget-analyzer/service-common/internal/runtime/api"
	"github.com/budget-analyzer/service-common/internal/runtime/ids"
	"github.com/budget-analyzer/service-common/internal/runtime/logging"
	"github.com/budget-analyzer/service-common/internal/runtime/observability"
)

// CorrelationIDFilter adopts or mints the correlation ID and binds it to the
// exchange context. Every later stage reads it from the context it was
// handed, so a continuation running on another goroutine still sees the ID
// of its own exchange. Errors built with Definition.With(ex.Context()) carry
// the ID as their errdef trace ID; errors from the errors package
// constructors do not.
func CorrelationIDFilter(logger logging.ServiceLogger) WebFilter {
	return WebFilterFunc(func(ex *Exchange, next Handler) *Deferred[struct{}] {
		id := ex.Request.Header.Get(api.HeaderCorrelationID)
		if strings.TrimSpace(id) == "" {
			id = ids.NewCorrelationID()
		}
		ex.Response.Header().Set(api.HeaderCorrelationID, id)

		ctx := logging.WithCorrelationID(ex.Context(), id)
		ctx = errdef.ContextWithOptions(ctx, errdef.TraceID(id))
		if logger != nil {
			scoped := logger.With(logging.LogFields{
				logging.CorrelationIDField: id,
				"request_id":               ex.Request.ID,
			})
			ctx = logging.WithLogger(ctx, logging.WithContext(ctx, scoped))
		}
		observability.AnnotateSpan(ctx, id)

		return next.Handle(ex.WithContext(ctx))
	})
}

// CorrelationID returns the correlation ID bound to ex, or "" outside the
// filter.
func CorrelationID(ex *Exchange) string {
	return logging.CorrelationIDFromContext(ex.Context())
}
