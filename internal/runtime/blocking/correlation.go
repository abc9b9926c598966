package blocking

import (
	"net/http"
	"strings"

	"github.com/shiwano/errdef"

	"github.com/budget-analyzer/service-common/internal/runtime/api"
	"github.com/budget-analyzer/service-common/internal/runtime/ids"
	"github.com/budget-analyzer/service-common/internal/runtime/logging"
	"github.com/budget-analyzer/service-common/internal/runtime/observability"
)

// CorrelationIDFilter adopts the inbound X-Correlation-ID when it is not
// blank and mints a new one otherwise. The ID is echoed on the response
// before the handler runs and is bound to the request context together with
// a logger carrying it, so everything logged for the request shares it.
// The ID is also stored as an errdef trace ID option. Only errors built with
// Definition.With(r.Context()) pick it up; the errors package constructors
// take no context and leave trace_id unset.
func CorrelationIDFilter(logger logging.ServiceLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(api.HeaderCorrelationID)
			if strings.TrimSpace(id) == "" {
				id = ids.NewCorrelationID()
			}
			w.Header().Set(api.HeaderCorrelationID, id)

			ctx := logging.WithCorrelationID(r.Context(), id)
			ctx = errdef.ContextWithOptions(ctx, errdef.TraceID(id))
			if logger != nil {
				scoped := logger.With(logging.LogFields{logging.CorrelationIDField: id})
				ctx = logging.WithLogger(ctx, logging.WithContext(ctx, scoped))
			}
			observability.AnnotateSpan(ctx, id)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CorrelationID returns the correlation ID bound to r, or "" outside the
// filter.
func CorrelationID(r *http.Request) string {
	return logging.CorrelationIDFromContext(r.Context())
}
