package blocking

import (
	"net/http"
	"time"

	"github.com/budget-analyzer/service-common/internal/runtime/observability"
)

// HooksFilter reports request start and completion to hooks. Requests whose
// client went away before the handler returned are not reported as done.
func HooksFilter(hooks observability.Hooks) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := requestInfo(r)
			info.StartedAt = time.Now()
			hooks.Start(info)

			cw := trackCommit(w)
			next.ServeHTTP(cw, r)
			if r.Context().Err() != nil {
				return
			}

			info.Duration = time.Since(info.StartedAt)
			info.Status = statusOrOK(cw.Status())
			hooks.Done(info)
		})
	}
}

// TracingFilter opens a server span around the request.
func TracingFilter(tracing *observability.Tracing) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.Start(r.Context(), r.Method, r.URL.Path)
			defer span.End()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
