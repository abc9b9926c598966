package streaming

import (
	"net/http"
	"time"

	"github.com/budget-analyzer/service-common/internal/runtime/observability"
)

// HooksFilter reports exchange start and completion to hooks. Cancelled
// exchanges are not reported as done.
func HooksFilter(hooks observability.Hooks) WebFilter {
	return WebFilterFunc(func(ex *Exchange, next Handler) *Deferred[struct{}] {
		info := requestInfo(ex)
		info.StartedAt = time.Now()
		hooks.Start(info)

		return Finally(next.Handle(ex), func(_ struct{}, err error) {
			if ex.Context().Err() != nil {
				return
			}
			info.Duration = time.Since(info.StartedAt)
			info.Status = statusOrOK(ex.Response.Status())
			if err != nil && !ex.Response.Committed() {
				info.Status = http.StatusInternalServerError
			}
			hooks.Done(info)
		})
	})
}

// TracingFilter opens a server span that ends when the exchange settles.
func TracingFilter(tracing *observability.Tracing) WebFilter {
	return WebFilterFunc(func(ex *Exchange, next Handler) *Deferred[struct{}] {
		ctx, span := tracing.Start(ex.Context(), ex.Request.Method, ex.Request.Path())
		return Finally(next.Handle(ex.WithContext(ctx)), func(struct{}, error) {
			span.End()
		})
	})
}
