package streaming

import (
	"github.com/budget-analyzer/service-common/internal/runtime/api"
	errorspkg "github.com/budget-analyzer/service-common/internal/runtime/errors"
	"github.com/budget-analyzer/service-common/internal/runtime/logging"
	"github.com/budget-analyzer/service-common/internal/runtime/observability"
)

// StackName labels the streaming pipeline in hooks and metrics.
const StackName = "streaming"

// ExceptionHandler produces error responses as deferred results. It shares
// every mapping with the blocking handler through the embedded builder.
type ExceptionHandler struct {
	api.ResponseBuilder
	logger logging.ServiceLogger
	hooks  observability.Hooks
}

// ExceptionHandlerOption configures an ExceptionHandler.
type ExceptionHandlerOption func(*ExceptionHandler)

// WithHooks registers hooks called for every handled failure.
func WithHooks(hooks observability.Hooks) ExceptionHandlerOption {
	return func(h *ExceptionHandler) {
		h.hooks = h.hooks.Merge(hooks)
	}
}

// NewExceptionHandler returns a handler logging through logger, or through
// the exchange-scoped logger when one is bound.
func NewExceptionHandler(logger logging.ServiceLogger, opts ...ExceptionHandlerOption) *ExceptionHandler {
	h := &ExceptionHandler{logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ api.ExceptionHandler = (*ExceptionHandler)(nil)

// HandleError logs err at warn level and writes its error response. The
// result fails only when the response itself cannot be written. A response
// that is already committed keeps what it sent. Once the exchange is
// cancelled nothing is logged, reported or written and err is passed on.
func (h *ExceptionHandler) HandleError(ex *Exchange, err error) *Deferred[struct{}] {
	ctx := ex.Context()
	log := logging.FromContext(ctx, h.logger)
	if ctx.Err() != nil {
		if log != nil {
			log.Debug("Exchange cancelled, error response dropped", logging.LogFields{"error": err.Error()})
		}
		return Failed[struct{}](err)
	}

	res := h.Resolve(err)
	api.LogException(log, res)
	h.hooks.Error(requestInfo(ex), res)

	if ex.Response.Committed() {
		if log != nil {
			log.Debug("Response already committed, error body dropped", logging.LogFields{"status": ex.Response.Status()})
		}
		return Completed()
	}
	body, encErr := res.Encode()
	if encErr != nil {
		return Failed[struct{}](encErr)
	}
	ex.Response.Header().Set("Content-Type", api.ContentType)
	ex.Response.SetStatus(res.Status)
	return ex.Response.WriteWith(ctx, Just(body))
}

// Filter runs next and maps any failure or panic it produces.
func (h *ExceptionHandler) Filter(ex *Exchange, next Handler) *Deferred[struct{}] {
	handled := invoke(func() *Deferred[struct{}] { return next.Handle(ex) })
	return RecoverWith(handled, func(err error) *Deferred[struct{}] {
		return h.HandleError(ex, err)
	})
}

// NotFound answers exchanges that matched no route.
func (h *ExceptionHandler) NotFound() Handler {
	return HandlerFunc(func(ex *Exchange) *Deferred[struct{}] {
		return h.HandleError(ex, errorspkg.NewNoRoute(ex.Request.Method, ex.Request.Path()))
	})
}

// MethodNotAllowed answers exchanges whose path exists under other methods.
func (h *ExceptionHandler) MethodNotAllowed() Handler {
	return HandlerFunc(func(ex *Exchange) *Deferred[struct{}] {
		return h.HandleError(ex, errorspkg.NewMethodNotAllowed(ex.Request.Method))
	})
}

func requestInfo(ex *Exchange) observability.RequestInfo {
	return observability.RequestInfo{
		Stack:         StackName,
		Method:        ex.Request.Method,
		Path:          ex.Request.Path(),
		CorrelationID: CorrelationID(ex),
		Context:       ex.Context(),
	}
}
