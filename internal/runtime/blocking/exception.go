package blocking

import (
	"errors"
	"net/http"

	"github.com/budget-analyzer/service-common/internal/runtime/api"
	errorspkg "github.com/budget-analyzer/service-common/internal/runtime/errors"
	"github.com/budget-analyzer/service-common/internal/runtime/logging"
	"github.com/budget-analyzer/service-common/internal/runtime/observability"
)

// StackName labels the blocking pipeline in hooks and metrics.
const StackName = "blocking"

// HandlerFunc is an http handler that reports failure by returning it.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// ExceptionHandler turns failures into error responses for handlers running
// on the request goroutine.
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
// the request-scoped logger when one is bound.
func NewExceptionHandler(logger logging.ServiceLogger, opts ...ExceptionHandlerOption) *ExceptionHandler {
	h := &ExceptionHandler{logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleError logs err at warn level and writes its error response. When the
// response is already committed only the log line is written. When the client
// is gone only a debug line is written.
func (h *ExceptionHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	log := logging.FromContext(r.Context(), h.logger)
	if r.Context().Err() != nil {
		if log != nil {
			log.Debug("Request cancelled, error response dropped", logging.LogFields{"error": err.Error()})
		}
		return
	}

	res := h.Resolve(err)
	api.LogException(log, res)
	h.hooks.Error(requestInfo(r), res)

	if cw, ok := w.(*CachingResponseWriter); ok && cw.Committed() {
		if log == nil {
			return
		}
		log.Debug("Response already committed, error body dropped", logging.LogFields{"status": cw.Status()})
		return
	}
	if writeErr := res.Write(w); writeErr != nil && log != nil {
		log.Debug("Error response write failed", logging.LogFields{"error": writeErr.Error()})
	}
}

// Handle adapts fn to http.Handler, routing returned errors and panics
// through HandleError.
func (h *ExceptionHandler) Handle(fn HandlerFunc) http.Handler {
	return h.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cw := trackCommit(w)
		if err := fn(cw, r); err != nil {
			h.HandleError(cw, r, err)
		}
	}))
}

// Recoverer converts panics raised by next into the internal error response.
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func (h *ExceptionHandler) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cw := trackCommit(w)
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}
			h.HandleError(cw, r, errorspkg.FromPanic(rec))
		}()
		next.ServeHTTP(cw, r)
	})
}

// NotFound answers requests that matched no route.
func (h *ExceptionHandler) NotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.HandleError(w, r, errorspkg.NewNoRoute(r.Method, r.URL.Path))
	})
}

// MethodNotAllowed answers requests whose path exists under other methods.
func (h *ExceptionHandler) MethodNotAllowed() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.HandleError(w, r, errorspkg.NewMethodNotAllowed(r.Method))
	})
}

func trackCommit(w http.ResponseWriter) *CachingResponseWriter {
	if cw, ok := w.(*CachingResponseWriter); ok {
		return cw
	}
	return NewCachingResponseWriter(w, 0)
}

func requestInfo(r *http.Request) observability.RequestInfo {
	return observability.RequestInfo{
		Stack:         StackName,
		Method:        r.Method,
		Path:          r.URL.Path,
		CorrelationID: CorrelationID(r),
		Context:       r.Context(),
	}
}
