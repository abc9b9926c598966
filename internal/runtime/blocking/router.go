package blocking

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/budget-analyzer/service-common/internal/runtime/config"
	"github.com/budget-analyzer/service-common/internal/runtime/logging"
	"github.com/budget-analyzer/service-common/internal/runtime/observability"
)

// Options configures the blocking pipeline.
type Options struct {
	Config config.Config
	Logger logging.ServiceLogger
	// Hooks receive lifecycle events and handled failures.
	Hooks observability.Hooks
	// Tracing opens a span per request when set.
	Tracing *observability.Tracing
}

// MiddlewareRegistration names one stage of the pipeline.
type MiddlewareRegistration struct {
	Name       string
	Middleware func(http.Handler) http.Handler
}

// DefaultMiddlewares returns the pipeline stages in the order they wrap a
// request: tracing, correlation, hooks, logging, panic recovery. The
// correlation stage is always present; logging only when enabled.
func DefaultMiddlewares(opts Options, handler *ExceptionHandler) []MiddlewareRegistration {
	var regs []MiddlewareRegistration
	if opts.Tracing != nil {
		regs = append(regs, MiddlewareRegistration{Name: "tracing", Middleware: TracingFilter(opts.Tracing)})
	}
	regs = append(regs, MiddlewareRegistration{Name: "correlation_id", Middleware: CorrelationIDFilter(opts.Logger)})
	if opts.Hooks.OnRequestStart != nil || opts.Hooks.OnRequestDone != nil {
		regs = append(regs, MiddlewareRegistration{Name: "hooks", Middleware: HooksFilter(opts.Hooks)})
	}
	if opts.Config.HTTPLogging.Enabled {
		regs = append(regs, MiddlewareRegistration{Name: "http_logging", Middleware: LoggingFilter(opts.Config.HTTPLogging, opts.Logger)})
	}
	regs = append(regs, MiddlewareRegistration{Name: "recoverer", Middleware: handler.Recoverer})
	return regs
}

// NewExceptionHandlerFor builds the exception handler matching opts.
func NewExceptionHandlerFor(opts Options) *ExceptionHandler {
	return NewExceptionHandler(opts.Logger, WithHooks(opts.Hooks))
}

// NewRouter returns a chi router with the pipeline installed and unmatched
// routes answered through the exception handler. Routes are added by the
// caller, either as plain chi handlers or through Endpoint.
func NewRouter(opts Options) *Router {
	handler := NewExceptionHandlerFor(opts)
	mux := chi.NewRouter()
	for _, reg := range DefaultMiddlewares(opts, handler) {
		mux.Use(reg.Middleware)
	}
	mux.NotFound(handler.NotFound().ServeHTTP)
	mux.MethodNotAllowed(handler.MethodNotAllowed().ServeHTTP)
	return &Router{Mux: mux, handler: handler}
}

// Router is a chi.Mux bound to the pipeline's exception handler.
type Router struct {
	*chi.Mux
	handler *ExceptionHandler
}

// Handler returns the exception handler used by the router.
func (r *Router) Handler() *ExceptionHandler { return r.handler }

// Endpoint registers an error-returning handler for method and pattern.
func (r *Router) Endpoint(method, pattern string, fn HandlerFunc) {
	r.Mux.Method(method, pattern, r.handler.Handle(fn))
}
