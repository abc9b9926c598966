package streaming

import (
	"net/http"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/budget-analyzer/service-common/internal/runtime/config"
	"github.com/budget-analyzer/service-common/internal/runtime/logging"
	"github.com/budget-analyzer/service-common/internal/runtime/observability"
)

// Options configures the streaming pipeline.
type Options struct {
	Config config.Config
	Logger logging.ServiceLogger
	// Hooks receive lifecycle events and handled failures.
	Hooks observability.Hooks
	// Tracing opens a span per exchange when set.
	Tracing *observability.Tracing
	// ChunkSize is the request body read size; DefaultChunkSize when zero.
	ChunkSize int
}

// FilterRegistration names one stage of the pipeline.
type FilterRegistration struct {
	Name   string
	Filter WebFilter
}

// DefaultFilters returns the pipeline stages in the order they see an
// exchange: tracing, correlation, hooks, logging, exception mapping. The
// correlation stage is always present; logging only when enabled.
func DefaultFilters(opts Options, handler *ExceptionHandler) []FilterRegistration {
	var regs []FilterRegistration
	if opts.Tracing != nil {
		regs = append(regs, FilterRegistration{Name: "tracing", Filter: TracingFilter(opts.Tracing)})
	}
	regs = append(regs, FilterRegistration{Name: "correlation_id", Filter: CorrelationIDFilter(opts.Logger)})
	if opts.Hooks.OnRequestStart != nil || opts.Hooks.OnRequestDone != nil {
		regs = append(regs, FilterRegistration{Name: "hooks", Filter: HooksFilter(opts.Hooks)})
	}
	if opts.Config.HTTPLogging.Enabled {
		regs = append(regs, FilterRegistration{Name: "http_logging", Filter: LoggingFilter(opts.Config.HTTPLogging, opts.Logger)})
	}
	regs = append(regs, FilterRegistration{Name: "exception_handler", Filter: handler})
	return regs
}

// NewExceptionHandlerFor builds the exception handler matching opts.
func NewExceptionHandlerFor(opts Options) *ExceptionHandler {
	return NewExceptionHandler(opts.Logger, WithHooks(opts.Hooks))
}

type route struct {
	method  string
	pattern string
	handler Handler
}

// Router dispatches exchanges by method and path. Patterns use doublestar
// syntax, so "/users/*" matches one segment and "/files/**" any depth.
// Routes are tried in registration order.
type Router struct {
	opts    Options
	handler *ExceptionHandler

	mu     sync.RWMutex
	routes []route
}

// NewRouter returns an empty router whose unmatched exchanges are answered
// through the pipeline's exception handler.
func NewRouter(opts Options) *Router {
	return &Router{opts: opts, handler: NewExceptionHandlerFor(opts)}
}

// Handler returns the exception handler used by the router.
func (r *Router) Handler() *ExceptionHandler { return r.handler }

// Route registers h for method and pattern.
func (r *Router) Route(method, pattern string, h Handler) error {
	if !doublestar.ValidatePattern(pattern) {
		return doublestar.ErrBadPattern
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route{method: strings.ToUpper(method), pattern: pattern, handler: h})
	return nil
}

// Endpoint is Route for a HandlerFunc. It panics on an invalid pattern, the
// way route registration does in net/http.
func (r *Router) Endpoint(method, pattern string, fn HandlerFunc) {
	if err := r.Route(method, pattern, fn); err != nil {
		panic("servicecommon: invalid route pattern " + pattern)
	}
}

// Handle dispatches ex to the first matching route.
func (r *Router) Handle(ex *Exchange) *Deferred[struct{}] {
	path := ex.Request.Path()
	pathMatched := false

	r.mu.RLock()
	var target Handler
	for _, rt := range r.routes {
		if ok, _ := doublestar.Match(rt.pattern, path); !ok {
			continue
		}
		pathMatched = true
		if rt.method == ex.Request.Method {
			target = rt.handler
			break
		}
	}
	r.mu.RUnlock()

	switch {
	case target != nil:
		return target.Handle(ex)
	case pathMatched:
		return r.handler.MethodNotAllowed().Handle(ex)
	default:
		return r.handler.NotFound().Handle(ex)
	}
}

// HTTPHandler returns the router behind the full pipeline, adapted to
// net/http.
func (r *Router) HTTPHandler() http.Handler {
	var filters []WebFilter
	for _, reg := range DefaultFilters(r.opts, r.handler) {
		filters = append(filters, reg.Filter)
	}
	return NewHandler(Chain(r, filters...),
		WithChunkSize(r.opts.ChunkSize),
		WithAdapterLogger(r.opts.Logger),
	)
}
