// Package observability reports request lifecycle events to hooks,
// Prometheus and OpenTelemetry.
package observability

import (
	"context"
	"time"

	"github.com/budget-analyzer/service-common/internal/runtime/api"
	"github.com/budget-analyzer/service-common/internal/runtime/logging"
)

// RequestInfo describes one exchange to the hooks.
type RequestInfo struct {
	// Stack is "blocking" or "streaming".
	Stack         string
	Method        string
	Path          string
	CorrelationID string
	// Context is the request context.
	Context   context.Context
	StartedAt time.Time
	// Duration and Status are only set in OnRequestDone and OnRequestError.
	Duration time.Duration
	Status   int
}

// Hooks defines callbacks for request lifecycle events. All hooks are
// optional.
type Hooks struct {
	// OnRequestStart is called after the correlation ID is established and
	// before the handler runs.
	OnRequestStart func(info RequestInfo)

	// OnRequestDone is called once the response status is known, for every
	// exchange that was not cancelled.
	OnRequestDone func(info RequestInfo)

	// OnRequestError is called by the exception handlers for every handled
	// failure, before the error response is written.
	OnRequestError func(info RequestInfo, res api.Resolution)
}

// Merge combines two Hooks. The hooks from other run after the hooks from h.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		OnRequestStart: chainInfo(h.OnRequestStart, other.OnRequestStart),
		OnRequestDone:  chainInfo(h.OnRequestDone, other.OnRequestDone),
		OnRequestError: chainError(h.OnRequestError, other.OnRequestError),
	}
}

// Start invokes OnRequestStart when set.
func (h Hooks) Start(info RequestInfo) {
	if h.OnRequestStart != nil {
		h.OnRequestStart(info)
	}
}

// Done invokes OnRequestDone when set.
func (h Hooks) Done(info RequestInfo) {
	if h.OnRequestDone != nil {
		h.OnRequestDone(info)
	}
}

// Error invokes OnRequestError when set.
func (h Hooks) Error(info RequestInfo, res api.Resolution) {
	if h.OnRequestError != nil {
		h.OnRequestError(info, res)
	}
}

func chainInfo(a, b func(RequestInfo)) func(RequestInfo) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(info RequestInfo) {
		a(info)
		b(info)
	}
}

func chainError(a, b func(RequestInfo, api.Resolution)) func(RequestInfo, api.Resolution) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(info RequestInfo, res api.Resolution) {
		a(info, res)
		b(info, res)
	}
}

// LoggingHooks returns hooks that log lifecycle events at debug level.
// Handled failures are already logged at warn by the exception handlers.
func LoggingHooks(logger logging.ServiceLogger) Hooks {
	return Hooks{
		OnRequestStart: func(info RequestInfo) {
			logging.FromContext(info.Context, logger).Debug("Request started", logging.LogFields{
				"stack":  info.Stack,
				"method": info.Method,
				"path":   info.Path,
			})
		},
		OnRequestDone: func(info RequestInfo) {
			logging.FromContext(info.Context, logger).Debug("Request completed", logging.LogFields{
				"stack":       info.Stack,
				"method":      info.Method,
				"path":        info.Path,
				"status":      info.Status,
				"duration_ms": info.Duration.Milliseconds(),
			})
		},
	}
}

// AlertingHooks returns hooks that call alertFunc for server-side failures.
func AlertingHooks(alertFunc func(info RequestInfo, res api.Resolution)) Hooks {
	return Hooks{
		OnRequestError: func(info RequestInfo, res api.Resolution) {
			if res.Status >= 500 {
				alertFunc(info, res)
			}
		},
	}
}
