package streaming

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/budget-analyzer/service-common/internal/runtime/config"
	"github.com/budget-analyzer/service-common/internal/runtime/logging"
)

const (
	requestLogPrefix  = "HTTP Request"
	responseLogPrefix = "HTTP Response"
)

// LoggingFilter logs each in-scope exchange. The request body is cached
// before the request line is written so the handler still receives all of
// it; response chunks are copied as they stream out. Cancelling the
// exchange context releases both buffers and skips the response line.
func LoggingFilter(cfg config.HTTPLoggingConfig, logger logging.ServiceLogger) WebFilter {
	sensitive := cfg.Headers()
	return WebFilterFunc(func(ex *Exchange, next Handler) *Deferred[struct{}] {
		if !cfg.ShouldLog(ex.Request.Path()) {
			return next.Handle(ex)
		}
		ctx := ex.Context()
		log := logging.FromContext(ctx, logger)
		if log == nil {
			return next.Handle(ex)
		}
		start := time.Now()

		var cached *CachedBodyRequest
		var capture *CapturingResponse
		downstream := ex
		if cfg.IncludeRequestBody {
			cached = NewCachedBodyRequest(ctx, ex.Request)
			downstream = downstream.Mutate(cached.Request(), nil)
		}
		if cfg.IncludeResponseBody {
			capture = NewCapturingResponse(ex.Response, cfg.MaxBodyBytes)
			downstream = downstream.Mutate(nil, capture)
		}
		release := func() {
			if cached != nil {
				cached.Release()
			}
			if capture != nil {
				capture.Release()
			}
		}
		stop := context.AfterFunc(ctx, release)

		requestLine := requestLogLine(ex.Request, cached, cfg, sensitive)

		var handled *Deferred[struct{}]
		if cfg.LogErrorsOnly {
			handled = next.Handle(downstream)
		} else {
			handled = AndThen(requestLine, func(line string) *Deferred[struct{}] {
				log.Info(line, nil)
				return next.Handle(downstream)
			})
		}

		return AndThen(settled(handled), func(handleErr error) *Deferred[struct{}] {
			if ctx.Err() != nil {
				log.Debug("Exchange cancelled, response not logged", logging.LogFields{"error": ctx.Err().Error()})
				release()
				return finish(handleErr)
			}

			status := statusOrOK(downstream.Response.Status())
			if handleErr != nil && !downstream.Response.Committed() {
				status = http.StatusInternalServerError
			}
			if cfg.LogErrorsOnly && status < http.StatusBadRequest {
				stop()
				release()
				return finish(handleErr)
			}

			details := map[string]any{
				"status":     status,
				"durationMs": time.Since(start).Milliseconds(),
			}
			if cfg.IncludeHeaders {
				details["headers"] = logging.MaskHeaders(ex.Response.Header(), sensitive)
			}
			var respBody string
			if capture != nil {
				respBody = logging.FormatBody(capture.Body(), capture.Total(), ex.Response.Header().Get("Content-Type"), cfg.MaxBodyBytes)
			}
			responseLine := logging.FormatLogMessage(responseLogPrefix, details, respBody)

			var pending *Deferred[struct{}]
			if cfg.LogErrorsOnly {
				pending = Then(requestLine, func(line string) (struct{}, error) {
					log.Info(line, nil)
					log.Info(responseLine, nil)
					return struct{}{}, nil
				})
			} else {
				log.Info(responseLine, nil)
				pending = Completed()
			}
			return AndThen(settled(pending), func(error) *Deferred[struct{}] {
				stop()
				release()
				return finish(handleErr)
			})
		})
	})
}

// requestLogLine renders the request line, waiting for the cached body when
// one is logged. A body that cannot be read is logged as empty.
func requestLogLine(req *Request, cached *CachedBodyRequest, cfg config.HTTPLoggingConfig, sensitive []string) *Deferred[string] {
	details := requestDetails(req, cfg.IncludeHeaders, sensitive)
	if cached == nil {
		return Resolved(logging.FormatLogMessage(requestLogPrefix, details, ""))
	}
	body := Recover(cached.CachedBodyAsString(cfg.MaxBodyBytes), func(error) (string, error) {
		return "", nil
	})
	return Then(body, func(b string) (string, error) {
		return logging.FormatLogMessage(requestLogPrefix, details, b), nil
	})
}

func requestDetails(req *Request, includeHeaders bool, sensitive []string) map[string]any {
	details := map[string]any{
		"method":   req.Method,
		"uri":      req.Path(),
		"clientIp": clientIP(req.RemoteAddr),
	}
	if req.URL != nil && req.URL.RawQuery != "" {
		details["query"] = req.URL.RawQuery
	}
	if includeHeaders {
		details["headers"] = logging.MaskHeaders(req.Header, sensitive)
	}
	return details
}

// settled turns the outcome of d into a value so cleanup can run on both
// paths.
func settled[T any](d *Deferred[T]) *Deferred[error] {
	return Recover(Then(d, func(T) (error, error) { return nil, nil }), func(err error) (error, error) {
		return err, nil
	})
}

func finish(err error) *Deferred[struct{}] {
	if err != nil {
		return Failed[struct{}](err)
	}
	return Completed()
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func statusOrOK(status int) int {
	if status == 0 {
		return http.StatusOK
	}
	return status
}
