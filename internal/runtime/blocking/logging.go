package blocking

import (
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

// LoggingFilter logs each in-scope request before the handler runs and its
// response once the handler returns. With LogErrorsOnly both lines are held
// back until the status is known and written only for statuses of 400 and
// above.
func LoggingFilter(cfg config.HTTPLoggingConfig, logger logging.ServiceLogger) func(http.Handler) http.Handler {
	sensitive := cfg.Headers()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.ShouldLog(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			log := logging.FromContext(r.Context(), logger)
			if log == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()

			var reqBody string
			if cfg.IncludeRequestBody {
				cached := NewCachingRequest(r)
				if cached.Err() != nil {
					log.Debug("Request body read failed", logging.LogFields{"error": cached.Err().Error()})
				}
				reqBody = logging.FormatBody(cached.Body(), len(cached.Body()), r.Header.Get("Content-Type"), cfg.MaxBodyBytes)
			}
			requestLine := logging.FormatLogMessage(requestLogPrefix, requestDetails(r, cfg.IncludeHeaders, sensitive), reqBody)
			if !cfg.LogErrorsOnly {
				log.Info(requestLine, nil)
			}

			limit := 0
			if cfg.IncludeResponseBody {
				limit = cfg.MaxBodyBytes
			}
			cw := NewCachingResponseWriter(w, limit)
			defer cw.Release()

			next.ServeHTTP(cw, r)

			status := statusOrOK(cw.Status())
			if cfg.LogErrorsOnly {
				if status < http.StatusBadRequest {
					return
				}
				log.Info(requestLine, nil)
			}

			details := map[string]any{
				"status":     status,
				"durationMs": time.Since(start).Milliseconds(),
			}
			if cfg.IncludeHeaders {
				details["headers"] = logging.MaskHeaders(cw.Header(), sensitive)
			}
			var respBody string
			if cfg.IncludeResponseBody {
				respBody = logging.FormatBody(cw.Body(), cw.Total(), cw.Header().Get("Content-Type"), cfg.MaxBodyBytes)
			}
			log.Info(logging.FormatLogMessage(responseLogPrefix, details, respBody), nil)
		})
	}
}

func requestDetails(r *http.Request, includeHeaders bool, sensitive []string) map[string]any {
	details := map[string]any{
		"method":   r.Method,
		"uri":      r.URL.Path,
		"clientIp": clientIP(r.RemoteAddr),
	}
	if r.URL.RawQuery != "" {
		details["query"] = r.URL.RawQuery
	}
	if includeHeaders {
		details["headers"] = logging.MaskHeaders(r.Header, sensitive)
	}
	return details
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
