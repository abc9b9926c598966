package observability

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/budget-analyzer/service-common/internal/runtime/api"
)

// Metrics records request counts, latencies and handled failures.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	handled  *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg under namespace. Registering
// the same namespace twice on one registry reuses the existing collectors.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by stack, method and status.",
		}, []string{"stack", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by stack and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stack", "method"}),
		handled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "handled_errors_total",
			Help:      "Failures turned into error responses, by error type and status.",
		}, []string{"type", "status"}),
	}

	var err error
	if m.requests, err = register(reg, m.requests); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.handled, err = register(reg, m.handled); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Hooks returns hooks feeding m.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnRequestDone: func(info RequestInfo) {
			m.requests.WithLabelValues(info.Stack, info.Method, strconv.Itoa(info.Status)).Inc()
			m.duration.WithLabelValues(info.Stack, info.Method).Observe(info.Duration.Seconds())
		},
		OnRequestError: func(_ RequestInfo, res api.Resolution) {
			m.handled.WithLabelValues(string(res.Type()), strconv.Itoa(res.Status)).Inc()
		},
	}
}

// Handler exposes the metrics gathered by g, or the default registry when g
// is nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
