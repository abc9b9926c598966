package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/budget-analyzer/service-common/internal/runtime/blocking"
	configpkg "github.com/budget-analyzer/service-common/internal/runtime/config"
	errspkg "github.com/budget-analyzer/service-common/internal/runtime/errors"
	"github.com/budget-analyzer/service-common/internal/runtime/events"
	loggingpkg "github.com/budget-analyzer/service-common/internal/runtime/logging"
	"github.com/budget-analyzer/service-common/internal/runtime/observability"
	"github.com/budget-analyzer/service-common/internal/runtime/streaming"
)

// shutdownTimeout bounds graceful shutdown once the Start context ends.
const shutdownTimeout = 10 * time.Second

// ServiceDependencies carries the collaborators a web stack may use. All of
// them are optional; features backed by a missing one stay off.
type ServiceDependencies struct {
	// Registerer receives the HTTP metrics when metrics are enabled. The
	// default Prometheus registry is used when nil.
	Registerer prometheus.Registerer
	// Gatherer backs MetricsHandler. The default registry is used when nil.
	Gatherer prometheus.Gatherer
	// TracerProvider opens request spans when tracing is enabled. The global
	// provider is used when nil.
	TracerProvider trace.TracerProvider
	// Publisher carries failure events when a topic is configured.
	Publisher message.Publisher
	// Hooks are merged after the built-in ones.
	Hooks observability.Hooks
}

// WebStack is the request pipeline selected for a service at startup. Exactly
// one of Blocking and Streaming is set, matching Stack.
type WebStack struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	Metrics *observability.Metrics
	Events  *events.Publisher

	blocking  *blocking.Router
	streaming *streaming.Router
	gatherer  prometheus.Gatherer
}

// NewWebStack builds the stack named by conf.Stack and panics when the
// configuration or dependencies are unusable. Use TryNewWebStack to handle
// that as an error.
func NewWebStack(conf *configpkg.Config, log loggingpkg.ServiceLogger, deps ServiceDependencies) *WebStack {
	s, err := TryNewWebStack(conf, log, deps)
	if err != nil {
		panic(err)
	}
	return s
}

// TryNewWebStack builds the stack named by conf.Stack. The correlation stage
// is always installed; request logging only when conf.HTTPLogging.Enabled.
func TryNewWebStack(conf *configpkg.Config, log loggingpkg.ServiceLogger, deps ServiceDependencies) (*WebStack, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if err := errspkg.NewConfigValidationError(conf.Validate()); err != nil {
		return nil, err
	}

	log.Info("Creating web stack", loggingpkg.LogFields{
		"stack":  string(conf.ResolvedStack()),
		"config": conf,
	})

	s := &WebStack{Conf: conf, Logger: log, gatherer: deps.Gatherer}
	hooks := observability.LoggingHooks(log)

	if conf.MetricsEnabled {
		metrics, err := observability.NewMetrics(deps.Registerer, conf.MetricsNamespace)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		s.Metrics = metrics
		hooks = hooks.Merge(metrics.Hooks())
	}

	var tracing *observability.Tracing
	if conf.TracingEnabled {
		tracing = observability.NewTracing(deps.TracerProvider)
		hooks = hooks.Merge(tracing.Hooks())
	}

	if conf.FailureEventsTopic != "" {
		pub, err := events.NewPublisher(deps.Publisher, conf.FailureEventsTopic, conf.ServiceName, log)
		if err != nil {
			return nil, fmt.Errorf("failure events: %w", err)
		}
		s.Events = pub
		hooks = hooks.Merge(pub.Hooks())
	}

	hooks = hooks.Merge(deps.Hooks)

	switch conf.ResolvedStack() {
	case configpkg.StackStreaming:
		s.streaming = streaming.NewRouter(streaming.Options{Config: *conf, Logger: log, Hooks: hooks, Tracing: tracing})
	default:
		s.blocking = blocking.NewRouter(blocking.Options{Config: *conf, Logger: log, Hooks: hooks, Tracing: tracing})
	}
	return s, nil
}

// Stack reports which pipeline was built.
func (s *WebStack) Stack() configpkg.Stack {
	if s.streaming != nil {
		return configpkg.StackStreaming
	}
	return configpkg.StackBlocking
}

// Blocking returns the blocking router, or nil for a streaming stack.
func (s *WebStack) Blocking() *blocking.Router { return s.blocking }

// Streaming returns the streaming router, or nil for a blocking stack.
func (s *WebStack) Streaming() *streaming.Router { return s.streaming }

// Handler returns the pipeline as a net/http handler. Routes registered after
// the call are still served.
func (s *WebStack) Handler() http.Handler {
	if s.streaming != nil {
		return s.streaming.HTTPHandler()
	}
	return s.blocking
}

// MetricsHandler exposes the Prometheus metrics.
func (s *WebStack) MetricsHandler() http.Handler {
	return observability.Handler(s.gatherer)
}

// Start serves the stack on addr until ctx is cancelled, then shuts down
// gracefully. When metrics are enabled they are served on /metrics.
func (s *WebStack) Start(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	if s.Metrics != nil {
		mux.Handle("/metrics", s.MetricsHandler())
	}
	mux.Handle("/", s.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": addr, "stack": string(s.Stack())})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.Logger.Error("HTTP server failed", err, loggingpkg.LogFields{"address": addr})
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.Logger.Info("Stopping HTTP server", loggingpkg.LogFields{"address": addr})
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if s.Events != nil {
		if err := s.Events.Wait(shutdownCtx); err != nil {
			s.Logger.Warn("Failure events still in flight at shutdown", loggingpkg.LogFields{"error": err.Error()})
		}
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
