package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/budget-analyzer/service-common/internal/runtime/logging"
)

// Stack names the request pipeline a service runs. It is chosen once at
// startup and never changes afterwards.
type Stack string

const (
	// StackBlocking runs each request on one goroutine from start to finish.
	StackBlocking Stack = "blocking"
	// StackStreaming runs requests as chains of deferred stages over
	// at-most-once body streams.
	StackStreaming Stack = "streaming"
)

// DefaultMaxBodyBytes bounds logged bodies when configuration does not.
const DefaultMaxBodyBytes = 10000

// HTTPLoggingConfig controls the request/response logging filter. The
// correlation filter is not configurable and always runs.
type HTTPLoggingConfig struct {
	// Enabled turns the logging filter on. Off by default.
	Enabled bool

	IncludeRequestBody  bool
	IncludeResponseBody bool
	IncludeHeaders      bool

	// SensitiveHeaders replaces the default masked header list when non-nil.
	SensitiveHeaders []string

	// MaxBodyBytes is the number of body bytes retained for logging. Longer
	// bodies are cut and annotated with the number of omitted bytes.
	MaxBodyBytes int

	// LogErrorsOnly suppresses log lines for exchanges that complete with a
	// status below 400.
	LogErrorsOnly bool

	// IncludePatterns restricts logging to matching paths when non-empty.
	// Patterns use doublestar syntax, for example "/api/**".
	IncludePatterns []string
	// ExcludePatterns skips matching paths. Exclusion wins over inclusion.
	ExcludePatterns []string
}

// DefaultHTTPLogging returns the logging defaults: disabled, headers on,
// bodies off, 10000 byte limit, no path scoping.
func DefaultHTTPLogging() HTTPLoggingConfig {
	return HTTPLoggingConfig{
		IncludeHeaders: true,
		MaxBodyBytes:   DefaultMaxBodyBytes,
	}
}

// Headers returns the configured sensitive header list, falling back to the
// default list.
func (c HTTPLoggingConfig) Headers() []string {
	if c.SensitiveHeaders == nil {
		return logging.DefaultSensitiveHeaders
	}
	return c.SensitiveHeaders
}

// ShouldLog reports whether requests to path are in logging scope.
func (c HTTPLoggingConfig) ShouldLog(path string) bool {
	if matchAny(c.ExcludePatterns, path) {
		return false
	}
	if len(c.IncludePatterns) == 0 {
		return true
	}
	return matchAny(c.IncludePatterns, path)
}

func matchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, path); err == nil && ok {
			return true
		}
	}
	return false
}

func (c HTTPLoggingConfig) validate() []error {
	var errs []error
	if c.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("http-logging: max body bytes cannot be negative (got %d)", c.MaxBodyBytes))
	}
	for _, p := range c.IncludePatterns {
		if !doublestar.ValidatePattern(p) {
			errs = append(errs, fmt.Errorf("http-logging: invalid include pattern %q", p))
		}
	}
	for _, p := range c.ExcludePatterns {
		if !doublestar.ValidatePattern(p) {
			errs = append(errs, fmt.Errorf("http-logging: invalid exclude pattern %q", p))
		}
	}
	for _, h := range c.SensitiveHeaders {
		if strings.TrimSpace(h) == "" {
			errs = append(errs, errors.New("http-logging: sensitive header names cannot be blank"))
			break
		}
	}
	return errs
}

// Config groups the settings shared by every service built on this module.
type Config struct {
	// ServiceName labels metrics and published failure events.
	ServiceName string

	// Stack selects the request pipeline. Empty means blocking.
	Stack Stack

	HTTPLogging HTTPLoggingConfig

	// Metrics configuration.
	MetricsEnabled   bool
	MetricsNamespace string

	// TracingEnabled annotates the active OpenTelemetry span with the
	// correlation ID and handled failures.
	TracingEnabled bool

	// FailureEventsTopic receives a message for each handled failure when a
	// publisher is supplied. Empty disables publishing.
	FailureEventsTopic string
}

// Default returns a Config with every default applied.
func Default() Config {
	return Config{
		Stack:            StackBlocking,
		HTTPLogging:      DefaultHTTPLogging(),
		MetricsNamespace: "service",
	}
}

// ResolvedStack returns the configured stack, treating empty as blocking.
func (c Config) ResolvedStack() Stack {
	if c.Stack == "" {
		return StackBlocking
	}
	return Stack(strings.ToLower(string(c.Stack)))
}

func (c Config) String() string {
	type configAlias Config
	return fmt.Sprintf("%+v", configAlias(c))
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.ResolvedStack() {
	case StackBlocking, StackStreaming:
	default:
		errs = append(errs, fmt.Errorf("stack: unsupported value %q (want %q or %q)", c.Stack, StackBlocking, StackStreaming))
	}
	errs = append(errs, c.HTTPLogging.validate()...)
	if c.MetricsEnabled && c.MetricsNamespace == "" {
		errs = append(errs, errors.New("metrics: namespace is required when metrics are enabled"))
	}

	return errors.Join(errs...)
}

// ValidateConfig is a convenience function to validate a config pointer.
func ValidateConfig(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	return c.Validate()
}
