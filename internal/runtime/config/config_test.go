package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budget-analyzer/service-common/internal/runtime/logging"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, StackBlocking, cfg.Stack)
	assert.False(t, cfg.HTTPLogging.Enabled)
	assert.True(t, cfg.HTTPLogging.IncludeHeaders)
	assert.False(t, cfg.HTTPLogging.IncludeRequestBody)
	assert.Equal(t, DefaultMaxBodyBytes, cfg.HTTPLogging.MaxBodyBytes)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty stack means blocking", func(c *Config) { c.Stack = "" }, ""},
		{"streaming", func(c *Config) { c.Stack = StackStreaming }, ""},
		{"upper case stack", func(c *Config) { c.Stack = "STREAMING" }, ""},
		{"unknown stack", func(c *Config) { c.Stack = "servlet" }, "stack: unsupported value"},
		{"negative body limit", func(c *Config) { c.HTTPLogging.MaxBodyBytes = -1 }, "max body bytes cannot be negative"},
		{"bad include", func(c *Config) { c.HTTPLogging.IncludePatterns = []string{"/api/["} }, "invalid include pattern"},
		{"bad exclude", func(c *Config) { c.HTTPLogging.ExcludePatterns = []string{"/x/{a"} }, "invalid exclude pattern"},
		{"blank header", func(c *Config) { c.HTTPLogging.SensitiveHeaders = []string{" "} }, "cannot be blank"},
		{"metrics without namespace", func(c *Config) {
			c.MetricsEnabled = true
			c.MetricsNamespace = ""
		}, "namespace is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Stack = "nope"
	cfg.HTTPLogging.MaxBodyBytes = -5
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stack")
	assert.Contains(t, err.Error(), "max body bytes")
}

func TestValidateConfigNil(t *testing.T) {
	assert.EqualError(t, ValidateConfig(nil), "config is nil")
}

func TestShouldLog(t *testing.T) {
	tests := []struct {
		name    string
		include []string
		exclude []string
		path    string
		want    bool
	}{
		{"no patterns", nil, nil, "/anything", true},
		{"included", []string{"/api/**"}, nil, "/api/items/1", true},
		{"not included", []string{"/api/**"}, nil, "/health", false},
		{"excluded", nil, []string{"/actuator/**"}, "/actuator/health", false},
		{"exclude wins", []string{"/api/**"}, []string{"/api/internal/**"}, "/api/internal/x", false},
		{"include with sibling exclude", []string{"/api/**"}, []string{"/api/internal/**"}, "/api/public", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := HTTPLoggingConfig{IncludePatterns: tt.include, ExcludePatterns: tt.exclude}
			assert.Equal(t, tt.want, c.ShouldLog(tt.path))
		})
	}
}

func TestHeadersFallsBackToDefaults(t *testing.T) {
	assert.Equal(t, logging.DefaultSensitiveHeaders, HTTPLoggingConfig{}.Headers())
	custom := []string{"X-Secret"}
	assert.Equal(t, custom, HTTPLoggingConfig{SensitiveHeaders: custom}.Headers())
}

func TestConfigString(t *testing.T) {
	cfg := Default()
	cfg.ServiceName = "ledger"
	s := cfg.String()
	assert.True(t, strings.Contains(s, "ledger"), s)
	assert.True(t, strings.Contains(s, "MaxBodyBytes:10000"), s)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "service.yaml")
	yaml := `
budgetanalyzer:
  service:
    name: ledger
    stack: streaming
    http-logging:
      enabled: true
      include-request-body: true
      max-body-bytes: 512
      log-errors-only: true
      sensitive-headers:
        - X-Tenant-Secret
      include-patterns:
        - /api/**
      exclude-patterns:
        - /api/health
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "ledger", cfg.ServiceName)
	assert.Equal(t, StackStreaming, cfg.Stack)
	assert.True(t, cfg.HTTPLogging.Enabled)
	assert.True(t, cfg.HTTPLogging.IncludeRequestBody)
	assert.False(t, cfg.HTTPLogging.IncludeResponseBody)
	assert.True(t, cfg.HTTPLogging.IncludeHeaders, "default preserved")
	assert.Equal(t, 512, cfg.HTTPLogging.MaxBodyBytes)
	assert.True(t, cfg.HTTPLogging.LogErrorsOnly)
	assert.Equal(t, []string{"X-Tenant-Secret"}, cfg.HTTPLogging.SensitiveHeaders)
	assert.Equal(t, []string{"/api/**"}, cfg.HTTPLogging.IncludePatterns)
	assert.Equal(t, []string{"/api/health"}, cfg.HTTPLogging.ExcludePatterns)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SVC_BUDGETANALYZER_SERVICE_HTTP_LOGGING_ENABLED", "true")
	t.Setenv("SVC_BUDGETANALYZER_SERVICE_HTTP_LOGGING_MAX_BODY_BYTES", "64")
	t.Setenv("SVC_BUDGETANALYZER_SERVICE_HTTP_LOGGING_EXCLUDE_PATTERNS", "/metrics, /health/**")

	cfg, err := Load("", "SVC")
	require.NoError(t, err)

	assert.True(t, cfg.HTTPLogging.Enabled)
	assert.Equal(t, 64, cfg.HTTPLogging.MaxBodyBytes)
	assert.Equal(t, []string{"/metrics", "/health/**"}, cfg.HTTPLogging.ExcludePatterns)
	assert.Nil(t, cfg.HTTPLogging.IncludePatterns)
	assert.Equal(t, StackBlocking, cfg.Stack)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("BAD_BUDGETANALYZER_SERVICE_STACK", "servlet")
	_, err := Load("", "BAD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stack")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.Error(t, err)
}
