package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// KeyPrefix is the configuration namespace shared by all services.
const KeyPrefix = "budgetanalyzer.service"

const loggingPrefix = KeyPrefix + ".http-logging"

// Load reads configuration from path (YAML, JSON or TOML, selected by file
// extension) and from environment variables. An empty path reads the
// environment only. Environment names are derived from the key with dots and
// dashes replaced by underscores, prefixed by envPrefix when it is set:
// BUDGETANALYZER_SERVICE_HTTP_LOGGING_ENABLED=true.
//
// List values given through the environment are comma separated.
func Load(path, envPrefix string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if envPrefix != "" {
		v.SetEnvPrefix(envPrefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyPrefix+".name", d.ServiceName)
	v.SetDefault(KeyPrefix+".stack", string(d.Stack))
	v.SetDefault(KeyPrefix+".metrics.enabled", d.MetricsEnabled)
	v.SetDefault(KeyPrefix+".metrics.namespace", d.MetricsNamespace)
	v.SetDefault(KeyPrefix+".tracing.enabled", d.TracingEnabled)
	v.SetDefault(KeyPrefix+".failure-events.topic", d.FailureEventsTopic)

	l := d.HTTPLogging
	v.SetDefault(loggingPrefix+".enabled", l.Enabled)
	v.SetDefault(loggingPrefix+".include-request-body", l.IncludeRequestBody)
	v.SetDefault(loggingPrefix+".include-response-body", l.IncludeResponseBody)
	v.SetDefault(loggingPrefix+".include-headers", l.IncludeHeaders)
	v.SetDefault(loggingPrefix+".max-body-bytes", l.MaxBodyBytes)
	v.SetDefault(loggingPrefix+".log-errors-only", l.LogErrorsOnly)
}

func fromViper(v *viper.Viper) Config {
	return Config{
		ServiceName:        v.GetString(KeyPrefix + ".name"),
		Stack:              Stack(v.GetString(KeyPrefix + ".stack")),
		MetricsEnabled:     v.GetBool(KeyPrefix + ".metrics.enabled"),
		MetricsNamespace:   v.GetString(KeyPrefix + ".metrics.namespace"),
		TracingEnabled:     v.GetBool(KeyPrefix + ".tracing.enabled"),
		FailureEventsTopic: v.GetString(KeyPrefix + ".failure-events.topic"),
		HTTPLogging: HTTPLoggingConfig{
			Enabled:             v.GetBool(loggingPrefix + ".enabled"),
			IncludeRequestBody:  v.GetBool(loggingPrefix + ".include-request-body"),
			IncludeResponseBody: v.GetBool(loggingPrefix + ".include-response-body"),
			IncludeHeaders:      v.GetBool(loggingPrefix + ".include-headers"),
			SensitiveHeaders:    stringList(v, loggingPrefix+".sensitive-headers"),
			MaxBodyBytes:        v.GetInt(loggingPrefix + ".max-body-bytes"),
			LogErrorsOnly:       v.GetBool(loggingPrefix + ".log-errors-only"),
			IncludePatterns:     stringList(v, loggingPrefix+".include-patterns"),
			ExcludePatterns:     stringList(v, loggingPrefix+".exclude-patterns"),
		},
	}
}

// stringList returns nil for unset keys so callers can tell "not configured"
// from "configured empty".
func stringList(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}
	if raw, ok := v.Get(key).(string); ok {
		out := []string{}
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	out := v.GetStringSlice(key)
	if out == nil {
		out = []string{}
	}
	return out
}
