// Package config loads fetchkit settings from defaults, YAML files and
// FETCHKIT_ environment variables, validates them, and converts them into
// the configs of the httpclient, retry and observability packages.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/gaborage/go-fetchkit/httpclient"
	"github.com/gaborage/go-fetchkit/observability"
	"github.com/gaborage/go-fetchkit/retry"
)

const (
	// EnvPrefix marks environment variables read by Load.
	EnvPrefix = "FETCHKIT_"

	// DefaultFile is read by Load when present.
	DefaultFile = "config.yaml"

	// Sections are separated by a double underscore so keys may contain
	// single underscores: FETCHKIT_HTTPCLIENT__MAX_RETRIES=5.
	envNestingSeparator = "__"
)

// Load reads config.yaml and config.<app.env>.yaml from the working
// directory when they exist, then applies environment overrides.
// Priority: environment, then YAML, then defaults.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return nil, err
	}
	if err := loadFile(k, DefaultFile); err != nil {
		return nil, err
	}
	// An env override may select the environment file.
	if err := loadEnv(k); err != nil {
		return nil, err
	}
	if appEnv := k.String("app.env"); appEnv != "" {
		if err := loadFile(k, fmt.Sprintf("config.%s.yaml", appEnv)); err != nil {
			return nil, err
		}
		if err := loadEnv(k); err != nil {
			return nil, err
		}
	}
	return finish(k)
}

// LoadFrom reads the given YAML files in order, later files overriding
// earlier ones, then applies environment overrides. Missing files are skipped.
func LoadFrom(paths ...string) (*Config, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return nil, err
	}
	for _, path := range paths {
		if err := loadFile(k, path); err != nil {
			return nil, err
		}
	}
	if err := loadEnv(k); err != nil {
		return nil, err
	}
	return finish(k)
}

// LoadYAML reads configuration from an in-memory YAML document, then applies
// environment overrides.
func LoadYAML(data []byte) (*Config, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return nil, err
	}
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, NewLoadError("yaml", err)
	}
	if err := loadEnv(k); err != nil {
		return nil, err
	}
	return finish(k)
}

func finish(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, &ConfigError{Category: "load", Field: "config", Message: "failed to unmarshal", Err: err}
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":    "fetchkit",
		"app.version": "v0.0.0",
		"app.env":     EnvDevelopment,

		"log.level":  "info",
		"log.pretty": false,

		"httpclient.timeout":               "30s",
		"httpclient.max_retries":           httpclient.DefaultMaxRetries,
		"httpclient.retry_delay":           httpclient.DefaultRetryDelay.String(),
		"httpclient.log_payloads":          false,
		"httpclient.max_payload_log_bytes": 1024,
		"httpclient.propagate_request_id":  false,
		"httpclient.trace_id_header":       httpclient.HeaderXRequestID,
		"httpclient.enable_w3c_trace":      false,
		"httpclient.rate_limit":            0,
		"httpclient.rate_burst":            0,

		"retry.max_attempts": retry.DefaultMaxAttempts,
		"retry.delay":        retry.DefaultDelay.String(),

		"cache.name": "default",

		"observability.enabled": false,
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return NewLoadError("defaults", err)
	}
	return nil
}

func loadFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return NewLoadError(path, err)
	}
	return nil
}

func loadEnv(k *koanf.Koanf) error {
	provider := env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			return strings.ReplaceAll(key, envNestingSeparator, "."), value
		},
	})
	if err := k.Load(provider, nil); err != nil {
		return NewLoadError("environment", err)
	}
	return nil
}

// HTTPClientConfig converts the httpclient section. Configured default headers
// are added on top of Content-Type: application/json.
func (c *Config) HTTPClientConfig() *httpclient.Config {
	hc := c.HTTPClient
	cfg := &httpclient.Config{
		Timeout:            hc.Timeout,
		MaxRetries:         hc.MaxRetries,
		RetryDelay:         hc.RetryDelay,
		LogPayloads:        hc.LogPayloads,
		MaxPayloadLogBytes: hc.MaxPayloadLogBytes,
		PropagateRequestID: hc.PropagateRequestID,
		TraceIDHeader:      hc.TraceIDHeader,
		EnableW3CTrace:     hc.EnableW3CTrace,
		RateLimit:          hc.RateLimit,
		RateBurst:          hc.RateBurst,
	}
	if len(hc.DefaultHeaders) > 0 {
		headers := httpclient.DefaultRequestOptions().Headers
		maps.Copy(headers, hc.DefaultHeaders)
		cfg.DefaultHeaders = headers
	}
	if hc.BasicAuth.Username != "" {
		cfg.BasicAuth = &httpclient.BasicAuth{
			Username: hc.BasicAuth.Username,
			Password: hc.BasicAuth.Password,
		}
	}
	return cfg
}

// RetryOptions converts the retry section.
func (c *Config) RetryOptions() []retry.Option {
	return []retry.Option{
		retry.WithMaxAttempts(c.Retry.MaxAttempts),
		retry.WithDelay(c.Retry.Delay),
	}
}

// ObservabilityConfig returns the observability section with the service name
// and environment taken from the app section when unset.
func (c *Config) ObservabilityConfig() *observability.Config {
	oc := c.Observability
	if oc.Service.Name == "" {
		oc.Service.Name = c.App.Name
	}
	if oc.Service.Version == "" {
		oc.Service.Version = c.App.Version
	}
	if oc.Environment == "" {
		oc.Environment = c.App.Env
	}
	return &oc
}
