package config

import (
	"time"

	"github.com/gaborage/go-fetchkit/observability"
)

// Config is the full fetchkit configuration. Sections map to the packages
// they configure.
type Config struct {
	App           AppConfig            `koanf:"app" json:"app" yaml:"app"`
	Log           LogConfig            `koanf:"log" json:"log" yaml:"log"`
	HTTPClient    ClientConfig         `koanf:"httpclient" json:"httpclient" yaml:"httpclient"`
	Retry         RetryConfig          `koanf:"retry" json:"retry" yaml:"retry"`
	Cache         CacheConfig          `koanf:"cache" json:"cache" yaml:"cache"`
	Observability observability.Config `koanf:"observability" json:"observability" yaml:"observability"`
}

// AppConfig identifies the running process.
type AppConfig struct {
	Name    string `koanf:"name" json:"name" yaml:"name" validate:"required"`
	Version string `koanf:"version" json:"version" yaml:"version"`
	Env     string `koanf:"env" json:"env" yaml:"env" validate:"oneof=development staging production"`
}

// LogConfig configures logger.New.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}

// ClientConfig holds httpclient settings. See httpclient.Config for the
// meaning of each field.
type ClientConfig struct {
	Timeout            time.Duration     `koanf:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0"`
	MaxRetries         int               `koanf:"max_retries" json:"max_retries" yaml:"max_retries" validate:"gte=0"`
	RetryDelay         time.Duration     `koanf:"retry_delay" json:"retry_delay" yaml:"retry_delay" validate:"gte=0"`
	DefaultHeaders     map[string]string `koanf:"default_headers" json:"default_headers" yaml:"default_headers"`
	BasicAuth          BasicAuthConfig   `koanf:"basic_auth" json:"basic_auth" yaml:"basic_auth"`
	LogPayloads        bool              `koanf:"log_payloads" json:"log_payloads" yaml:"log_payloads"`
	MaxPayloadLogBytes int               `koanf:"max_payload_log_bytes" json:"max_payload_log_bytes" yaml:"max_payload_log_bytes" validate:"gte=0"`
	PropagateRequestID bool              `koanf:"propagate_request_id" json:"propagate_request_id" yaml:"propagate_request_id"`
	TraceIDHeader      string            `koanf:"trace_id_header" json:"trace_id_header" yaml:"trace_id_header"`
	EnableW3CTrace     bool              `koanf:"enable_w3c_trace" json:"enable_w3c_trace" yaml:"enable_w3c_trace"`
	RateLimit          float64           `koanf:"rate_limit" json:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
	RateBurst          int               `koanf:"rate_burst" json:"rate_burst" yaml:"rate_burst" validate:"gte=0"`
}

// BasicAuthConfig is applied to every call when Username is set.
type BasicAuthConfig struct {
	Username string `koanf:"username" json:"username" yaml:"username"`
	Password string `koanf:"password" json:"-" yaml:"password"`
}

// RetryConfig configures standalone retry policies.
type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts" json:"max_attempts" yaml:"max_attempts" validate:"gte=1"`
	Delay       time.Duration `koanf:"delay" json:"delay" yaml:"delay" validate:"gte=0"`
}

// CacheConfig names the cache for logs and metrics.
type CacheConfig struct {
	Name string `koanf:"name" json:"name" yaml:"name"`
}
