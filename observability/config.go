package observability

import (
	"maps"
	"strings"
	"time"
)

const (
	// EndpointStdout writes telemetry to stdout instead of an OTLP collector.
	EndpointStdout = "stdout"

	// ProtocolHTTP specifies OTLP over HTTP/protobuf.
	ProtocolHTTP = "http"

	// ProtocolGRPC specifies OTLP over gRPC.
	ProtocolGRPC = "grpc"

	// EnvironmentDevelopment is the default environment name.
	EnvironmentDevelopment = "development"

	defaultServiceVersion = "unknown"
)

// BoolPtr returns a pointer to v. Used for optional boolean fields.
func BoolPtr(v bool) *bool {
	return &v
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}

func cloneHeaderMap(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	clone := make(map[string]string, len(headers))
	maps.Copy(clone, headers)
	return clone
}

// Config defines the telemetry exported by a fetchkit process.
type Config struct {
	// Enabled controls whether observability is active.
	// When false, NewProvider returns a no-op provider.
	Enabled bool `koanf:"enabled"`

	Service ServiceConfig `koanf:"service"`

	// Environment is reported as deployment.environment.name.
	Environment string `koanf:"environment"`

	Trace   TraceConfig   `koanf:"trace"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// ServiceConfig identifies the process in traces and metrics.
type ServiceConfig struct {
	// Name is required when observability is enabled.
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
}

// TraceConfig configures the span exporter. Outbound calls made through the
// httpclient default transport become client spans.
type TraceConfig struct {
	// Enabled defaults to true when observability is enabled. nil means unset.
	Enabled  *bool             `koanf:"enabled"`
	Endpoint string            `koanf:"endpoint"`
	Protocol string            `koanf:"protocol"`
	Insecure bool              `koanf:"insecure"`
	Headers  map[string]string `koanf:"headers"`

	// SampleRate is the TraceIDRatioBased fraction. nil defaults to 1.0.
	SampleRate    *float64      `koanf:"sample_rate"`
	BatchTimeout  time.Duration `koanf:"batch_timeout"`
	ExportTimeout time.Duration `koanf:"export_timeout"`
}

// MetricsConfig configures the periodic metric reader and its exporter.
// Protocol, Insecure and Headers fall back to the trace settings when empty.
type MetricsConfig struct {
	Enabled  *bool             `koanf:"enabled"`
	Endpoint string            `koanf:"endpoint"`
	Protocol string            `koanf:"protocol"`
	Insecure *bool             `koanf:"insecure"`
	Headers  map[string]string `koanf:"headers"`

	Interval      time.Duration `koanf:"interval"`
	ExportTimeout time.Duration `koanf:"export_timeout"`
}

// ApplyDefaults fills unset fields. NewProvider calls it on a copy of the
// caller's config.
func (c *Config) ApplyDefaults() {
	if c.Service.Version == "" {
		c.Service.Version = defaultServiceVersion
	}
	if c.Environment == "" {
		c.Environment = EnvironmentDevelopment
	}
	c.applyTraceDefaults()
	c.applyMetricsDefaults()
}

func (c *Config) development() bool {
	return c.Environment == EnvironmentDevelopment
}

func (c *Config) applyTraceDefaults() {
	if c.Trace.Endpoint == "" {
		c.Trace.Endpoint = EndpointStdout
	}
	if c.Enabled && c.Trace.Enabled == nil {
		c.Trace.Enabled = BoolPtr(true)
	}
	if c.Trace.Protocol == "" {
		c.Trace.Protocol = ProtocolHTTP
	}
	if c.Trace.Endpoint == EndpointStdout {
		c.Trace.Insecure = true
	}
	if c.Trace.SampleRate == nil {
		c.Trace.SampleRate = Float64Ptr(1.0)
	}

	// Development exports quickly so spans show up while debugging.
	if c.Trace.BatchTimeout == 0 {
		if c.development() || c.Trace.Endpoint == EndpointStdout {
			c.Trace.BatchTimeout = 500 * time.Millisecond
		} else {
			c.Trace.BatchTimeout = 5 * time.Second
		}
	}
	if c.Trace.ExportTimeout == 0 {
		if c.development() || c.Trace.Endpoint == EndpointStdout {
			c.Trace.ExportTimeout = 10 * time.Second
		} else {
			c.Trace.ExportTimeout = 60 * time.Second
		}
	}
	c.Trace.Headers = cloneHeaderMap(c.Trace.Headers)
}

func (c *Config) applyMetricsDefaults() {
	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = c.Trace.Endpoint
	}
	if c.Enabled && c.Metrics.Enabled == nil {
		c.Metrics.Enabled = BoolPtr(true)
	}
	if c.Metrics.Protocol == "" {
		c.Metrics.Protocol = c.Trace.Protocol
	}
	if c.Metrics.Insecure == nil {
		c.Metrics.Insecure = BoolPtr(c.Trace.Insecure || c.Metrics.Endpoint == EndpointStdout)
	}
	if c.Metrics.Headers == nil {
		c.Metrics.Headers = cloneHeaderMap(c.Trace.Headers)
	} else {
		c.Metrics.Headers = cloneHeaderMap(c.Metrics.Headers)
	}

	if c.Metrics.Interval == 0 {
		if c.development() || c.Metrics.Endpoint == EndpointStdout {
			c.Metrics.Interval = 10 * time.Second
		} else {
			c.Metrics.Interval = 60 * time.Second
		}
	}
	if c.Metrics.ExportTimeout == 0 {
		c.Metrics.ExportTimeout = 30 * time.Second
	}
}

func enabled(b *bool) bool {
	return b != nil && *b
}

// Validate checks the configuration for common errors.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if c.Service.Name == "" {
		return ErrMissingServiceName
	}

	if rate := c.Trace.SampleRate; rate != nil && (*rate < 0.0 || *rate > 1.0) {
		return ErrInvalidSampleRate
	}
	if err := validateExporter(c.Trace.Endpoint, c.Trace.Protocol); err != nil {
		return err
	}
	if !enabled(c.Metrics.Enabled) {
		return nil
	}
	protocol := c.Metrics.Protocol
	if protocol == "" {
		protocol = c.Trace.Protocol
	}
	return validateExporter(c.Metrics.Endpoint, protocol)
}

func validateExporter(endpoint, protocol string) error {
	if endpoint == EndpointStdout || endpoint == "" {
		return nil
	}
	if protocol == "" {
		protocol = ProtocolHTTP
	}
	switch protocol {
	case ProtocolHTTP:
		return nil
	case ProtocolGRPC:
		// gRPC endpoints must be host:port.
		if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
			return ErrInvalidEndpointFormat
		}
		return nil
	default:
		return ErrInvalidProtocol
	}
}
