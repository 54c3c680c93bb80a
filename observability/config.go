package observability

import (
	"fmt"
	"maps"
	"strings"
	"time"
)

const (
	// EndpointStdout is a special endpoint value that outputs to stdout (for local development).
	EndpointStdout = "stdout"

	// ProtocolHTTP specifies OTLP over HTTP/protobuf.
	ProtocolHTTP = "http"

	// ProtocolGRPC specifies OTLP over gRPC.
	ProtocolGRPC = "grpc"

	// EnvironmentDevelopment is the default environment name.
	EnvironmentDevelopment = "development"
)

// BoolPtr returns a pointer to the provided bool value.
func BoolPtr(v bool) *bool {
	return &v
}

// Float64Ptr returns a pointer to the provided float64 value.
func Float64Ptr(v float64) *float64 {
	return &v
}

// Config defines how dispatcher spans and metrics are exported.
type Config struct {
	// Enabled controls whether observability is active.
	// When false, NewProvider returns a no-op provider.
	Enabled bool `koanf:"enabled" json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	Service     ServiceConfig `koanf:"service" json:"service" yaml:"service" mapstructure:"service"`
	Environment string        `koanf:"environment" json:"environment" yaml:"environment" mapstructure:"environment"`

	Trace   TraceConfig   `koanf:"trace" json:"trace" yaml:"trace" mapstructure:"trace"`
	Metrics MetricsConfig `koanf:"metrics" json:"metrics" yaml:"metrics" mapstructure:"metrics"`
}

// ServiceConfig contains service identification metadata.
type ServiceConfig struct {
	Name    string `koanf:"name" json:"name" yaml:"name" mapstructure:"name"`
	Version string `koanf:"version" json:"version" yaml:"version" mapstructure:"version"`
}

// ExporterConfig selects where a signal is sent.
type ExporterConfig struct {
	// Endpoint is "stdout" or an OTLP endpoint: "host:port" for gRPC,
	// "host:port" or a URL for HTTP.
	Endpoint string `koanf:"endpoint" json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	Protocol string `koanf:"protocol" json:"protocol" yaml:"protocol" mapstructure:"protocol"`
	Insecure bool   `koanf:"insecure" json:"insecure" yaml:"insecure" mapstructure:"insecure"`
	// Headers are sent with every export, typically an ingest key.
	Headers map[string]string `koanf:"headers" json:"-" yaml:"headers" mapstructure:"headers"`
	// ExportTimeout bounds a single export.
	ExportTimeout time.Duration `koanf:"exporttimeout" json:"exporttimeout" yaml:"exporttimeout" mapstructure:"exporttimeout"`
}

// TraceConfig defines configuration for distributed tracing.
type TraceConfig struct {
	// nil = apply default (true when observability is enabled), false = explicitly disabled.
	Enabled  *bool          `koanf:"enabled" json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Exporter ExporterConfig `koanf:"exporter" json:"exporter" yaml:"exporter" mapstructure:"exporter"`
	// SampleRate is the fraction of calls traced, in [0, 1].
	SampleRate   *float64      `koanf:"samplerate" json:"samplerate" yaml:"samplerate" mapstructure:"samplerate"`
	BatchTimeout time.Duration `koanf:"batchtimeout" json:"batchtimeout" yaml:"batchtimeout" mapstructure:"batchtimeout"`
}

// MetricsConfig defines configuration for metrics collection.
type MetricsConfig struct {
	Enabled *bool `koanf:"enabled" json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	// Exporter fields left empty inherit the trace exporter's protocol,
	// insecure flag and headers.
	Exporter ExporterConfig `koanf:"exporter" json:"exporter" yaml:"exporter" mapstructure:"exporter"`
	Interval time.Duration  `koanf:"interval" json:"interval" yaml:"interval" mapstructure:"interval"`
}

// ApplyDefaults sets default values for any config fields that are not specified.
func (c *Config) ApplyDefaults() {
	if c.Service.Version == "" {
		c.Service.Version = "unknown"
	}
	if c.Environment == "" {
		c.Environment = EnvironmentDevelopment
	}

	// Metrics inherit what the user set for traces, before trace defaults apply
	inherited := c.Trace.Exporter

	if c.Enabled && c.Trace.Enabled == nil {
		c.Trace.Enabled = BoolPtr(true)
	}
	applyExporterDefaults(&c.Trace.Exporter, c.Environment)
	if c.Trace.SampleRate == nil {
		c.Trace.SampleRate = Float64Ptr(1.0)
	}
	if c.Trace.BatchTimeout == 0 {
		if c.Environment == EnvironmentDevelopment || c.Trace.Exporter.Endpoint == EndpointStdout {
			c.Trace.BatchTimeout = 500 * time.Millisecond
		} else {
			c.Trace.BatchTimeout = 5 * time.Second
		}
	}

	if c.Enabled && c.Metrics.Enabled == nil {
		c.Metrics.Enabled = BoolPtr(true)
	}
	m := &c.Metrics.Exporter
	if m.Protocol == "" {
		m.Protocol = inherited.Protocol
	}
	if !m.Insecure {
		m.Insecure = inherited.Insecure
	}
	if m.Headers == nil && inherited.Headers != nil {
		m.Headers = maps.Clone(inherited.Headers)
	}
	applyExporterDefaults(m, c.Environment)
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = 10 * time.Second
	}
}

func applyExporterDefaults(e *ExporterConfig, environment string) {
	if e.Endpoint == "" {
		e.Endpoint = EndpointStdout
	}
	if e.Protocol == "" {
		e.Protocol = ProtocolHTTP
	}
	if e.Endpoint == EndpointStdout {
		e.Insecure = true
	}
	if e.ExportTimeout == 0 {
		if environment == EnvironmentDevelopment || e.Endpoint == EndpointStdout {
			e.ExportTimeout = 10 * time.Second
		} else {
			e.ExportTimeout = 60 * time.Second
		}
	}
}

// TraceEnabled reports whether spans are exported.
func (c *Config) TraceEnabled() bool {
	return c.Enabled && c.Trace.Enabled != nil && *c.Trace.Enabled
}

// MetricsEnabled reports whether metrics are exported.
func (c *Config) MetricsEnabled() bool {
	return c.Enabled && c.Metrics.Enabled != nil && *c.Metrics.Enabled
}

// Validate checks the configuration. A disabled configuration is always valid.
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
	if c.Trace.SampleRate != nil && (*c.Trace.SampleRate < 0 || *c.Trace.SampleRate > 1) {
		return ErrInvalidSampleRate
	}
	if err := validateExporter("trace", &c.Trace.Exporter); err != nil {
		return err
	}
	return validateExporter("metrics", &c.Metrics.Exporter)
}

func validateExporter(signal string, e *ExporterConfig) error {
	if e.Endpoint == "" || e.Endpoint == EndpointStdout {
		return nil
	}
	hasScheme := strings.HasPrefix(e.Endpoint, "http://") || strings.HasPrefix(e.Endpoint, "https://")
	switch e.Protocol {
	case ProtocolHTTP, "":
		return nil
	case ProtocolGRPC:
		if hasScheme {
			return fmt.Errorf("%s endpoint %q: grpc expects host:port: %w", signal, e.Endpoint, ErrInvalidEndpointFormat)
		}
		return nil
	default:
		return fmt.Errorf("%s protocol '%s': %w", signal, e.Protocol, ErrInvalidProtocol)
	}
}
