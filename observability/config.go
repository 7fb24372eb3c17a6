package observability

import (
	"fmt"
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

	// EnvironmentDevelopment is the default environment name for development mode.
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

// Config defines the configuration for observability features.
type Config struct {
	// Enabled controls whether observability is active.
	// When false, all observability operations become no-ops.
	Enabled bool `koanf:"enabled" json:"enabled" yaml:"enabled"`

	Service ServiceConfig `koanf:"service" json:"service" yaml:"service"`

	// Environment indicates the deployment environment (e.g., production, staging, development).
	Environment string `koanf:"environment" json:"environment" yaml:"environment"`

	Trace   TraceConfig   `koanf:"trace" json:"trace" yaml:"trace"`
	Metrics MetricsConfig `koanf:"metrics" json:"metrics" yaml:"metrics"`
}

// ServiceConfig contains service identification metadata.
type ServiceConfig struct {
	// Name identifies the service in traces and metrics.
	// This is required when observability is enabled.
	Name    string `koanf:"name" json:"name" yaml:"name"`
	Version string `koanf:"version" json:"version" yaml:"version"`
}

// TraceConfig defines configuration for distributed tracing.
type TraceConfig struct {
	// Enabled: nil = apply default (true when observability is enabled), false = explicitly disabled.
	Enabled *bool `koanf:"enabled" json:"enabled" yaml:"enabled"`

	// Endpoint is "stdout" or an OTLP endpoint ("localhost:4318" for HTTP, "localhost:4317" for gRPC).
	Endpoint string `koanf:"endpoint" json:"endpoint" yaml:"endpoint"`

	// Protocol is "http" or "grpc". Only used when Endpoint is not "stdout".
	Protocol string `koanf:"protocol" json:"protocol" yaml:"protocol"`

	// Insecure disables TLS for OTLP endpoints.
	Insecure bool `koanf:"insecure" json:"insecure" yaml:"insecure"`

	Headers map[string]string `koanf:"headers" json:"headers" yaml:"headers"`

	// SampleRate is the fraction of traces recorded, 0.0 to 1.0. nil defaults to 1.0.
	SampleRate *float64 `koanf:"samplerate" json:"samplerate" yaml:"samplerate"`

	BatchTimeout  time.Duration `koanf:"batchtimeout" json:"batchtimeout" yaml:"batchtimeout"`
	ExportTimeout time.Duration `koanf:"exporttimeout" json:"exporttimeout" yaml:"exporttimeout"`
}

// MetricsConfig defines configuration for metrics export.
// Protocol, Insecure and Headers are inherited from TraceConfig when unset.
type MetricsConfig struct {
	Enabled       *bool             `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Endpoint      string            `koanf:"endpoint" json:"endpoint" yaml:"endpoint"`
	Protocol      string            `koanf:"protocol" json:"protocol" yaml:"protocol"`
	Insecure      *bool             `koanf:"insecure" json:"insecure" yaml:"insecure"`
	Headers       map[string]string `koanf:"headers" json:"headers" yaml:"headers"`
	Interval      time.Duration     `koanf:"interval" json:"interval" yaml:"interval"`
	ExportTimeout time.Duration     `koanf:"exporttimeout" json:"exporttimeout" yaml:"exporttimeout"`
}

// ApplyDefaults sets default values for any config fields that are not specified.
func (c *Config) ApplyDefaults() {
	if c.Service.Version == "" {
		c.Service.Version = "unknown"
	}
	if c.Environment == "" {
		c.Environment = EnvironmentDevelopment
	}
	c.applyTraceDefaults()
	c.applyMetricsDefaults()
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
	if c.Trace.SampleRate == nil {
		c.Trace.SampleRate = Float64Ptr(1.0)
	}
	// Development: near-instant span visibility. Production: efficient batching.
	if c.Trace.BatchTimeout == 0 {
		c.Trace.BatchTimeout = c.pick(500*time.Millisecond, 5*time.Second, c.Trace.Endpoint)
	}
	if c.Trace.ExportTimeout == 0 {
		c.Trace.ExportTimeout = c.pick(10*time.Second, 60*time.Second, c.Trace.Endpoint)
	}
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
		c.Metrics.Insecure = BoolPtr(c.Trace.Insecure)
	}
	if c.Metrics.Headers == nil && c.Trace.Headers != nil {
		c.Metrics.Headers = make(map[string]string, len(c.Trace.Headers))
		for k, v := range c.Trace.Headers {
			c.Metrics.Headers[k] = v
		}
	}
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = 10 * time.Second
	}
	if c.Metrics.ExportTimeout == 0 {
		c.Metrics.ExportTimeout = c.pick(10*time.Second, 60*time.Second, c.Metrics.Endpoint)
	}
}

func (c *Config) pick(dev, prod time.Duration, endpoint string) time.Duration {
	if c.Environment == EnvironmentDevelopment || endpoint == EndpointStdout {
		return dev
	}
	return prod
}

// Validate checks the configuration. Call ApplyDefaults first.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Service.Name) == "" {
		return ErrMissingServiceName
	}
	if c.Trace.SampleRate != nil && (*c.Trace.SampleRate < 0 || *c.Trace.SampleRate > 1) {
		return ErrInvalidSampleRate
	}
	if err := validateEndpoint("trace", c.Trace.Endpoint, c.Trace.Protocol); err != nil {
		return err
	}
	return validateEndpoint("metrics", c.Metrics.Endpoint, c.Metrics.Protocol)
}

func validateEndpoint(signal, endpoint, protocol string) error {
	if endpoint == EndpointStdout {
		return nil
	}
	switch protocol {
	case ProtocolHTTP, ProtocolGRPC:
	default:
		return fmt.Errorf("%s protocol '%s': %w", signal, protocol, ErrInvalidProtocol)
	}
	// OTLP exporters take host:port, never a scheme
	if strings.Contains(endpoint, "://") {
		return fmt.Errorf("%s endpoint %q must be host:port: %w", signal, endpoint, ErrInvalidEndpointFormat)
	}
	return nil
}
