package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	cfg := Config{Enabled: true, Service: ServiceConfig{Name: "cineflex"}}
	cfg.ApplyDefaults()

	assert.Equal(t, "unknown", cfg.Service.Version)
	assert.Equal(t, EnvironmentDevelopment, cfg.Environment)
	assert.Equal(t, EndpointStdout, cfg.Trace.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Trace.Protocol)
	require.NotNil(t, cfg.Trace.Enabled)
	assert.True(t, *cfg.Trace.Enabled)
	assert.Equal(t, 1.0, *cfg.Trace.SampleRate)
	assert.Equal(t, 500*time.Millisecond, cfg.Trace.BatchTimeout)
	assert.Equal(t, EndpointStdout, cfg.Metrics.Endpoint)
	assert.Equal(t, 10*time.Second, cfg.Metrics.Interval)
}

func TestApplyDefaultsProductionOTLP(t *testing.T) {
	cfg := Config{
		Enabled:     true,
		Environment: "production",
		Service:     ServiceConfig{Name: "cineflex"},
		Trace: TraceConfig{
			Endpoint: "collector:4317",
			Protocol: ProtocolGRPC,
			Insecure: true,
			Headers:  map[string]string{"api-key": "k"},
			Enabled:  BoolPtr(false),
		},
	}
	cfg.ApplyDefaults()

	assert.False(t, *cfg.Trace.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Trace.BatchTimeout)
	assert.Equal(t, 60*time.Second, cfg.Trace.ExportTimeout)
	assert.Equal(t, "collector:4317", cfg.Metrics.Endpoint)
	assert.Equal(t, ProtocolGRPC, cfg.Metrics.Protocol)
	assert.True(t, *cfg.Metrics.Insecure)
	assert.Equal(t, "k", cfg.Metrics.Headers["api-key"])

	cfg.Metrics.Headers["api-key"] = "changed"
	assert.Equal(t, "k", cfg.Trace.Headers["api-key"])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "disabled skips checks", cfg: Config{}},
		{name: "missing service name", cfg: Config{Enabled: true}, wantErr: ErrMissingServiceName},
		{
			name:    "sample rate out of range",
			cfg:     Config{Enabled: true, Service: ServiceConfig{Name: "s"}, Trace: TraceConfig{SampleRate: Float64Ptr(1.5)}},
			wantErr: ErrInvalidSampleRate,
		},
		{
			name:    "unknown protocol",
			cfg:     Config{Enabled: true, Service: ServiceConfig{Name: "s"}, Trace: TraceConfig{Endpoint: "c:4318", Protocol: "udp"}},
			wantErr: ErrInvalidProtocol,
		},
		{
			name:    "endpoint with scheme",
			cfg:     Config{Enabled: true, Service: ServiceConfig{Name: "s"}, Trace: TraceConfig{Endpoint: "http://c:4318"}},
			wantErr: ErrInvalidEndpointFormat,
		},
		{
			name: "otlp grpc",
			cfg:  Config{Enabled: true, Service: ServiceConfig{Name: "s"}, Trace: TraceConfig{Endpoint: "c:4317", Protocol: ProtocolGRPC}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ApplyDefaults()
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	var nilCfg *Config
	assert.ErrorIs(t, nilCfg.Validate(), ErrNilConfig)
}
