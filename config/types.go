package config

import (
	"time"

	"github.com/cineflex/cineflex/observability"
)

// Config represents the overall application configuration structure.
type Config struct {
	App           AppConfig            `koanf:"app" json:"app" yaml:"app"`
	Server        ServerConfig         `koanf:"server" json:"server" yaml:"server"`
	Catalog       CatalogConfig        `koanf:"catalog" json:"catalog" yaml:"catalog"`
	Cache         CacheConfig          `koanf:"cache" json:"cache" yaml:"cache"`
	Proxy         ProxyConfig          `koanf:"proxy" json:"proxy" yaml:"proxy"`
	Log           LogConfig            `koanf:"log" json:"log" yaml:"log"`
	Observability observability.Config `koanf:"observability" json:"observability" yaml:"observability"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name    string     `koanf:"name" json:"name" yaml:"name" validate:"required"`
	Version string     `koanf:"version" json:"version" yaml:"version" validate:"required"`
	Env     string     `koanf:"env" json:"env" yaml:"env" validate:"oneof=development staging production"`
	Debug   bool       `koanf:"debug" json:"debug" yaml:"debug"`
	Rate    RateConfig `koanf:"rate" json:"rate" yaml:"rate"`
}

// RateConfig holds per-client rate limiting settings. A zero Limit disables limiting.
type RateConfig struct {
	Limit int `koanf:"limit" json:"limit" yaml:"limit" validate:"gte=0"`
	Burst int `koanf:"burst" json:"burst" yaml:"burst" validate:"gte=0"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host" json:"host" yaml:"host"`
	Port    int           `koanf:"port" json:"port" yaml:"port" validate:"min=1,max=65535"`
	Timeout TimeoutConfig `koanf:"timeout" json:"timeout" yaml:"timeout"`
	Path    PathConfig    `koanf:"path" json:"path" yaml:"path"`
	CORS    CORSConfig    `koanf:"cors" json:"cors" yaml:"cors"`
}

// TimeoutConfig holds various timeout durations for the server.
type TimeoutConfig struct {
	Read       time.Duration `koanf:"read" json:"read" yaml:"read" validate:"gt=0"`
	Write      time.Duration `koanf:"write" json:"write" yaml:"write" validate:"gt=0"`
	Idle       time.Duration `koanf:"idle" json:"idle" yaml:"idle" validate:"gte=0"`
	Middleware time.Duration `koanf:"middleware" json:"middleware" yaml:"middleware" validate:"gte=0"`
	Shutdown   time.Duration `koanf:"shutdown" json:"shutdown" yaml:"shutdown" validate:"gt=0"`
}

// PathConfig holds URL path settings for the server.
type PathConfig struct {
	Base    string `koanf:"base" json:"base" yaml:"base"`
	Health  string `koanf:"health" json:"health" yaml:"health"`
	Ready   string `koanf:"ready" json:"ready" yaml:"ready"`
	Metrics string `koanf:"metrics" json:"metrics" yaml:"metrics"`
}

// CORSConfig applies to server routes outside the proxy, which always answers with a wildcard origin.
type CORSConfig struct {
	Origins []string `koanf:"origins" json:"origins" yaml:"origins"`
}

// CatalogConfig configures the REST client for the remote catalog API.
type CatalogConfig struct {
	BaseURL      string        `koanf:"baseurl" json:"baseurl" yaml:"baseurl" validate:"required,url"`
	APIKey       string        `koanf:"apikey" json:"-" yaml:"apikey"`
	BearerToken  string        `koanf:"bearertoken" json:"-" yaml:"bearertoken"`
	Timeout      time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0"`
	Retry        RetryConfig   `koanf:"retry" json:"retry" yaml:"retry"`
	UserAgent    string        `koanf:"useragent" json:"useragent" yaml:"useragent"`
	HealthPath   string        `koanf:"healthpath" json:"healthpath" yaml:"healthpath"`
	ImageBaseURL string        `koanf:"imagebaseurl" json:"imagebaseurl" yaml:"imagebaseurl" validate:"omitempty,url"`
	// Debug enables per-attempt request and response logging
	Debug bool `koanf:"debug" json:"debug" yaml:"debug"`
}

// HasCredential reports whether an API key or bearer token is configured.
func (c CatalogConfig) HasCredential() bool {
	return c.APIKey != "" || c.BearerToken != ""
}

// RetryConfig controls the backoff applied to retryable failures.
type RetryConfig struct {
	Max      int           `koanf:"max" json:"max" yaml:"max" validate:"gte=0,lte=10"`
	Delay    time.Duration `koanf:"delay" json:"delay" yaml:"delay" validate:"gt=0"`
	MaxDelay time.Duration `koanf:"maxdelay" json:"maxdelay" yaml:"maxdelay" validate:"gt=0"`
	Jitter   float64       `koanf:"jitter" json:"jitter" yaml:"jitter" validate:"gte=0,lte=1"`
}

// CacheConfig configures the in-process payload cache.
type CacheConfig struct {
	Enabled       bool          `koanf:"enabled" json:"enabled" yaml:"enabled"`
	TTL           time.Duration `koanf:"ttl" json:"ttl" yaml:"ttl" validate:"gte=0"`
	CleanWindow   time.Duration `koanf:"cleanwindow" json:"cleanwindow" yaml:"cleanwindow" validate:"gte=0"`
	Shards        int           `koanf:"shards" json:"shards" yaml:"shards" validate:"gte=0"`
	MaxEntrySize  int           `koanf:"maxentrysize" json:"maxentrysize" yaml:"maxentrysize" validate:"gte=0"`
	HardMaxSizeMB int           `koanf:"hardmaxsizemb" json:"hardmaxsizemb" yaml:"hardmaxsizemb" validate:"gte=0"`
}

// ProxyConfig configures the request-forwarding proxy routes.
type ProxyConfig struct {
	Enabled bool          `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Token   string        `koanf:"token" json:"-" yaml:"token"`
	BaseURL string        `koanf:"baseurl" json:"baseurl" yaml:"baseurl" validate:"required,url"`
	Retries int           `koanf:"retries" json:"retries" yaml:"retries" validate:"gte=0,lte=10"`
	Timeout time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"oneof=trace debug info warn error fatal"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}
