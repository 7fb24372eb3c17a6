package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cineflex/cineflex/cache"
	"github.com/cineflex/cineflex/catalog"
	"github.com/cineflex/cineflex/config"
	"github.com/cineflex/cineflex/httpclient"
	"github.com/cineflex/cineflex/logger"
)

// GlobalOptions holds flags shared by every command
type GlobalOptions struct {
	ConfigDir   string
	EnvFile     string
	LogLevel    string
	ShowMetrics bool
}

func (o *GlobalOptions) load() (*config.Config, error) {
	opts := config.LoadOptions{Dir: o.ConfigDir}
	switch {
	case o.EnvFile != "":
		opts.DotEnv = []string{o.EnvFile}
	case o.ConfigDir != "":
		opts.DotEnv = []string{filepath.Join(o.ConfigDir, ".env")}
	}

	cfg, err := config.LoadWithOptions(opts)
	if err != nil {
		return nil, err
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	return cfg, nil
}

// newCatalogClient builds the authenticated REST client for the catalog API.
func newCatalogClient(cfg *config.Config, log logger.Logger, mp metric.MeterProvider, tp trace.TracerProvider) (httpclient.Client, error) {
	c := cfg.Catalog
	return httpclient.NewBuilderFromConfig(log, httpclient.Config{
		BaseURL:       c.BaseURL,
		APIKey:        c.APIKey,
		BearerToken:   c.BearerToken,
		Timeout:       c.Timeout,
		MaxRetries:    c.Retry.Max,
		RetryDelay:    c.Retry.Delay,
		MaxRetryDelay: c.Retry.MaxDelay,
		JitterFactor:  c.Retry.Jitter,
		UserAgent:     c.UserAgent,
		HealthPath:    c.HealthPath,
		Debug:         c.Debug,
	}).
		WithMeterProvider(mp).
		WithTracerProvider(tp).
		Build()
}

// newProxyClient builds the forwarding client. The proxy supplies its own bearer token per request.
func newProxyClient(cfg *config.Config, log logger.Logger, mp metric.MeterProvider, tp trace.TracerProvider) (httpclient.Client, error) {
	p := cfg.Proxy
	return httpclient.NewBuilder(log).
		WithBaseURL(p.BaseURL).
		WithCredentialOptional().
		WithTimeout(p.Timeout).
		WithRetries(p.Retries, cfg.Catalog.Retry.Delay).
		WithMaxRetryDelay(cfg.Catalog.Retry.MaxDelay).
		WithUserAgent(cfg.Catalog.UserAgent).
		WithHealthPath(cfg.Catalog.HealthPath).
		WithMeterProvider(mp).
		WithTracerProvider(tp).
		Build()
}

// newCache returns nil when caching is disabled.
func newCache(cfg *config.Config, mp metric.MeterProvider) (*cache.Memory, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	return cache.NewMemory(cache.MemoryConfig{
		TTL:                cfg.Cache.TTL,
		CleanWindow:        cfg.Cache.CleanWindow,
		Shards:             cfg.Cache.Shards,
		MaxEntrySizeBytes:  cfg.Cache.MaxEntrySize,
		HardMaxCacheSizeMB: cfg.Cache.HardMaxSizeMB,
		MeterProvider:      mp,
	})
}

func serviceOptions(cfg *config.Config, c *cache.Memory) []catalog.Option {
	opts := []catalog.Option{catalog.WithImageBaseURL(cfg.Catalog.ImageBaseURL)}
	if c != nil {
		opts = append(opts, catalog.WithCache(c))
	}
	return opts
}

// queryEnv is what the one-shot query commands run against.
type queryEnv struct {
	out    io.Writer
	errOut io.Writer
	client httpclient.Client
	svc    *catalog.Service
	opts   *GlobalOptions
}

// newQueryEnv loads configuration and builds a catalog service without a cache.
// Logs go to errOut so stdout stays machine-readable.
func newQueryEnv(opts *GlobalOptions, out, errOut io.Writer) (*queryEnv, error) {
	cfg, err := opts.load()
	if err != nil {
		return nil, err
	}
	log := logger.NewWithWriter(errOut, cfg.Log.Level, cfg.Log.Pretty, nil)

	client, err := newCatalogClient(cfg, log, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog client: %w", err)
	}
	svc := catalog.NewService(client, log, catalog.WithImageBaseURL(cfg.Catalog.ImageBaseURL))
	return &queryEnv{out: out, errOut: errOut, client: client, svc: svc, opts: opts}, nil
}

// print writes v as indented JSON and, when requested, the client counters to errOut.
func (q *queryEnv) print(v any) error {
	if err := writeJSON(q.out, v); err != nil {
		return err
	}
	if q.opts.ShowMetrics {
		return writeJSON(q.errOut, newMetricsView(q.client.Metrics()))
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// metricsView renders httpclient.Metrics with readable units.
type metricsView struct {
	TotalRequests       int64   `json:"total_requests"`
	SuccessfulRequests  int64   `json:"successful_requests"`
	FailedRequests      int64   `json:"failed_requests"`
	AverageResponseTime float64 `json:"average_response_ms"`
	LastRequestTime     string  `json:"last_request_time,omitempty"`
}

func newMetricsView(m httpclient.Metrics) metricsView {
	v := metricsView{
		TotalRequests:       m.TotalRequests,
		SuccessfulRequests:  m.SuccessfulRequests,
		FailedRequests:      m.FailedRequests,
		AverageResponseTime: float64(m.AverageResponseTime.Microseconds()) / 1000,
	}
	if !m.LastRequestTime.IsZero() {
		v.LastRequestTime = m.LastRequestTime.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	}
	return v
}
