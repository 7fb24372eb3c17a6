// Package server provides the HTTP server using the echo framework.
// It wires middlewares, probe endpoints and Prometheus metrics, and exposes a
// RouteRegistrar for feature routes such as the catalog proxy.
package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cineflex/cineflex/config"
	"github.com/cineflex/cineflex/logger"
)

// Server represents an HTTP server instance with echo.
type Server struct {
	echo         *echo.Echo
	cfg          *config.Config
	logger       logger.Logger
	basePath     string
	healthRoute  string
	readyRoute   string
	metricsRoute string

	probes         []namedProbe
	gatherer       prometheus.Gatherer
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	selfCORS       []string
}

// Option customizes a Server.
type Option func(*Server)

// WithProbe adds a readiness probe reported under name.
func WithProbe(name string, probe Probe) Option {
	return func(s *Server) {
		s.probes = append(s.probes, namedProbe{name: name, probe: probe})
	}
}

// WithGatherer sets the Prometheus gatherer served on the metrics route.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithMeterProvider sets the provider for HTTP server metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Server) {
		s.meterProvider = mp
	}
}

// WithTracerProvider sets the provider for server spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) {
		s.tracerProvider = tp
	}
}

// WithSelfManagedCORS excludes path prefixes from the CORS middleware because
// their handlers write CORS headers themselves.
func WithSelfManagedCORS(prefixes ...string) Option {
	return func(s *Server) {
		s.selfCORS = append(s.selfCORS, prefixes...)
	}
}

// normalizeBasePath ensures the base path starts with "/" and doesn't end with "/".
// The root path and the empty string both mean no prefix.
func normalizeBasePath(basePath string) string {
	if basePath == "" || basePath == "/" {
		return ""
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	return strings.TrimRight(basePath, "/")
}

// normalizeRoutePath ensures a route path starts with "/" and handles empty paths.
func normalizeRoutePath(route, defaultRoute string) string {
	if route == "" {
		route = defaultRoute
	}
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return route
}

// buildFullPath combines the base path with a route path.
func (s *Server) buildFullPath(route string) string {
	if s.basePath == "" {
		return route
	}
	if route == "/" {
		return s.basePath
	}
	return s.basePath + route
}

func (s *Server) healthPath() string  { return s.buildFullPath(s.healthRoute) }
func (s *Server) readyPath() string   { return s.buildFullPath(s.readyRoute) }
func (s *Server) metricsPath() string { return s.buildFullPath(s.metricsRoute) }

func (s *Server) isProbePath(path string) bool {
	return path == s.healthPath() || path == s.readyPath() || path == s.metricsPath()
}

// New creates a server with middlewares, the error handler and the probe endpoints registered.
func New(cfg *config.Config, log logger.Logger, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("server: nil config")
	}
	if log == nil {
		log = logger.Nop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(cfg, log)

	s := &Server{
		echo:         e,
		cfg:          cfg,
		logger:       log,
		basePath:     normalizeBasePath(cfg.Server.Path.Base),
		healthRoute:  normalizeRoutePath(cfg.Server.Path.Health, DefaultHealthRoute),
		readyRoute:   normalizeRoutePath(cfg.Server.Path.Ready, DefaultReadyRoute),
		metricsRoute: normalizeRoutePath(cfg.Server.Path.Metrics, DefaultMetricsRoute),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.meterProvider == nil {
		s.meterProvider = otel.GetMeterProvider()
	}
	if s.tracerProvider == nil {
		s.tracerProvider = otel.GetTracerProvider()
	}
	if s.gatherer == nil {
		s.gatherer = NewRegistry()
	}

	if err := s.setupMiddlewares(); err != nil {
		return nil, fmt.Errorf("server: failed to set up middlewares: %w", err)
	}

	e.GET(s.healthPath(), s.healthCheck)
	e.GET(s.readyPath(), s.readyCheck)
	e.GET(s.metricsPath(), metricsHandler(s.gatherer))

	log.Debug().
		Str("base_path", s.basePath).
		Str("health_path", s.healthPath()).
		Str("ready_path", s.readyPath()).
		Str("metrics_path", s.metricsPath()).
		Msg("Server paths configured")

	return s, nil
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// ModuleGroup returns a RouteRegistrar with the base path applied.
func (s *Server) ModuleGroup() RouteRegistrar {
	return newRouteGroup(s.echo.Group(s.basePath), s.basePath)
}

// Start begins accepting requests and blocks until the server stops.
// After Shutdown it returns http.ErrServerClosed.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.logger.Info().
		Str("service", s.cfg.App.Name).
		Str("version", s.cfg.App.Version).
		Str("env", s.cfg.App.Env).
		Int("port", s.cfg.Server.Port).
		Str("address", addr).
		Msg("Starting server...")

	// Echo.Shutdown only stops e.Server
	hs := s.echo.Server
	hs.ReadTimeout = orDefault(s.cfg.Server.Timeout.Read, DefaultReadTimeout)
	hs.WriteTimeout = orDefault(s.cfg.Server.Timeout.Write, DefaultWriteTimeout)
	hs.IdleTimeout = orDefault(s.cfg.Server.Timeout.Idle, DefaultIdleTimeout)
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the server, waiting for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down server...")
	return s.echo.Shutdown(ctx)
}

// ShutdownTimeout is the configured graceful shutdown bound.
func (s *Server) ShutdownTimeout() time.Duration {
	return orDefault(s.cfg.Server.Timeout.Shutdown, DefaultShutdownTimeout)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
