package server

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/cineflex/cineflex/server/internal/tracking"
)

// setupMiddlewares registers the middleware chain. Probe endpoints are excluded
// from tracing, metrics and request logs.
func (s *Server) setupMiddlewares() error {
	e := s.echo
	cfg := s.cfg
	log := s.logger
	isProbe := func(c echo.Context) bool {
		return s.isProbePath(c.Request().URL.Path)
	}

	e.Use(RequestID())

	e.Use(otelecho.Middleware(cfg.App.Name,
		otelecho.WithTracerProvider(s.tracerProvider),
		otelecho.WithSkipper(isProbe),
	))

	e.Use(UpstreamStats())

	httpMetrics, err := tracking.HTTPMetrics(tracking.HTTPMetricsConfig{
		MeterProvider: s.meterProvider,
		Skipper:       isProbe,
		StatusOf: func(err error) int {
			status, _ := resolveError(err)
			return status
		},
	})
	if err != nil {
		return err
	}
	e.Use(httpMetrics)

	e.Use(Logger(log, LoggerConfig{
		SkipPaths:            []string{s.healthPath(), s.readyPath(), s.metricsPath()},
		SlowRequestThreshold: DefaultSlowRequestThreshold,
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Error().
				Err(err).
				Str("request_id", requestIDOf(c)).
				Bytes("stack", stack).
				Msg("Panic recovered")
			return err
		},
	}))

	e.Use(Timing())

	e.Use(CORS(cfg.Server.CORS.Origins, s.selfCORS...))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		HSTSMaxAge:            3600,
		ContentSecurityPolicy: "default-src 'self'",
	}))

	e.Use(middleware.BodyLimit(bodyLimit))

	e.Use(RateLimit(cfg.App.Rate.Limit, cfg.App.Rate.Burst, isProbe))

	e.Use(Timeout(cfg.Server.Timeout.Middleware))

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
	}))

	return nil
}
