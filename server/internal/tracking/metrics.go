// Package tracking records OpenTelemetry HTTP server metrics for echo routes.
package tracking

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	httpMeterName = "github.com/cineflex/cineflex/server"

	// Metric names follow the OpenTelemetry HTTP semantic conventions
	metricHTTPRequestDuration = "http.server.request.duration"
	metricHTTPActiveRequests  = "http.server.active_requests"

	attrHTTPRequestMethod  = "http.request.method"
	attrHTTPResponseStatus = "http.response.status_code"
	attrHTTPRoute          = "http.route"
	attrURLScheme          = "url.scheme"
	attrErrorType          = "error.type"

	headerForwardedProto = "X-Forwarded-Proto"
)

// httpDurationBuckets are the recommended boundaries for HTTP latency, in seconds
var httpDurationBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 7.5, 10,
}

// HTTPMetricsConfig holds configuration for the HTTP metrics middleware.
type HTTPMetricsConfig struct {
	// MeterProvider defaults to the global provider
	MeterProvider metric.MeterProvider

	// Skipper excludes requests from measurement
	Skipper func(c echo.Context) bool

	// StatusOf maps a handler error to the status the error handler will write.
	// Without it, uncommitted errors are recorded as 500.
	StatusOf func(err error) int
}

type httpMetrics struct {
	cfg      HTTPMetricsConfig
	duration metric.Float64Histogram
	active   metric.Int64UpDownCounter
}

// HTTPMetrics returns middleware recording request duration and in-flight requests.
//
// Metrics recorded:
//   - http.server.request.duration: histogram in seconds
//   - http.server.active_requests: up-down counter
func HTTPMetrics(cfg HTTPMetricsConfig) (echo.MiddlewareFunc, error) {
	mp := cfg.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(httpMeterName)

	duration, err := meter.Float64Histogram(metricHTTPRequestDuration,
		metric.WithDescription("Duration of HTTP server requests"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(httpDurationBuckets...))
	if err != nil {
		return nil, err
	}
	active, err := meter.Int64UpDownCounter(metricHTTPActiveRequests,
		metric.WithDescription("Number of active HTTP server requests"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	h := &httpMetrics{cfg: cfg, duration: duration, active: active}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return h.handle(c, next)
		}
	}, nil
}

func (h *httpMetrics) handle(c echo.Context, next echo.HandlerFunc) error {
	if h.cfg.Skipper != nil && h.cfg.Skipper(c) {
		return next(c)
	}

	req := c.Request()
	// Detached so a canceled request still decrements the gauge
	ctx := context.WithoutCancel(req.Context())
	method := req.Method
	scheme := extractScheme(c)

	base := metric.WithAttributes(
		attribute.String(attrHTTPRequestMethod, method),
		attribute.String(attrURLScheme, scheme),
	)
	h.active.Add(ctx, 1, base)
	defer h.active.Add(ctx, -1, base)

	start := time.Now()
	err := next(c)
	elapsed := time.Since(start)

	status := c.Response().Status
	if err != nil && !c.Response().Committed {
		status = h.statusOf(err)
	}
	h.duration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(durationAttributes(method, scheme, status, c.Path(), err)...))
	return err
}

func (h *httpMetrics) statusOf(err error) int {
	if h.cfg.StatusOf != nil {
		return h.cfg.StatusOf(err)
	}
	return 500
}

func durationAttributes(method, scheme string, status int, route string, err error) []attribute.KeyValue {
	if route == "" {
		route = "unknown"
	}
	attrs := []attribute.KeyValue{
		attribute.String(attrHTTPRequestMethod, method),
		attribute.String(attrURLScheme, scheme),
		attribute.Int(attrHTTPResponseStatus, status),
		attribute.String(attrHTTPRoute, route),
	}
	if errorType := classifyHTTPError(status, err); errorType != "" {
		attrs = append(attrs, attribute.String(attrErrorType, errorType))
	}
	return attrs
}

// extractScheme prefers X-Forwarded-Proto, then the TLS state.
func extractScheme(c echo.Context) string {
	if proto := c.Request().Header.Get(headerForwardedProto); proto != "" {
		return proto
	}
	if c.Request().TLS != nil {
		return "https"
	}
	return "http"
}

// classifyHTTPError returns the status code for 4xx/5xx, "handler_error" for an
// error on a successful status, and "" otherwise.
func classifyHTTPError(status int, err error) string {
	if status >= 400 {
		return strconv.Itoa(status)
	}
	if err != nil {
		return "handler_error"
	}
	return ""
}
