package tracking

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestEcho(t *testing.T, cfg HTTPMetricsConfig) (*echo.Echo, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	cfg.MeterProvider = provider
	mw, err := HTTPMetrics(cfg)
	require.NoError(t, err)

	e := echo.New()
	e.Use(mw)
	return e, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != httpMeterName {
			continue
		}
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func durationPoints(t *testing.T, metrics map[string]metricdata.Metrics) []metricdata.HistogramDataPoint[float64] {
	t.Helper()
	m, ok := metrics[metricHTTPRequestDuration]
	require.True(t, ok, "expected %s", metricHTTPRequestDuration)
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "expected histogram data")
	return hist.DataPoints
}

func assertAttribute(t *testing.T, attrs []attribute.KeyValue, key string, expected any) {
	t.Helper()
	for _, kv := range attrs {
		if string(kv.Key) != key {
			continue
		}
		switch v := expected.(type) {
		case string:
			assert.Equal(t, v, kv.Value.AsString(), "attribute %s", key)
		case int64:
			assert.Equal(t, v, kv.Value.AsInt64(), "attribute %s", key)
		}
		return
	}
	t.Errorf("attribute %s not found", key)
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	e, reader := newTestEcho(t, HTTPMetricsConfig{})
	e.GET("/movies/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, "movie")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/movies/550", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	metrics := collect(t, reader)
	points := durationPoints(t, metrics)
	require.Len(t, points, 1)
	attrs := points[0].Attributes.ToSlice()
	assertAttribute(t, attrs, attrHTTPRequestMethod, "GET")
	assertAttribute(t, attrs, attrHTTPRoute, "/movies/:id")
	assertAttribute(t, attrs, attrHTTPResponseStatus, int64(200))
	assertAttribute(t, attrs, attrURLScheme, "http")
	_, hasErrType := points[0].Attributes.Value(attrErrorType)
	assert.False(t, hasErrType)

	active, ok := metrics[metricHTTPActiveRequests]
	require.True(t, ok)
	sum, ok := active.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.NotEmpty(t, sum.DataPoints)
	assert.Zero(t, sum.DataPoints[0].Value)
}

func TestHTTPMetricsRecordsErrorStatus(t *testing.T) {
	e, reader := newTestEcho(t, HTTPMetricsConfig{})
	e.GET("/missing", func(c echo.Context) error {
		return c.String(http.StatusNotFound, "not found")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", http.NoBody))

	points := durationPoints(t, collect(t, reader))
	require.Len(t, points, 1)
	attrs := points[0].Attributes.ToSlice()
	assertAttribute(t, attrs, attrHTTPResponseStatus, int64(404))
	assertAttribute(t, attrs, attrErrorType, "404")
}

func TestHTTPMetricsResolvesUncommittedErrors(t *testing.T) {
	errUpstream := errors.New("upstream down")
	e, reader := newTestEcho(t, HTTPMetricsConfig{
		StatusOf: func(err error) int {
			if errors.Is(err, errUpstream) {
				return http.StatusServiceUnavailable
			}
			return http.StatusInternalServerError
		},
	})
	e.GET("/fail", func(echo.Context) error { return errUpstream })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", http.NoBody))

	points := durationPoints(t, collect(t, reader))
	require.Len(t, points, 1)
	assertAttribute(t, points[0].Attributes.ToSlice(), attrHTTPResponseStatus, int64(503))
}

func TestHTTPMetricsSkipper(t *testing.T) {
	e, reader := newTestEcho(t, HTTPMetricsConfig{
		Skipper: func(c echo.Context) bool { return c.Path() == "/health" },
	})
	e.GET("/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/api", func(c echo.Context) error { return c.String(http.StatusOK, "api") })

	for _, target := range []string{"/health", "/api"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, http.NoBody))
	}

	points := durationPoints(t, collect(t, reader))
	require.Len(t, points, 1, "expected only the /api data point")
	assertAttribute(t, points[0].Attributes.ToSlice(), attrHTTPRoute, "/api")
}

func TestExtractScheme(t *testing.T) {
	tests := []struct {
		name      string
		forwarded string
		tls       bool
		expected  string
	}{
		{name: "plain", expected: "http"},
		{name: "tls", tls: true, expected: "https"},
		{name: "forwarded wins", forwarded: "https", expected: "https"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.forwarded != "" {
				req.Header.Set(headerForwardedProto, tt.forwarded)
			}
			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			}
			c := echo.New().NewContext(req, httptest.NewRecorder())
			assert.Equal(t, tt.expected, extractScheme(c))
		})
	}
}

func TestClassifyHTTPError(t *testing.T) {
	assert.Equal(t, "", classifyHTTPError(200, nil))
	assert.Equal(t, "handler_error", classifyHTTPError(200, errors.New("x")))
	assert.Equal(t, "404", classifyHTTPError(404, nil))
	assert.Equal(t, "503", classifyHTTPError(503, errors.New("x")))
}
