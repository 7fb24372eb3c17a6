package httpclient

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	meterName = "github.com/cineflex/cineflex/httpclient"

	metricRequests = "catalog.client.requests"
	metricDuration = "catalog.client.duration"
	metricRetries  = "catalog.client.retries"

	// ewmaWeight is the weight given to the newest latency sample
	ewmaWeight = 0.1
)

// Metrics is a point-in-time copy of the client's aggregate counters.
type Metrics struct {
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	// AverageResponseTime is an exponentially weighted moving average
	AverageResponseTime time.Duration
	LastRequestTime     time.Time
}

// metricsRecorder owns the aggregate counters. All mutation goes through record.
type metricsRecorder struct {
	mu      sync.Mutex
	metrics Metrics
}

func (m *metricsRecorder) record(success bool, latency time.Duration, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.metrics.TotalRequests++
	if success {
		m.metrics.SuccessfulRequests++
	} else {
		m.metrics.FailedRequests++
	}
	if m.metrics.TotalRequests == 1 {
		m.metrics.AverageResponseTime = latency
	} else {
		avg := float64(m.metrics.AverageResponseTime)*(1-ewmaWeight) + float64(latency)*ewmaWeight
		m.metrics.AverageResponseTime = time.Duration(avg)
	}
	m.metrics.LastRequestTime = at
}

func (m *metricsRecorder) snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics
}

func (m *metricsRecorder) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = Metrics{}
}

// instruments mirrors the aggregate metrics into OpenTelemetry.
type instruments struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	retries  metric.Int64Counter
}

func newInstruments(mp metric.MeterProvider) (*instruments, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter(meterName)

	requests, err := meter.Int64Counter(metricRequests,
		metric.WithDescription("Logical catalog API calls by outcome"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(metricDuration,
		metric.WithDescription("Latency of the final attempt of each catalog API call"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	retries, err := meter.Int64Counter(metricRetries,
		metric.WithDescription("Retries performed against the catalog API"),
		metric.WithUnit("{retry}"))
	if err != nil {
		return nil, err
	}
	return &instruments{requests: requests, duration: duration, retries: retries}, nil
}

func (in *instruments) recordCall(ctx context.Context, method string, latency time.Duration, apiErr *APIError) {
	outcome, kind := "success", "none"
	if apiErr != nil {
		outcome, kind = "failure", string(apiErr.Kind)
	}
	attrs := metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("outcome", outcome),
		attribute.String("kind", kind),
	)
	in.requests.Add(ctx, 1, attrs)
	in.duration.Record(ctx, float64(latency)/float64(time.Millisecond), attrs)
}

func (in *instruments) recordRetry(ctx context.Context, method string, kind Kind) {
	in.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("kind", string(kind)),
	))
}
