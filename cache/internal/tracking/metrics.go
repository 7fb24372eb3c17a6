// Package tracking records OpenTelemetry metrics for cache backends.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// Meter name for cache metrics instrumentation
	cacheMeterName = "github.com/cineflex/cineflex/cache"

	metricCacheOperationDuration = "cache.operation.duration" // Histogram in seconds
	metricCacheHit               = "cache.hit"
	metricCacheMiss              = "cache.miss"
	metricCacheEntries           = "cache.entries"

	attrCacheSystem    = "cache.system"
	attrCacheOperation = "cache.operation"
	attrErrorType      = "error.type"
	attrCacheHitStatus = "cache.hit"
)

// Cache operation names
const (
	OpGet    = "get"
	OpSet    = "set"
	OpDelete = "delete"
	OpHealth = "health"
)

// Recorder owns the cache instruments for one backend.
type Recorder struct {
	system   string
	duration metric.Float64Histogram
	hits     metric.Int64Counter
	misses   metric.Int64Counter
	entries  metric.Int64ObservableGauge
	meter    metric.Meter
	reg      metric.Registration
}

// logMetricError logs a metric initialization error to stderr.
func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize cache metric %s: %v\n", metricName, err)
	}
}

// NewRecorder creates the instruments on mp, falling back to the global provider.
// Instrument creation failures are reported to stderr and leave that instrument disabled.
func NewRecorder(mp metric.MeterProvider, system string) *Recorder {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	r := &Recorder{system: system, meter: mp.Meter(cacheMeterName)}

	var err error
	r.duration, err = r.meter.Float64Histogram(metricCacheOperationDuration,
		metric.WithDescription("Duration of cache operations"),
		metric.WithUnit("s"))
	logMetricError(metricCacheOperationDuration, err)

	r.hits, err = r.meter.Int64Counter(metricCacheHit,
		metric.WithDescription("Number of cache hits"),
		metric.WithUnit("{hit}"))
	logMetricError(metricCacheHit, err)

	r.misses, err = r.meter.Int64Counter(metricCacheMiss,
		metric.WithDescription("Number of cache misses"),
		metric.WithUnit("{miss}"))
	logMetricError(metricCacheMiss, err)

	return r
}

// ObserveEntries registers a callback reporting the live entry count.
func (r *Recorder) ObserveEntries(count func() int64) error {
	gauge, err := r.meter.Int64ObservableGauge(metricCacheEntries,
		metric.WithDescription("Entries currently held by the cache"),
		metric.WithUnit("{entry}"))
	if err != nil {
		return err
	}
	r.entries = gauge
	attrs := metric.WithAttributes(attribute.String(attrCacheSystem, r.system))
	r.reg, err = r.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(gauge, count(), attrs)
		return nil
	}, gauge)
	return err
}

// Close unregisters observable callbacks.
func (r *Recorder) Close() error {
	if r.reg == nil {
		return nil
	}
	return r.reg.Unregister()
}

// RecordOperation records one cache operation. hit is only meaningful for OpGet.
func (r *Recorder) RecordOperation(ctx context.Context, operation string, duration time.Duration, hit bool, err error) {
	attrs := []attribute.KeyValue{
		attribute.String(attrCacheSystem, r.system),
		attribute.String(attrCacheOperation, operation),
	}
	if operation == OpGet {
		attrs = append(attrs, attribute.Bool(attrCacheHitStatus, hit))
	}
	if err != nil {
		attrs = append(attrs, attribute.String(attrErrorType, classifyError(err)))
	}

	if r.duration != nil {
		r.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
	if operation != OpGet {
		return
	}
	if hit && r.hits != nil {
		r.hits.Add(ctx, 1, metric.WithAttributes(attrs...))
	} else if !hit && r.misses != nil {
		r.misses.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// errClassifier lets backends tag their sentinel errors without an import cycle.
type errClassifier interface {
	MetricType() string
}

// classifyError returns an error classification string for metrics.
func classifyError(err error) string {
	var c errClassifier
	if errors.As(err, &c) {
		return c.MetricType()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "timeout"
	}
	return "error"
}
