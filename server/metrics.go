package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cineflex/cineflex/httpclient"
)

const metricsNamespace = "cineflex"

// ClientCollector exposes a catalog client's aggregate metrics to Prometheus.
// Values are read from Metrics() at scrape time.
type ClientCollector struct {
	client httpclient.Client

	requests    *prometheus.Desc
	avgResponse *prometheus.Desc
	lastRequest *prometheus.Desc
}

// NewClientCollector creates a collector labelled with the given client name.
func NewClientCollector(name string, client httpclient.Client) *ClientCollector {
	labels := prometheus.Labels{"client": name}
	return &ClientCollector{
		client: client,
		requests: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "catalog_client", "requests_total"),
			"Logical catalog API calls by outcome.",
			[]string{"outcome"}, labels),
		avgResponse: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "catalog_client", "average_response_seconds"),
			"Exponentially weighted moving average of call latency.",
			nil, labels),
		lastRequest: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "catalog_client", "last_request_timestamp_seconds"),
			"Unix time of the most recent completed call.",
			nil, labels),
	}
}

// Describe implements prometheus.Collector.
func (cc *ClientCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- cc.requests
	ch <- cc.avgResponse
	ch <- cc.lastRequest
}

// Collect implements prometheus.Collector.
func (cc *ClientCollector) Collect(ch chan<- prometheus.Metric) {
	m := cc.client.Metrics()
	ch <- prometheus.MustNewConstMetric(cc.requests, prometheus.CounterValue, float64(m.SuccessfulRequests), "success")
	ch <- prometheus.MustNewConstMetric(cc.requests, prometheus.CounterValue, float64(m.FailedRequests), "failure")
	ch <- prometheus.MustNewConstMetric(cc.avgResponse, prometheus.GaugeValue, m.AverageResponseTime.Seconds())

	var last float64
	if !m.LastRequestTime.IsZero() {
		last = float64(m.LastRequestTime.UnixNano()) / 1e9
	}
	ch <- prometheus.MustNewConstMetric(cc.lastRequest, prometheus.GaugeValue, last)
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func metricsHandler(gatherer prometheus.Gatherer) echo.HandlerFunc {
	h := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
		// The gzip middleware compresses responses
		DisableCompression: true,
	})
	return echo.WrapHandler(h)
}
