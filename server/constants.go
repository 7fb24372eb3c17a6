package server

import "time"

// Fallbacks used when the corresponding configuration value is zero.
const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 15 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 30 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	DefaultIdleTimeout = 60 * time.Second

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultSlowRequestThreshold marks a request slow in the action log.
	DefaultSlowRequestThreshold = time.Second

	// DefaultHealthRoute, DefaultReadyRoute and DefaultMetricsRoute are the probe endpoints.
	DefaultHealthRoute  = "/health"
	DefaultReadyRoute   = "/ready"
	DefaultMetricsRoute = "/metrics"

	// bodyLimit caps inbound request bodies
	bodyLimit = "1M"
)
