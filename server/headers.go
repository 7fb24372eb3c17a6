package server

// HTTP header names not provided by echo. Headers echo already defines
// (echo.HeaderContentType, echo.HeaderXRequestID, ...) are used directly.
const (
	// HeaderXResponseTime reports request processing duration.
	// Set by the timing middleware on all responses.
	HeaderXResponseTime = "X-Response-Time"

	// HeaderXUpstreamCalls reports how many catalog API calls served the request.
	HeaderXUpstreamCalls = "X-Upstream-Calls"

	// HeaderXForwardedProto carries the scheme the client used in front of a reverse proxy.
	HeaderXForwardedProto = "X-Forwarded-Proto"
)
