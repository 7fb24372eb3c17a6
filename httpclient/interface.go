package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	nethttp "net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	cftrace "github.com/cineflex/cineflex/trace"
)

const (
	// HeaderXRequestID is the per-attempt correlation header
	HeaderXRequestID = cftrace.HeaderXRequestID
	// HeaderRetryAfter carries the upstream rate-limit hint
	HeaderRetryAfter = "Retry-After"
)

// Client defines the catalog REST client. Every verb funnels into Do.
type Client interface {
	Get(ctx context.Context, req *Request) (*Response, error)
	Post(ctx context.Context, req *Request) (*Response, error)
	Put(ctx context.Context, req *Request) (*Response, error)
	Patch(ctx context.Context, req *Request) (*Response, error)
	Delete(ctx context.Context, req *Request) (*Response, error)
	Do(ctx context.Context, method string, req *Request) (*Response, error)

	// Metrics returns a copy of the aggregate metrics.
	Metrics() Metrics
	// ResetMetrics zeroes all aggregate counters.
	ResetMetrics()
	// HealthCheck issues a cheap GET and reports whether it succeeded. It never returns an error.
	HealthCheck(ctx context.Context) bool
}

// Params holds query parameters. Values must be scalars: string, bool, integers, floats or fmt.Stringer.
type Params map[string]any

// Request describes one logical call. The client never mutates it.
type Request struct {
	// Path is resolved against the configured base URL unless it is already absolute
	Path string
	// Query parameters merged with the credential parameter
	Query Params
	// Body is sent as-is for []byte and string, and JSON-encoded otherwise
	Body any
	// Headers override the client defaults
	Headers map[string]string
	// Timeout overrides the per-attempt timeout when positive
	Timeout time.Duration
}

// Response represents an HTTP response with tracking information
type Response struct {
	StatusCode int
	Body       []byte
	Headers    nethttp.Header
	Stats      Stats
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// IsJSON reports whether the body is a valid JSON document.
func (r *Response) IsJSON() bool {
	return json.Valid(bytes.TrimSpace(r.Body))
}

// Stats contains request execution statistics
type Stats struct {
	ElapsedTime time.Duration
	Attempts    int
	RequestID   string
}

// RequestInterceptor is called before sending each attempt
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor is called after receiving each attempt's response
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// Config holds the REST client configuration
type Config struct {
	// BaseURL is resolved once at construction
	BaseURL string
	// APIKey is injected as the APIKeyParam query parameter on every request
	APIKey      string
	APIKeyParam string
	// BearerToken is injected as an Authorization header on every request
	BearerToken string
	// CredentialOptional allows building a client without APIKey or BearerToken,
	// e.g. when a forwarding proxy injects the credential server-side
	CredentialOptional bool

	Timeout       time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	JitterFactor  float64

	UserAgent      string
	DefaultHeaders map[string]string
	HealthPath     string

	// Debug enables per-attempt request/response logging
	Debug bool
	// MaxPayloadLogBytes caps the number of body bytes logged in debug mode
	MaxPayloadLogBytes int

	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor

	HTTPClient     *nethttp.Client
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}
