package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cineflex/cineflex/logger"
	cftrace "github.com/cineflex/cineflex/trace"
)

const (
	// DefaultBaseURL is the public catalog API root
	DefaultBaseURL = "https://api.themoviedb.org/3"
	// DefaultAPIKeyParam is the query parameter carrying the API key
	DefaultAPIKeyParam = "api_key"
	// DefaultTimeout is the default per-attempt timeout
	DefaultTimeout = 10 * time.Second
	// DefaultMaxRetries is the default number of retries after the first attempt
	DefaultMaxRetries = 3
	// DefaultRetryDelay is the base backoff delay
	DefaultRetryDelay = 1 * time.Second
	// DefaultMaxRetryDelay caps any single backoff wait
	DefaultMaxRetryDelay = 30 * time.Second
	// DefaultJitterFactor is the proportional jitter added to each backoff delay
	DefaultJitterFactor = 0.1
	// DefaultUserAgent identifies the client to the upstream
	DefaultUserAgent = "CineFlex/1.0.0"
	// DefaultHealthPath is requested by HealthCheck
	DefaultHealthPath = "/configuration"
	// DefaultMaxPayloadLogBytes caps logged bodies in debug mode
	DefaultMaxPayloadLogBytes = 2048

	tracerName = "github.com/cineflex/cineflex/httpclient"
)

// client implements the Client interface
type client struct {
	httpClient  *nethttp.Client
	logger      logger.Logger
	config      *Config
	baseURL     *url.URL
	backoff     backoff
	metrics     metricsRecorder
	instruments *instruments
	tracer      trace.Tracer

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// Builder provides a fluent interface for configuring the REST client
type Builder struct {
	config *Config
	logger logger.Logger
}

// DefaultConfig returns the client defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:            DefaultBaseURL,
		APIKeyParam:        DefaultAPIKeyParam,
		Timeout:            DefaultTimeout,
		MaxRetries:         DefaultMaxRetries,
		RetryDelay:         DefaultRetryDelay,
		MaxRetryDelay:      DefaultMaxRetryDelay,
		JitterFactor:       DefaultJitterFactor,
		UserAgent:          DefaultUserAgent,
		HealthPath:         DefaultHealthPath,
		MaxPayloadLogBytes: DefaultMaxPayloadLogBytes,
		DefaultHeaders:     make(map[string]string),
	}
}

// NewBuilder creates a new client builder
func NewBuilder(log logger.Logger) *Builder {
	cfg := DefaultConfig()
	return &Builder{config: &cfg, logger: log}
}

// NewBuilderFromConfig starts from a caller-supplied configuration. Zero values fall back to defaults at Build.
func NewBuilderFromConfig(log logger.Logger, cfg Config) *Builder {
	if cfg.DefaultHeaders == nil {
		cfg.DefaultHeaders = make(map[string]string)
	}
	return &Builder{config: &cfg, logger: log}
}

// WithBaseURL sets the API root every relative path is resolved against
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithAPIKey sets the API key sent as a query parameter
func (b *Builder) WithAPIKey(key string) *Builder {
	b.config.APIKey = key
	return b
}

// WithBearerToken sets the token sent in the Authorization header
func (b *Builder) WithBearerToken(token string) *Builder {
	b.config.BearerToken = token
	return b
}

// WithCredentialOptional allows a client without credentials
func (b *Builder) WithCredentialOptional() *Builder {
	b.config.CredentialOptional = true
	return b
}

// WithTimeout sets the per-attempt timeout
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithRetries sets the retry configuration
func (b *Builder) WithRetries(maxRetries int, retryDelay time.Duration) *Builder {
	b.config.MaxRetries = maxRetries
	b.config.RetryDelay = retryDelay
	return b
}

// WithMaxRetryDelay caps a single backoff wait
func (b *Builder) WithMaxRetryDelay(d time.Duration) *Builder {
	b.config.MaxRetryDelay = d
	return b
}

// WithUserAgent overrides the User-Agent header
func (b *Builder) WithUserAgent(ua string) *Builder {
	b.config.UserAgent = ua
	return b
}

// WithDefaultHeader adds a default header that will be sent with all requests
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithHealthPath sets the path probed by HealthCheck
func (b *Builder) WithHealthPath(path string) *Builder {
	b.config.HealthPath = path
	return b
}

// WithDebug toggles per-attempt request/response logging
func (b *Builder) WithDebug(enabled bool) *Builder {
	b.config.Debug = enabled
	return b
}

// WithHTTPClient sets the underlying transport client
func (b *Builder) WithHTTPClient(c *nethttp.Client) *Builder {
	b.config.HTTPClient = c
	return b
}

// WithMeterProvider sets the OpenTelemetry meter provider
func (b *Builder) WithMeterProvider(mp metric.MeterProvider) *Builder {
	b.config.MeterProvider = mp
	return b
}

// WithTracerProvider sets the OpenTelemetry tracer provider
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.config.TracerProvider = tp
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

// Build creates the REST client with the configured options.
// It fails with ErrMissingCredential when neither an API key nor a bearer token is set.
func (b *Builder) Build() (Client, error) {
	log := b.logger
	if log == nil {
		log = logger.Nop()
	}
	cfg := *b.config
	applyDefaults(&cfg)

	if cfg.APIKey == "" && cfg.BearerToken == "" && !cfg.CredentialOptional {
		log.Error().Msg("catalog API credential is not configured")
		return nil, ErrMissingCredential
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// Deadlines come from the per-attempt context
		httpClient = &nethttp.Client{}
	}

	mp := cfg.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	inst, err := newInstruments(mp)
	if err != nil {
		return nil, fmt.Errorf("failed to create client instruments: %w", err)
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &client{
		httpClient:  httpClient,
		logger:      log,
		config:      &cfg,
		baseURL:     base,
		backoff:     backoff{base: cfg.RetryDelay, max: cfg.MaxRetryDelay, jitter: cfg.JitterFactor, rand: cryptoFloat64},
		instruments: inst,
		tracer:      tp.Tracer(tracerName),
		sleep:       sleepContext,
		now:         time.Now,
	}, nil
}

func applyDefaults(cfg *Config) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIKeyParam == "" {
		cfg.APIKeyParam = DefaultAPIKeyParam
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = DefaultMaxRetryDelay
	}
	if cfg.JitterFactor < 0 {
		cfg.JitterFactor = 0
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = DefaultHealthPath
	}
	if cfg.MaxPayloadLogBytes <= 0 {
		cfg.MaxPayloadLogBytes = DefaultMaxPayloadLogBytes
	}
}

// Get performs a GET request
func (c *client) Get(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodGet, req)
}

// Post performs a POST request
func (c *client) Post(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPost, req)
}

// Put performs a PUT request
func (c *client) Put(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPut, req)
}

// Patch performs a PATCH request
func (c *client) Patch(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPatch, req)
}

// Delete performs a DELETE request
func (c *client) Delete(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodDelete, req)
}

// Metrics returns a snapshot of the aggregate counters
func (c *client) Metrics() Metrics {
	return c.metrics.snapshot()
}

// ResetMetrics zeroes the aggregate counters
func (c *client) ResetMetrics() {
	c.metrics.reset()
}

// HealthCheck probes the configured health path. Failures are reported as false, never as an error.
func (c *client) HealthCheck(ctx context.Context) bool {
	_, err := c.Get(ctx, &Request{Path: c.config.HealthPath})
	return err == nil
}

// Do performs one logical call, retrying retryable failures with backoff.
func (c *client) Do(ctx context.Context, method string, req *Request) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	target, body, vErr := c.prepare(req)
	if vErr != nil {
		return nil, vErr
	}
	display := displayURL(target)

	ctx, span := c.tracer.Start(ctx, "catalog "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", display),
		))
	defer span.End()

	callStart := c.now()
	var (
		lastErr     *APIError
		lastLatency time.Duration
		attempts    int
	)
	for attempt := 1; ; attempt++ {
		if attempt > 1 {
			delay := c.retryDelay(attempt-1, lastErr)
			c.instruments.recordRetry(ctx, method, lastErr.Kind)
			c.logRetry(method, display, attempt, delay, lastErr)
			if err := c.sleep(ctx, delay); err != nil {
				break
			}
		}

		resp, apiErr, latency := c.attempt(ctx, method, target, body, req, attempt)
		attempts, lastLatency = attempt, latency
		if apiErr == nil {
			resp.Stats.ElapsedTime = c.now().Sub(callStart)
			c.finish(ctx, span, method, latency, attempts, nil)
			return resp, nil
		}
		lastErr = apiErr
		if !apiErr.IsRetryable() || attempt > c.config.MaxRetries || ctx.Err() != nil {
			break
		}
	}

	c.finish(ctx, span, method, lastLatency, attempts, lastErr)
	return nil, lastErr
}

// finish records exactly one metrics sample per logical call.
func (c *client) finish(ctx context.Context, span trace.Span, method string, latency time.Duration, attempts int, apiErr *APIError) {
	c.metrics.record(apiErr == nil, latency, c.now())
	c.instruments.recordCall(ctx, method, latency, apiErr)
	span.SetAttributes(attribute.Int("catalog.attempts", attempts))

	if apiErr == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	if apiErr.Status > 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", apiErr.Status))
	}
	span.SetAttributes(attribute.String("error.type", string(apiErr.Kind)))
	span.RecordError(apiErr)
	span.SetStatus(codes.Error, apiErr.Message)
}

// attempt performs one physical round trip under its own deadline.
func (c *client) attempt(ctx context.Context, method string, target *url.URL, body []byte, req *Request, n int) (*Response, *APIError, time.Duration) {
	timeout := c.config.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	display := displayURL(target)
	requestID := cftrace.NewRequestID()
	start := c.now()
	logger.IncrementUpstreamCounter(ctx)
	defer func() {
		logger.AddUpstreamElapsed(ctx, int64(c.now().Sub(start)))
	}()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := nethttp.NewRequestWithContext(attemptCtx, method, target.String(), reader)
	if err != nil {
		return nil, newValidationError(fmt.Sprintf("cannot build request: %v", err)), 0
	}
	c.applyHeaders(httpReq, req, requestID)

	if err := c.runRequestInterceptors(attemptCtx, httpReq); err != nil {
		return nil, newInterceptorError(method, display, "request", err), c.now().Sub(start)
	}
	c.logRequest(httpReq, body, requestID, n)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		apiErr := c.classifyTransport(ctx, attemptCtx, method, display, err)
		elapsed := c.now().Sub(start)
		c.logFailure(apiErr, requestID, n, elapsed)
		return nil, apiErr, elapsed
	}
	defer httpResp.Body.Close()

	if err := c.runResponseInterceptors(attemptCtx, httpReq, httpResp); err != nil {
		return nil, newInterceptorError(method, display, "response", err), c.now().Sub(start)
	}

	respBody, readErr := io.ReadAll(httpResp.Body)
	success := IsSuccessStatus(httpResp.StatusCode)
	if readErr != nil && success && (ctx.Err() != nil || attemptCtx.Err() != nil || isTimeoutErr(readErr)) {
		apiErr := c.classifyTransport(ctx, attemptCtx, method, display, readErr)
		elapsed := c.now().Sub(start)
		c.logFailure(apiErr, requestID, n, elapsed)
		return nil, apiErr, elapsed
	}
	elapsed := c.now().Sub(start)

	if readErr != nil || !success {
		apiErr := classify(&attemptOutcome{
			method:  method,
			url:     display,
			readErr: readErr,
			status:  httpResp.StatusCode,
			headers: httpResp.Header,
			body:    respBody,
			now:     c.now(),
		})
		c.logFailure(apiErr, requestID, n, elapsed)
		return nil, apiErr, elapsed
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Headers:    httpResp.Header,
		Stats: Stats{
			ElapsedTime: elapsed,
			Attempts:    n,
			RequestID:   requestID,
		},
	}
	c.logResponse(resp, n)
	return resp, nil, elapsed
}

func (c *client) classifyTransport(ctx, attemptCtx context.Context, method, display string, err error) *APIError {
	return classify(&attemptOutcome{
		method:          method,
		url:             display,
		err:             err,
		attemptTimedOut: ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded),
		callerErr:       ctx.Err(),
		now:             c.now(),
	})
}

// prepare validates the request and resolves everything that is identical across attempts.
func (c *client) prepare(req *Request) (*url.URL, []byte, *APIError) {
	if req == nil {
		return nil, nil, newValidationError("request cannot be nil")
	}
	if strings.TrimSpace(req.Path) == "" {
		return nil, nil, newValidationError("path cannot be empty")
	}

	target, err := c.resolve(req.Path)
	if err != nil {
		return nil, nil, newValidationError(fmt.Sprintf("invalid path %q", req.Path))
	}

	query := target.Query()
	for key, value := range req.Query {
		s, ok, err := formatParam(value)
		if err != nil {
			return nil, nil, newValidationError(fmt.Sprintf("query parameter %q: %v", key, err))
		}
		if ok {
			query.Set(key, s)
		}
	}
	if c.config.APIKey != "" {
		query.Set(c.config.APIKeyParam, c.config.APIKey)
	}
	target.RawQuery = query.Encode()

	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, nil, newValidationError(fmt.Sprintf("request body: %v", err))
	}
	return target, body, nil
}

// resolve joins a relative path onto the base URL; absolute URLs are used unchanged.
func (c *client) resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	if ref.IsAbs() {
		return ref, nil
	}
	resolved := *c.baseURL
	resolved.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	resolved.RawPath = ""
	resolved.RawQuery = ref.RawQuery
	resolved.Fragment = ""
	return &resolved, nil
}

// formatParam renders a scalar query value. Nil values are skipped.
func formatParam(value any) (string, bool, error) {
	switch v := value.(type) {
	case nil:
		return "", false, nil
	case string:
		return v, true, nil
	case bool:
		return strconv.FormatBool(v), true, nil
	case int:
		return strconv.Itoa(v), true, nil
	case int32:
		return strconv.FormatInt(int64(v), 10), true, nil
	case int64:
		return strconv.FormatInt(v, 10), true, nil
	case uint:
		return strconv.FormatUint(uint64(v), 10), true, nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), true, nil
	case uint64:
		return strconv.FormatUint(v, 10), true, nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true, nil
	case fmt.Stringer:
		return v.String(), true, nil
	default:
		return "", false, fmt.Errorf("unsupported type %T", value)
	}
}

func encodeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	case string:
		return []byte(v), nil
	case io.Reader:
		return nil, errors.New("streaming bodies are not supported")
	default:
		return json.Marshal(v)
	}
}

// applyHeaders sets protocol headers, then defaults, then per-call overrides.
func (c *client) applyHeaders(httpReq *nethttp.Request, req *Request, requestID string) {
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.config.UserAgent)

	for key, value := range c.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}
	if c.config.BearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.BearerToken)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	httpReq.Header.Set(HeaderXRequestID, requestID)
}

// runRequestInterceptors executes all request interceptors
func (c *client) runRequestInterceptors(ctx context.Context, req *nethttp.Request) error {
	for _, interceptor := range c.config.RequestInterceptors {
		if err := interceptor(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// runResponseInterceptors executes all response interceptors
func (c *client) runResponseInterceptors(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error {
	for _, interceptor := range c.config.ResponseInterceptors {
		if err := interceptor(ctx, req, resp); err != nil {
			return err
		}
	}
	return nil
}

// logRequest logs the outgoing attempt in debug mode
func (c *client) logRequest(httpReq *nethttp.Request, body []byte, requestID string, attempt int) {
	if !c.config.Debug {
		return
	}
	logEvent := c.logger.Info().
		Str("direction", "outbound").
		Str("method", httpReq.Method).
		Str("url", httpReq.URL.String()).
		Str("request_id", requestID).
		Int("attempt", attempt).
		Interface("headers", map[string][]string(httpReq.Header))
	if traceID, ok := cftrace.IDFromContext(httpReq.Context()); ok {
		logEvent = logEvent.Str("trace_id", traceID)
	}

	if len(body) > 0 {
		logEvent.Bytes("body", truncate(body, c.config.MaxPayloadLogBytes))
	}
	logEvent.Msg("Catalog API request")
}

// logResponse logs a successful attempt in debug mode
func (c *client) logResponse(resp *Response, attempt int) {
	if !c.config.Debug {
		return
	}
	logEvent := c.logger.Info().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Str("request_id", resp.Stats.RequestID).
		Int("attempt", attempt).
		Dur("elapsed", resp.Stats.ElapsedTime)

	if len(resp.Body) > 0 {
		logEvent.Bytes("body", truncate(resp.Body, c.config.MaxPayloadLogBytes))
	}
	logEvent.Msg("Catalog API response")
}

// logFailure logs a failed attempt in debug mode
func (c *client) logFailure(apiErr *APIError, requestID string, attempt int, elapsed time.Duration) {
	if !c.config.Debug {
		return
	}
	logEvent := c.logger.Info().
		Err(apiErr).
		Str("direction", "inbound").
		Str("kind", string(apiErr.Kind)).
		Int("status", apiErr.Status).
		Str("code", apiErr.Code).
		Str("request_id", requestID).
		Int("attempt", attempt).
		Dur("elapsed", elapsed)

	if len(apiErr.Body) > 0 {
		logEvent.Bytes("body", apiErr.Body)
	}
	logEvent.Msg("Catalog API error")
}

func (c *client) logRetry(method, display string, attempt int, delay time.Duration, lastErr *APIError) {
	c.logger.Debug().
		Str("method", method).
		Str("url", display).
		Int("attempt", attempt).
		Int("max_retries", c.config.MaxRetries).
		Dur("delay", delay).
		Str("kind", string(lastErr.Kind)).
		Msg("Retrying catalog API request")
}
