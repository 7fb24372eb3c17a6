package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	nethttp "net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cineflex/cineflex/logger"
)

// Test constants to avoid string duplication
const (
	testAPIKey       = "secret-key-123"
	testBearer       = "bearer-token-xyz"
	testPopularPath  = "/movie/popular"
	testEmptyPage    = `{"page":1,"results":[],"total_pages":1,"total_results":0}`
	testContentType  = "Content-Type"
	testJSONType     = "application/json"
	testCustomHeader = "X-Custom"
)

func newIPv4TestServer(t *testing.T, handler nethttp.Handler) *httptest.Server {
	t.Helper()
	lc := net.ListenConfig{}
	listener, err := lc.Listen(context.Background(), "tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test: unable to bind IPv4 listener: %v", err)
		return &httptest.Server{}
	}

	server := &httptest.Server{
		Listener: listener,
		Config:   &nethttp.Server{Handler: handler},
	}
	server.Start()
	t.Cleanup(server.Close)
	return server
}

type roundTripperFunc func(*nethttp.Request) (*nethttp.Response, error)

func (f roundTripperFunc) RoundTrip(req *nethttp.Request) (*nethttp.Response, error) {
	return f(req)
}

// sleepRecorder replaces real backoff waits with an instant, recorded wait.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func buildTestClient(t *testing.T, b *Builder) (*client, *sleepRecorder) {
	t.Helper()
	built, err := b.Build()
	require.NoError(t, err)
	c, ok := built.(*client)
	require.True(t, ok)

	rec := &sleepRecorder{}
	c.sleep = rec.sleep
	c.backoff.rand = func() float64 { return 0 }
	return c, rec
}

// sequenceHandler replies with the given statuses in order, then repeats the last one.
func sequenceHandler(hits *int32, statuses []int, body string) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		n := int(atomic.AddInt32(hits, 1)) - 1
		if n >= len(statuses) {
			n = len(statuses) - 1
		}
		w.Header().Set(testContentType, testJSONType)
		w.WriteHeader(statuses[n])
		if statuses[n] == nethttp.StatusOK {
			_, _ = io.WriteString(w, body)
			return
		}
		_, _ = io.WriteString(w, `{"status_code":7,"status_message":"upstream says no"}`)
	}
}

func TestBuilder(t *testing.T) {
	t.Run("default configuration", func(t *testing.T) {
		c, _ := buildTestClient(t, NewBuilder(logger.Nop()).WithAPIKey(testAPIKey))

		assert.Equal(t, DefaultBaseURL, c.baseURL.String())
		assert.Equal(t, DefaultTimeout, c.config.Timeout)
		assert.Equal(t, DefaultMaxRetries, c.config.MaxRetries)
		assert.Equal(t, DefaultRetryDelay, c.config.RetryDelay)
		assert.Equal(t, DefaultMaxRetryDelay, c.config.MaxRetryDelay)
		assert.Equal(t, DefaultUserAgent, c.config.UserAgent)
		assert.Equal(t, DefaultHealthPath, c.config.HealthPath)
	})

	t.Run("missing credential fails with logged error", func(t *testing.T) {
		var buf bytes.Buffer
		log := logger.NewWithWriter(&buf, "info", false, nil)

		built, err := NewBuilder(log).Build()

		assert.Nil(t, built)
		assert.ErrorIs(t, err, ErrMissingCredential)
		assert.Contains(t, buf.String(), `"level":"error"`)
		assert.Contains(t, buf.String(), "catalog API credential is not configured")
	})

	t.Run("credential optional", func(t *testing.T) {
		built, err := NewBuilder(logger.Nop()).WithCredentialOptional().Build()
		require.NoError(t, err)
		assert.NotNil(t, built)
	})

	t.Run("invalid base url", func(t *testing.T) {
		_, err := NewBuilder(logger.Nop()).WithAPIKey(testAPIKey).WithBaseURL("not a url").Build()
		assert.Error(t, err)
	})

	t.Run("from config fills zero values", func(t *testing.T) {
		c, _ := buildTestClient(t, NewBuilderFromConfig(nil, Config{BearerToken: testBearer, MaxRetries: 1}))
		assert.Equal(t, 1, c.config.MaxRetries)
		assert.Equal(t, DefaultAPIKeyParam, c.config.APIKeyParam)
		assert.Equal(t, DefaultTimeout, c.config.Timeout)
	})
}

func TestRequestPipeline(t *testing.T) {
	var captured *nethttp.Request
	var capturedBody []byte
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		captured = r.Clone(context.Background())
		capturedBody, _ = io.ReadAll(r.Body)
		w.Header().Set(testContentType, testJSONType)
		_, _ = io.WriteString(w, testEmptyPage)
	}))

	c, _ := buildTestClient(t, NewBuilder(logger.Nop()).
		WithBaseURL(server.URL+"/3/").
		WithAPIKey(testAPIKey).
		WithBearerToken(testBearer).
		WithDefaultHeader(testCustomHeader, "default"))

	t.Run("url query and headers", func(t *testing.T) {
		resp, err := c.Get(context.Background(), &Request{
			Path:    testPopularPath,
			Query:   Params{"page": 2, "include_adult": false, "language": "en-US", "skip": nil},
			Headers: map[string]string{testCustomHeader: "override"},
		})
		require.NoError(t, err)
		require.NotNil(t, captured)

		assert.Equal(t, "/3/movie/popular", captured.URL.Path)
		q := captured.URL.Query()
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "false", q.Get("include_adult"))
		assert.Equal(t, "en-US", q.Get("language"))
		assert.Equal(t, testAPIKey, q.Get(DefaultAPIKeyParam))
		assert.False(t, q.Has("skip"))

		assert.Equal(t, "Bearer "+testBearer, captured.Header.Get("Authorization"))
		assert.Equal(t, testJSONType, captured.Header.Get(testContentType))
		assert.Equal(t, testJSONType, captured.Header.Get("Accept"))
		assert.Equal(t, DefaultUserAgent, captured.Header.Get("User-Agent"))
		assert.Equal(t, "override", captured.Header.Get(testCustomHeader))
		assert.NotEmpty(t, captured.Header.Get(HeaderXRequestID))

		assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
		assert.Equal(t, 1, resp.Stats.Attempts)
		assert.Equal(t, captured.Header.Get(HeaderXRequestID), resp.Stats.RequestID)
		assert.True(t, resp.IsJSON())
	})

	t.Run("json body", func(t *testing.T) {
		_, err := c.Post(context.Background(), &Request{Path: "/movie/1/rating", Body: map[string]float64{"value": 8.5}})
		require.NoError(t, err)
		assert.Equal(t, nethttp.MethodPost, captured.Method)
		assert.JSONEq(t, `{"value":8.5}`, string(capturedBody))
	})

	t.Run("raw body", func(t *testing.T) {
		_, err := c.Put(context.Background(), &Request{Path: "/list/1", Body: []byte(`{"name":"x"}`)})
		require.NoError(t, err)
		assert.Equal(t, nethttp.MethodPut, captured.Method)
		assert.Equal(t, `{"name":"x"}`, string(capturedBody))
	})

	t.Run("absolute path bypasses base url", func(t *testing.T) {
		_, err := c.Delete(context.Background(), &Request{Path: server.URL + "/other"})
		require.NoError(t, err)
		assert.Equal(t, "/other", captured.URL.Path)
		assert.Equal(t, nethttp.MethodDelete, captured.Method)
	})

	t.Run("fresh request id per attempt", func(t *testing.T) {
		_, err := c.Patch(context.Background(), &Request{Path: "/a"})
		require.NoError(t, err)
		first := captured.Header.Get(HeaderXRequestID)
		_, err = c.Patch(context.Background(), &Request{Path: "/a"})
		require.NoError(t, err)
		assert.NotEqual(t, first, captured.Header.Get(HeaderXRequestID))
	})
}

func TestValidationFailuresAreNotCounted(t *testing.T) {
	c, _ := buildTestClient(t, NewBuilder(logger.Nop()).WithAPIKey(testAPIKey))

	tests := []struct {
		name string
		req  *Request
	}{
		{name: "nil request", req: nil},
		{name: "empty path", req: &Request{Path: "  "}},
		{name: "unsupported query value", req: &Request{Path: "/x", Query: Params{"ids": []int{1, 2}}}},
		{name: "unencodable body", req: &Request{Path: "/x", Body: make(chan int)}},
		{name: "streaming body", req: &Request{Path: "/x", Body: strings.NewReader("x")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Post(context.Background(), tt.req)
			apiErr, ok := AsAPIError(err)
			require.True(t, ok)
			assert.Equal(t, KindUnknown, apiErr.Kind)
			assert.Equal(t, CodeValidation, apiErr.Code)
			assert.False(t, apiErr.IsRetryable())
		})
	}
	assert.Zero(t, c.Metrics().TotalRequests)
}

func TestRetryCeilingOnServerErrors(t *testing.T) {
	for _, maxRetries := range []int{0, 1, 3, 5} {
		t.Run("max_retries_"+strconv.Itoa(maxRetries), func(t *testing.T) {
			var hits int32
			server := newIPv4TestServer(t, sequenceHandler(&hits, []int{500}, ""))
			c, rec := buildTestClient(t, NewBuilder(logger.Nop()).
				WithBaseURL(server.URL).
				WithAPIKey(testAPIKey).
				WithRetries(maxRetries, time.Second))

			_, err := c.Get(context.Background(), &Request{Path: testPopularPath})

			assert.True(t, IsKind(err, KindServerError))
			assert.True(t, IsHTTPStatusError(err, nethttp.StatusInternalServerError))
			assert.Equal(t, int32(1+maxRetries), atomic.LoadInt32(&hits))
			assert.Len(t, rec.recorded(), maxRetries)

			m := c.Metrics()
			assert.Equal(t, int64(1), m.TotalRequests)
			assert.Equal(t, int64(1), m.FailedRequests)
		})
	}
}

func TestNoRetryOnNotFound(t *testing.T) {
	var hits int32
	server := newIPv4TestServer(t, sequenceHandler(&hits, []int{404}, ""))
	c, rec := buildTestClient(t, NewBuilder(logger.Nop()).WithBaseURL(server.URL).WithAPIKey(testAPIKey))

	_, err := c.Get(context.Background(), &Request{Path: "/movie/999999"})

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, KindNotFound, apiErr.Kind)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Empty(t, rec.recorded())
	assert.Equal(t, "upstream says no", apiErr.UpstreamMessage)
	assert.NotContains(t, apiErr.Error(), testAPIKey)
}

func TestRetryAfterHonored(t *testing.T) {
	var hits int32
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Header().Set(HeaderRetryAfter, "7")
			w.WriteHeader(nethttp.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, testEmptyPage)
	}))
	c, rec := buildTestClient(t, NewBuilder(logger.Nop()).WithBaseURL(server.URL).WithAPIKey(testAPIKey))

	resp, err := c.Get(context.Background(), &Request{Path: testPopularPath})

	require.NoError(t, err)
	assert.Equal(t, 2, resp.Stats.Attempts)
	assert.Equal(t, []time.Duration{7 * time.Second}, rec.recorded())
}

func TestRateLimitedWithoutHintUsesBackoff(t *testing.T) {
	var hits int32
	server := newIPv4TestServer(t, sequenceHandler(&hits, []int{429, 429, 200}, testEmptyPage))
	c, rec := buildTestClient(t, NewBuilder(logger.Nop()).WithBaseURL(server.URL).WithAPIKey(testAPIKey))

	_, err := c.Get(context.Background(), &Request{Path: testPopularPath})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.recorded())
}

func TestZeroRetryAfterRetriesImmediately(t *testing.T) {
	var hits int32
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Header().Set(HeaderRetryAfter, "0")
			w.WriteHeader(nethttp.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, testEmptyPage)
	}))
	c, rec := buildTestClient(t, NewBuilder(logger.Nop()).WithBaseURL(server.URL).WithAPIKey(testAPIKey))

	resp, err := c.Get(context.Background(), &Request{Path: testPopularPath})

	require.NoError(t, err)
	assert.Equal(t, 2, resp.Stats.Attempts)
	assert.Equal(t, []time.Duration{0}, rec.recorded())
}

// truncatedHandler announces a longer body than it sends, so the client read fails mid-body.
func truncatedHandler(hits *int32, status int, partial string, thenOK bool) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		if atomic.AddInt32(hits, 1) > 1 && thenOK {
			_, _ = io.WriteString(w, testEmptyPage)
			return
		}
		w.Header().Set(testContentType, testJSONType)
		w.Header().Set("Content-Length", "100")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, partial)
	}
}

func TestTruncatedErrorBodyKeepsStatus(t *testing.T) {
	var hits int32
	server := newIPv4TestServer(t, truncatedHandler(&hits, nethttp.StatusNotFound, `{"status`, false))
	c, rec := buildTestClient(t, NewBuilder(logger.Nop()).WithBaseURL(server.URL).WithAPIKey(testAPIKey))

	_, err := c.Get(context.Background(), &Request{Path: "/movie/999999"})

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, KindNotFound, apiErr.Kind)
	assert.Equal(t, nethttp.StatusNotFound, apiErr.Status)
	assert.True(t, apiErr.HasResponse())
	assert.False(t, apiErr.IsNetworkError())
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Empty(t, rec.recorded())
}

func TestTruncatedSuccessBodyIsRetried(t *testing.T) {
	var hits int32
	server := newIPv4TestServer(t, truncatedHandler(&hits, nethttp.StatusOK, `{"page":`, true))
	c, rec := buildTestClient(t, NewBuilder(logger.Nop()).WithBaseURL(server.URL).WithAPIKey(testAPIKey))

	resp, err := c.Get(context.Background(), &Request{Path: testPopularPath})

	require.NoError(t, err)
	assert.Equal(t, 2, resp.Stats.Attempts)
	assert.JSONEq(t, testEmptyPage, string(resp.Body))
	assert.Equal(t, []time.Duration{time.Second}, rec.recorded())
}

func TestTruncatedSuccessBodyExhaustsAsBadGateway(t *testing.T) {
	var hits int32
	server := newIPv4TestServer(t, truncatedHandler(&hits, nethttp.StatusOK, `{"page":`, false))
	c, _ := buildTestClient(t, NewBuilder(logger.Nop()).WithBaseURL(server.URL).WithAPIKey(testAPIKey).WithRetries(1, time.Second))

	_, err := c.Get(context.Background(), &Request{Path: testPopularPath})

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, KindServerError, apiErr.Kind)
	assert.Equal(t, nethttp.StatusBadGateway, apiErr.Status)
	assert.Equal(t, CodeIncompleteBody, apiErr.Code)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestRecoversAfterTransientServiceUnavailable(t *testing.T) {
	var hits int32
	server := newIPv4TestServer(t, sequenceHandler(&hits, []int{503, 503, 200}, testEmptyPage))
	c, rec := buildTestClient(t, NewBuilder(logger.Nop()).WithBaseURL(server.URL).WithAPIKey(testAPIKey))

	page, err := GetJSON[map[string]any](context.Background(), c, &Request{Path: testPopularPath})

	require.NoError(t, err)
	assert.EqualValues(t, 1, page["page"])
	assert.EqualValues(t, 0, page["total_results"])
	assert.Len(t, rec.recorded(), 2)

	m := c.Metrics()
	assert.Equal(t, int64(1), m.TotalRequests)
	assert.Equal(t, int64(1), m.SuccessfulRequests)
	assert.Zero(t, m.FailedRequests)
}

func TestUnauthorizedFailsImmediately(t *testing.T) {
	var hits int32
	server := newIPv4TestServer(t, sequenceHandler(&hits, []int{401}, ""))
	c, rec := buildTestClient(t, NewBuilder(logger.Nop()).WithBaseURL(server.URL).WithAPIKey(testAPIKey))

	_, err := c.Get(context.Background(), &Request{Path: testPopularPath})

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, KindUnauthorized, apiErr.Kind)
	assert.Equal(t, nethttp.StatusUnauthorized, apiErr.Status)
	assert.Empty(t, rec.recorded())
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestConnectionRefused(t *testing.T) {
	var calls int32
	httpClient := &nethttp.Client{Transport: roundTripperFunc(func(*nethttp.Request) (*nethttp.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("dial tcp 127.0.0.1:1: connect: connection refused")
	})}
	c, rec := buildTestClient(t, NewBuilder(logger.Nop()).WithAPIKey(testAPIKey).WithHTTPClient(httpClient))

	_, err := c.Get(context.Background(), &Request{Path: testPopularPath})

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, KindNetworkUnreachable, apiErr.Kind)
	assert.Zero(t, apiErr.Status)
	assert.Equal(t, CodeNetwork, apiErr.Code)
	assert.True(t, apiErr.IsNetworkError())
	assert.Equal(t, int32(1+DefaultMaxRetries), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.recorded())
}

func TestAttemptTimeout(t *testing.T) {
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(nethttp.StatusOK)
	}))
	c, _ := buildTestClient(t, NewBuilder(logger.Nop()).
		WithBaseURL(server.URL).
		WithAPIKey(testAPIKey).
		WithRetries(1, time.Millisecond))

	_, err := c.Get(context.Background(), &Request{Path: testPopularPath, Timeout: 20 * time.Millisecond})

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, KindTimeout, apiErr.Kind)
	assert.Equal(t, nethttp.StatusRequestTimeout, apiErr.Status)
	assert.Equal(t, CodeTimeout, apiErr.Code)
	assert.True(t, apiErr.IsRetryable())
}

func TestCallerCancellationIsNotRetried(t *testing.T) {
	var calls int32
	httpClient := &nethttp.Client{Transport: roundTripperFunc(func(r *nethttp.Request) (*nethttp.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, r.Context().Err()
	})}
	c, rec := buildTestClient(t, NewBuilder(logger.Nop()).WithAPIKey(testAPIKey).WithHTTPClient(httpClient))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Get(ctx, &Request{Path: testPopularPath})

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, KindUnknown, apiErr.Kind)
	assert.Equal(t, CodeCanceled, apiErr.Code)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.recorded())
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(1))
	assert.Equal(t, int64(1), c.Metrics().FailedRequests)
}

func TestCancellationDuringBackoff(t *testing.T) {
	var hits int32
	server := newIPv4TestServer(t, sequenceHandler(&hits, []int{503}, ""))
	c, _ := buildTestClient(t, NewBuilder(logger.Nop()).WithBaseURL(server.URL).WithAPIKey(testAPIKey))
	c.sleep = func(context.Context, time.Duration) error { return context.Canceled }

	_, err := c.Get(context.Background(), &Request{Path: testPopularPath})

	assert.True(t, IsKind(err, KindServerError))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, int64(1), c.Metrics().TotalRequests)
}

func TestInterceptors(t *testing.T) {
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("X-Echo", r.Header.Get("X-Intercepted"))
		_, _ = io.WriteString(w, "{}")
	}))

	t.Run("request and response interceptors run", func(t *testing.T) {
		var seen string
		c, _ := buildTestClient(t, NewBuilder(logger.Nop()).
			WithBaseURL(server.URL).
			WithAPIKey(testAPIKey).
			WithRequestInterceptor(func(_ context.Context, req *nethttp.Request) error {
				req.Header.Set("X-Intercepted", "yes")
				return nil
			}).
			WithResponseInterceptor(func(_ context.Context, _ *nethttp.Request, resp *nethttp.Response) error {
				seen = resp.Header.Get("X-Echo")
				return nil
			}))

		_, err := c.Get(context.Background(), &Request{Path: "/x"})
		require.NoError(t, err)
		assert.Equal(t, "yes", seen)
	})

	t.Run("interceptor failure is terminal", func(t *testing.T) {
		c, rec := buildTestClient(t, NewBuilder(logger.Nop()).
			WithBaseURL(server.URL).
			WithAPIKey(testAPIKey).
			WithRequestInterceptor(func(context.Context, *nethttp.Request) error {
				return errors.New("refused")
			}))

		_, err := c.Get(context.Background(), &Request{Path: "/x"})
		apiErr, ok := AsAPIError(err)
		require.True(t, ok)
		assert.Equal(t, CodeInterceptor, apiErr.Code)
		assert.Empty(t, rec.recorded())
		assert.Equal(t, int64(1), c.Metrics().FailedRequests)
	})
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		var path string
		server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
			path = r.URL.Path
			_, _ = io.WriteString(w, `{"images":{}}`)
		}))
		c, _ := buildTestClient(t, NewBuilder(logger.Nop()).WithBaseURL(server.URL).WithAPIKey(testAPIKey))

		assert.True(t, c.HealthCheck(context.Background()))
		assert.Equal(t, DefaultHealthPath, path)
	})

	t.Run("failing endpoint reports false", func(t *testing.T) {
		var hits int32
		server := newIPv4TestServer(t, sequenceHandler(&hits, []int{503}, ""))
		c, _ := buildTestClient(t, NewBuilder(logger.Nop()).WithBaseURL(server.URL).WithAPIKey(testAPIKey))

		assert.False(t, c.HealthCheck(context.Background()))
	})

	t.Run("unreachable endpoint reports false", func(t *testing.T) {
		httpClient := &nethttp.Client{Transport: roundTripperFunc(func(*nethttp.Request) (*nethttp.Response, error) {
			return nil, errors.New("no route to host")
		})}
		c, _ := buildTestClient(t, NewBuilder(logger.Nop()).WithAPIKey(testAPIKey).WithHTTPClient(httpClient))

		assert.False(t, c.HealthCheck(context.Background()))
	})
}

func TestDebugLoggingMasksCredentials(t *testing.T) {
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		_, _ = io.WriteString(w, testEmptyPage)
	}))
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "info", false, nil)
	c, _ := buildTestClient(t, NewBuilder(log).
		WithBaseURL(server.URL).
		WithAPIKey(testAPIKey).
		WithBearerToken(testBearer).
		WithDebug(true))

	_, err := c.Get(context.Background(), &Request{Path: testPopularPath})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Catalog API request")
	assert.Contains(t, out, "Catalog API response")
	assert.Contains(t, out, `"request_id"`)
	assert.Contains(t, out, "api_key=***")
	assert.NotContains(t, out, testAPIKey)
	assert.NotContains(t, out, testBearer)
}

func TestQuietWithoutDebug(t *testing.T) {
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		_, _ = io.WriteString(w, testEmptyPage)
	}))
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "info", false, nil)
	c, _ := buildTestClient(t, NewBuilder(log).WithBaseURL(server.URL).WithAPIKey(testAPIKey))

	_, err := c.Get(context.Background(), &Request{Path: testPopularPath})
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestUpstreamCounterInContext(t *testing.T) {
	var hits int32
	server := newIPv4TestServer(t, sequenceHandler(&hits, []int{502, 200}, testEmptyPage))
	c, _ := buildTestClient(t, NewBuilder(logger.Nop()).WithBaseURL(server.URL).WithAPIKey(testAPIKey))

	ctx := logger.WithUpstreamCounter(context.Background())
	_, err := c.Get(ctx, &Request{Path: testPopularPath})

	require.NoError(t, err)
	assert.Equal(t, int64(2), logger.GetUpstreamCounter(ctx))
	assert.Positive(t, logger.GetUpstreamElapsed(ctx))
}

func TestJSONHelpers(t *testing.T) {
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.Method {
		case nethttp.MethodDelete:
			w.WriteHeader(nethttp.StatusNoContent)
		case nethttp.MethodPatch:
			_, _ = io.WriteString(w, "not json")
		default:
			_, _ = io.WriteString(w, `{"id":550,"title":"Fight Club"}`)
		}
	}))
	c, _ := buildTestClient(t, NewBuilder(logger.Nop()).WithBaseURL(server.URL).WithAPIKey(testAPIKey))

	type movie struct {
		ID    int    `json:"id"`
		Title string `json:"title"`
	}

	m, err := GetJSON[movie](context.Background(), c, &Request{Path: "/movie/550"})
	require.NoError(t, err)
	assert.Equal(t, movie{ID: 550, Title: "Fight Club"}, m)

	m, err = PostJSON[movie](context.Background(), c, &Request{Path: "/movie/550", Body: m})
	require.NoError(t, err)
	assert.Equal(t, 550, m.ID)

	_, err = PutJSON[movie](context.Background(), c, &Request{Path: "/movie/550"})
	require.NoError(t, err)

	deleted, err := DeleteJSON[movie](context.Background(), c, &Request{Path: "/movie/550"})
	require.NoError(t, err)
	assert.Zero(t, deleted)

	_, err = PatchJSON[movie](context.Background(), c, &Request{Path: "/movie/550"})
	require.Error(t, err)
	_, isAPIErr := AsAPIError(err)
	assert.False(t, isAPIErr)
}
