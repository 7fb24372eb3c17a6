package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		kind      Kind
		code      string
		retryable bool
		message   string
	}{
		{name: "unauthorized", status: 401, kind: KindUnauthorized, code: CodeUnauthorized, message: msgUnauthorize},
		{name: "forbidden", status: 403, kind: KindForbidden, code: CodeForbidden, message: "Access forbidden for GET"},
		{name: "not found", status: 404, kind: KindNotFound, code: CodeNotFound, message: msgNotFound},
		{name: "request timeout response", status: 408, kind: KindTimeout, code: CodeTimeout, retryable: true, message: "Request timeout"},
		{name: "rate limited", status: 429, kind: KindRateLimited, code: CodeRateLimited, retryable: true, message: msgRateLimited},
		{name: "internal server error", status: 500, kind: KindServerError, code: CodeInternalServer, retryable: true, message: msgAPI},
		{name: "not implemented", status: 501, kind: KindServerError, code: CodeServerError, message: msgAPI},
		{name: "bad gateway", status: 502, kind: KindServerError, code: CodeServerError, retryable: true, message: msgAPI},
		{name: "service unavailable", status: 503, kind: KindServerError, code: CodeServerError, retryable: true, message: msgAPI},
		{name: "gateway timeout", status: 504, kind: KindServerError, code: CodeServerError, retryable: true, message: msgAPI},
		{
			name:    "unknown with upstream status_message",
			status:  422,
			body:    `{"status_code":34,"status_message":"The resource you requested could not be found."}`,
			kind:    KindUnknown,
			code:    "34",
			message: "The resource you requested could not be found.",
		},
		{
			name:    "unknown with upstream message",
			status:  400,
			body:    `{"message":"bad input","status_code":"E_BAD"}`,
			kind:    KindUnknown,
			code:    "E_BAD",
			message: "bad input",
		},
		{name: "unknown without payload", status: 409, body: "<html>", kind: KindUnknown, message: msgUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := classify(&attemptOutcome{
				method:  nethttp.MethodGet,
				url:     "https://api.example.test/3/movie/1",
				status:  tt.status,
				headers: nethttp.Header{},
				body:    []byte(tt.body),
			})

			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.status, e.Status)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.retryable, e.IsRetryable())
			assert.False(t, e.IsNetworkError())
			assert.True(t, e.HasResponse())
			assert.Contains(t, e.Message, tt.message)
		})
	}
}

func TestClassifyTransportFailures(t *testing.T) {
	const target = "https://api.example.test/3/movie/1"

	t.Run("no response", func(t *testing.T) {
		cause := errors.New("connection refused")
		e := classify(&attemptOutcome{method: "GET", url: target, err: cause})

		assert.Equal(t, KindNetworkUnreachable, e.Kind)
		assert.Zero(t, e.Status)
		assert.Equal(t, CodeNetwork, e.Code)
		assert.True(t, e.IsNetworkError())
		assert.True(t, e.IsRetryable())
		assert.ErrorIs(t, e, cause)
		assert.Contains(t, e.Message, msgNetwork)
	})

	t.Run("attempt deadline", func(t *testing.T) {
		e := classify(&attemptOutcome{method: "GET", url: target, err: errors.New("canceled"), attemptTimedOut: true})
		assert.Equal(t, KindTimeout, e.Kind)
		assert.Equal(t, nethttp.StatusRequestTimeout, e.Status)
		assert.Equal(t, "Request timeout for GET "+target, e.Message)
		assert.True(t, e.IsRetryable())
		assert.False(t, e.HasResponse())
	})

	t.Run("net error timeout", func(t *testing.T) {
		e := classify(&attemptOutcome{method: "GET", url: target, err: &url.Error{Op: "Get", URL: target, Err: timeoutErr{}}})
		assert.Equal(t, KindTimeout, e.Kind)
	})

	t.Run("deadline exceeded", func(t *testing.T) {
		e := classify(&attemptOutcome{method: "GET", url: target, err: fmt.Errorf("wrapped: %w", context.DeadlineExceeded)})
		assert.Equal(t, KindTimeout, e.Kind)
	})

	t.Run("caller canceled", func(t *testing.T) {
		e := classify(&attemptOutcome{method: "GET", url: target, err: context.Canceled, callerErr: context.Canceled})
		assert.Equal(t, KindUnknown, e.Kind)
		assert.Equal(t, CodeCanceled, e.Code)
		assert.False(t, e.IsRetryable())
	})
}

func TestClassifyIncompleteBody(t *testing.T) {
	cause := io.ErrUnexpectedEOF

	t.Run("error status keeps its kind", func(t *testing.T) {
		e := classify(&attemptOutcome{method: "GET", url: "u", status: 404, headers: nethttp.Header{}, body: []byte(`{"status`), readErr: cause})

		assert.Equal(t, KindNotFound, e.Kind)
		assert.Equal(t, 404, e.Status)
		assert.Equal(t, CodeNotFound, e.Code)
		assert.False(t, e.IsRetryable())
		assert.True(t, e.HasResponse())
		assert.ErrorIs(t, e, cause)
	})

	t.Run("success status becomes bad gateway", func(t *testing.T) {
		e := classify(&attemptOutcome{method: "GET", url: "u", status: 200, headers: nethttp.Header{}, body: []byte(`{"id":`), readErr: cause})

		assert.Equal(t, KindServerError, e.Kind)
		assert.Equal(t, nethttp.StatusBadGateway, e.Status)
		assert.Equal(t, CodeIncompleteBody, e.Code)
		assert.True(t, e.IsRetryable())
		assert.False(t, e.IsNetworkError())
		assert.ErrorIs(t, e, cause)
	})
}

func TestClassifyRateLimitHint(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("delta seconds", func(t *testing.T) {
		h := nethttp.Header{}
		h.Set(HeaderRetryAfter, "12")
		e := classify(&attemptOutcome{method: "GET", url: "u", status: 429, headers: h, now: now})

		assert.Equal(t, 12*time.Second, e.RetryAfter)
		assert.Equal(t, msgRateLimited+" Retry after 12 seconds.", e.Message)
	})

	t.Run("http date", func(t *testing.T) {
		h := nethttp.Header{}
		h.Set(HeaderRetryAfter, now.Add(90*time.Second).Format(nethttp.TimeFormat))
		e := classify(&attemptOutcome{method: "GET", url: "u", status: 429, headers: h, now: now})

		assert.Equal(t, 90*time.Second, e.RetryAfter)
		assert.Equal(t, msgRateLimited+" Retry after 90 seconds.", e.Message)
	})

	t.Run("zero", func(t *testing.T) {
		h := nethttp.Header{}
		h.Set(HeaderRetryAfter, "0")
		e := classify(&attemptOutcome{method: "GET", url: "u", status: 429, headers: h, now: now})

		assert.Zero(t, e.RetryAfter)
		assert.True(t, e.retryAfterSet)
		assert.Equal(t, msgRateLimited+" Retry after 0 seconds.", e.Message)
	})

	t.Run("unparseable", func(t *testing.T) {
		h := nethttp.Header{}
		h.Set(HeaderRetryAfter, "soon")
		e := classify(&attemptOutcome{method: "GET", url: "u", status: 429, headers: h, now: now})

		assert.False(t, e.retryAfterSet)
		assert.Equal(t, msgRateLimited, e.Message)
	})

	t.Run("absent", func(t *testing.T) {
		e := classify(&attemptOutcome{method: "GET", url: "u", status: 429, headers: nethttp.Header{}, now: now})
		assert.Zero(t, e.RetryAfter)
		assert.Equal(t, msgRateLimited, e.Message)
	})
}

func TestErrorHelpers(t *testing.T) {
	apiErr := &APIError{Kind: KindNotFound, Status: 404, Message: msgNotFound}
	wrapped := fmt.Errorf("fetching movie: %w", apiErr)

	got, ok := AsAPIError(wrapped)
	require.True(t, ok)
	assert.Same(t, apiErr, got)
	assert.True(t, IsKind(wrapped, KindNotFound))
	assert.False(t, IsKind(wrapped, KindUnauthorized))
	assert.True(t, IsHTTPStatusError(wrapped, 404))
	assert.False(t, IsHTTPStatusError(errors.New("plain"), 404))
	assert.Equal(t, "not-found error: Resource not found. (status: 404)", apiErr.Error())

	assert.True(t, IsSuccessStatus(200))
	assert.True(t, IsSuccessStatus(204))
	assert.False(t, IsSuccessStatus(304))
}

func TestErrorBodyIsTruncated(t *testing.T) {
	big := make([]byte, maxErrorBodyBytes*2)
	for i := range big {
		big[i] = 'x'
	}
	e := classify(&attemptOutcome{method: "GET", url: "u", status: 500, headers: nethttp.Header{}, body: big})
	assert.Len(t, e.Body, maxErrorBodyBytes)
}

func TestDisplayURLStripsCredentials(t *testing.T) {
	u, err := url.Parse("https://user:pw@api.example.test/3/movie/1?api_key=secret#frag")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.test/3/movie/1", displayURL(u))
	assert.Empty(t, displayURL(nil))
}
