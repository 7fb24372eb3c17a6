package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrMissingCredential is returned by Build when no API key or bearer token is configured.
var ErrMissingCredential = errors.New("catalog API credential is not configured")

// Kind is the closed set of failure categories produced by the client.
type Kind string

const (
	KindNetworkUnreachable Kind = "network-unreachable"
	KindTimeout            Kind = "timeout"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not-found"
	KindRateLimited        Kind = "rate-limited"
	KindServerError        Kind = "server-error"
	KindUnknown            Kind = "unknown"
)

// Error codes attached to classified errors when the upstream supplies none.
const (
	CodeTimeout        = "TIMEOUT_ERROR"
	CodeNetwork        = "NETWORK_ERROR"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
	CodeNotFound       = "NOT_FOUND"
	CodeRateLimited    = "RATE_LIMITED"
	CodeInternalServer = "INTERNAL_SERVER_ERROR"
	CodeServerError    = "SERVER_ERROR"
	CodeCanceled       = "REQUEST_CANCELED"
	CodeValidation     = "VALIDATION_ERROR"
	CodeInterceptor    = "INTERCEPTOR_ERROR"
	CodeIncompleteBody = "INCOMPLETE_RESPONSE"
)

// User-facing messages.
const (
	msgNetwork     = "Network error. Please check your connection."
	msgAPI         = "API error. Please try again later."
	msgNotFound    = "Resource not found."
	msgUnauthorize = "Unauthorized access."
	msgRateLimited = "Too many requests. Please try again later."
	msgValidation  = "Invalid input data."
	msgUnknown     = "An unknown error occurred."
)

// maxErrorBodyBytes bounds the upstream body fragment kept on an APIError
const maxErrorBodyBytes = 512

// APIError is the single error type surfaced by the client.
type APIError struct {
	Kind    Kind
	Message string
	// Status is the HTTP status, 408 for local timeouts and 0 for failures without a response
	Status int
	// Code is upstream-supplied when available, otherwise one of the Code* constants
	Code string
	// UpstreamMessage is the human-readable field of the upstream error payload, if any
	UpstreamMessage string
	// Body is a truncated fragment of the upstream error body
	Body []byte
	// RetryAfter is the upstream rate-limit hint, zero when absent
	RetryAfter time.Duration
	Method     string
	URL        string

	cause error
	// fromResponse is set when a status line was received, even if the body was cut short
	fromResponse bool
	// retryAfterSet records a parseable Retry-After header, including zero
	retryAfterSet bool
}

func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s error: %s (status: %d): %v", e.Kind, e.Message, e.Status, e.cause)
	}
	return fmt.Sprintf("%s error: %s (status: %d)", e.Kind, e.Message, e.Status)
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// IsRetryable reports whether another attempt may succeed.
// Network failures always qualify; otherwise only the statuses 408, 429, 500, 502, 503 and 504 do.
func (e *APIError) IsRetryable() bool {
	if e.Kind == KindNetworkUnreachable {
		return true
	}
	switch e.Kind {
	case KindTimeout, KindRateLimited, KindServerError:
		return isRetryableStatus(e.Status)
	default:
		return false
	}
}

// IsNetworkError reports whether no response was received at all.
func (e *APIError) IsNetworkError() bool {
	return e.Kind == KindNetworkUnreachable
}

// HasResponse reports whether the error was built from an upstream HTTP response.
func (e *APIError) HasResponse() bool {
	return e.Status > 0 && (e.cause == nil || e.fromResponse)
}

// AsAPIError extracts an *APIError from err.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsKind checks if an error is a classified error of the given kind
func IsKind(err error, kind Kind) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Kind == kind
}

// IsHTTPStatusError checks if an error is a classified error with a specific status code
func IsHTTPStatusError(err error, statusCode int) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Status == statusCode
}

// IsSuccessStatus checks if a status code represents success (2xx)
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// attemptOutcome captures everything classification needs from one physical attempt.
type attemptOutcome struct {
	method string
	url    string

	// err is the transport error; nil when a response was received
	err error
	// attemptTimedOut is set when the per-attempt deadline expired
	attemptTimedOut bool
	// callerErr is the caller context's error, if it ended
	callerErr error
	// readErr is set when the status line arrived but the body could not be read in full
	readErr error

	status  int
	headers nethttp.Header
	body    []byte
	now     time.Time
}

// upstreamError is the error payload shape returned by the catalog API.
type upstreamError struct {
	StatusMessage string `json:"status_message"`
	Message       string `json:"message"`
	StatusCode    any    `json:"status_code"`
}

// classify converts an attempt outcome into exactly one APIError. It performs no I/O.
func classify(o *attemptOutcome) *APIError {
	where := fmt.Sprintf("(%s %s)", o.method, o.url)
	e := &APIError{Method: o.method, URL: o.url, cause: o.err}

	if o.err != nil {
		switch {
		case errors.Is(o.callerErr, context.Canceled):
			e.Kind, e.Code = KindUnknown, CodeCanceled
			e.Message = "Request canceled " + where
		case o.attemptTimedOut || isTimeoutErr(o.err):
			e.Kind, e.Status, e.Code = KindTimeout, nethttp.StatusRequestTimeout, CodeTimeout
			e.Message = fmt.Sprintf("Request timeout for %s %s", o.method, o.url)
		default:
			e.Kind, e.Code = KindNetworkUnreachable, CodeNetwork
			e.Message = msgNetwork + " " + where
		}
		return e
	}

	e.Status = o.status
	e.fromResponse = true
	e.cause = o.readErr
	e.Body = truncate(o.body, maxErrorBodyBytes)
	payload := parseUpstreamError(o.body)
	e.UpstreamMessage = payload.humanMessage()

	switch {
	case o.readErr != nil && IsSuccessStatus(o.status):
		// a 2xx whose body broke off is treated like a bad gateway
		e.Kind, e.Status, e.Code = KindServerError, nethttp.StatusBadGateway, CodeIncompleteBody
		e.Message = "Incomplete response body " + where
	case o.status == nethttp.StatusUnauthorized:
		e.Kind, e.Code = KindUnauthorized, CodeUnauthorized
		e.Message = msgUnauthorize + " " + where
	case o.status == nethttp.StatusForbidden:
		e.Kind, e.Code = KindForbidden, CodeForbidden
		e.Message = fmt.Sprintf("Access forbidden for %s %s", o.method, o.url)
	case o.status == nethttp.StatusNotFound:
		e.Kind, e.Code = KindNotFound, CodeNotFound
		e.Message = msgNotFound + " " + where
	case o.status == nethttp.StatusRequestTimeout:
		e.Kind, e.Code = KindTimeout, CodeTimeout
		e.Message = fmt.Sprintf("Request timeout for %s %s", o.method, o.url)
	case o.status == nethttp.StatusTooManyRequests:
		e.Kind, e.Code = KindRateLimited, CodeRateLimited
		e.Message = msgRateLimited
		if d, ok := parseRetryAfter(o.headers.Get(HeaderRetryAfter), o.now); ok {
			e.RetryAfter, e.retryAfterSet = d, true
			e.Message = fmt.Sprintf("%s Retry after %d seconds.", msgRateLimited, int(e.RetryAfter.Seconds()))
		}
	case o.status >= nethttp.StatusInternalServerError:
		e.Kind, e.Code = KindServerError, CodeServerError
		if o.status == nethttp.StatusInternalServerError {
			e.Code = CodeInternalServer
		}
		e.Message = msgAPI + " " + where
	default:
		e.Kind = KindUnknown
		e.Code = payload.code()
		msg := e.UpstreamMessage
		if msg == "" {
			msg = msgUnknown
		}
		e.Message = msg + " " + where
	}
	return e
}

func newValidationError(message string) *APIError {
	return &APIError{
		Kind:    KindUnknown,
		Code:    CodeValidation,
		Message: msgValidation + " " + message,
	}
}

func newInterceptorError(method, target, stage string, err error) *APIError {
	return &APIError{
		Kind:    KindUnknown,
		Code:    CodeInterceptor,
		Message: fmt.Sprintf("%s interceptor failed (%s %s)", stage, method, target),
		Method:  method,
		URL:     target,
		cause:   err,
	}
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func parseUpstreamError(body []byte) upstreamError {
	var payload upstreamError
	if len(body) == 0 {
		return payload
	}
	_ = json.Unmarshal(body, &payload)
	return payload
}

func (u upstreamError) humanMessage() string {
	if u.StatusMessage != "" {
		return u.StatusMessage
	}
	return u.Message
}

func (u upstreamError) code() string {
	switch v := u.StatusCode.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	default:
		return ""
	}
}

// displayURL strips the query string so credentials never end up in error messages.
func displayURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	clean := *u
	clean.RawQuery = ""
	clean.Fragment = ""
	clean.User = nil
	return clean.String()
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
