// Package proxy forwards catalog API calls from browsers, injecting the bearer
// token server-side so it never reaches the client.
package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/cineflex/cineflex/httpclient"
	"github.com/cineflex/cineflex/logger"
)

const (
	// FunctionPrefix is the serverless function mount point.
	FunctionPrefix = "/.netlify/functions/tmdb-proxy"
	// AliasPrefix is the public alias rewritten onto FunctionPrefix.
	AliasPrefix = "/api/tmdb"

	// HeaderForwardedURI carries the pre-rewrite request URI when a front proxy rewrites AliasPrefix.
	HeaderForwardedURI = "X-Forwarded-Uri"
	// HeaderOriginalURI is the nginx spelling of HeaderForwardedURI.
	HeaderOriginalURI = "X-Original-Uri"

	corsAllowHeaders = "Content-Type, Authorization, X-Requested-With"
	corsAllowMethods = "GET, POST, PUT, DELETE, OPTIONS"

	// maxBodyBytes bounds forwarded request bodies
	maxBodyBytes = 1 << 20
)

// Error envelope messages.
const (
	msgInvalidPath      = "Invalid API path"
	msgTokenMissing     = "TMDB API token not configured"
	msgUpstreamFallback = "API Error"
	msgUnavailable      = "Service unavailable"
	msgInternal         = "Internal server error"
)

var aliasPattern = regexp.MustCompile(`/api/tmdb(/[^?#]*)`)

// ErrorBody is the JSON envelope of every proxy failure.
type ErrorBody struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
}

// Registrar is satisfied by *echo.Echo, *echo.Group and server route groups.
type Registrar interface {
	Add(method, path string, handler echo.HandlerFunc, middleware ...echo.MiddlewareFunc) *echo.Route
}

// Handler forwards requests under its prefixes to the upstream catalog API.
type Handler struct {
	client   httpclient.Client
	token    string
	logger   logger.Logger
	prefixes []string
}

// New creates a Handler. The client should be built without a credential of its own;
// token is attached to every forwarded request. An empty token makes every call fail with 500.
func New(client httpclient.Client, token string, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		client:   client,
		token:    token,
		logger:   log,
		prefixes: []string{FunctionPrefix, AliasPrefix},
	}
}

// Prefixes returns the mount points served by the handler.
func (h *Handler) Prefixes() []string {
	return append([]string(nil), h.prefixes...)
}

// Register mounts the handler under every prefix for every forwarded method.
func (h *Handler) Register(r Registrar) {
	methods := []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
	}
	for _, prefix := range h.prefixes {
		for _, m := range methods {
			r.Add(m, prefix, h.Handle)
			r.Add(m, prefix+"/*", h.Handle)
		}
	}
}

// Handle forwards one request.
func (h *Handler) Handle(c echo.Context) error {
	setCORSHeaders(c.Response().Header())

	req := c.Request()
	if req.Method == http.MethodOptions {
		return c.NoContent(http.StatusOK)
	}

	if h.token == "" {
		h.logger.Error().Msg("Proxy token is not configured")
		return writeError(c, http.StatusInternalServerError, msgTokenMissing)
	}

	path := h.upstreamPath(req)
	if path == "" {
		return writeError(c, http.StatusBadRequest, msgInvalidPath)
	}

	var body []byte
	if req.Body != nil && req.Method != http.MethodGet {
		b, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
		if err != nil {
			h.logger.Error().Err(err).Msg("Failed to read proxied request body")
			return writeError(c, http.StatusInternalServerError, msgInternal)
		}
		if len(b) > 0 {
			body = b
		}
	}

	target := path
	if req.URL.RawQuery != "" {
		target += "?" + req.URL.RawQuery
	}
	upstreamReq := &httpclient.Request{
		Path:    target,
		Headers: map[string]string{echo.HeaderAuthorization: "Bearer " + h.token},
	}
	if body != nil {
		upstreamReq.Body = body
	}

	resp, err := h.client.Do(req.Context(), req.Method, upstreamReq)
	if err != nil {
		return h.writeUpstreamError(c, path, err)
	}
	return c.Blob(resp.StatusCode, echo.MIMEApplicationJSON, resp.Body)
}

func (h *Handler) writeUpstreamError(c echo.Context, path string, err error) error {
	apiErr, ok := httpclient.AsAPIError(err)
	switch {
	case ok && apiErr.HasResponse():
		msg := apiErr.UpstreamMessage
		if msg == "" {
			msg = msgUpstreamFallback
		}
		h.logger.Warn().Str("path", path).Int("status", apiErr.Status).Str("kind", string(apiErr.Kind)).Msg("Upstream returned an error")
		return writeError(c, apiErr.Status, msg)
	case ok && (apiErr.Kind == httpclient.KindNetworkUnreachable || apiErr.Kind == httpclient.KindTimeout):
		h.logger.Error().Err(err).Str("path", path).Msg("Upstream unreachable")
		return writeError(c, http.StatusServiceUnavailable, msgUnavailable)
	case errors.Is(err, context.Canceled):
		h.logger.Debug().Str("path", path).Msg("Client went away before the upstream answered")
		return writeError(c, http.StatusInternalServerError, msgInternal)
	default:
		h.logger.Error().Err(err).Str("path", path).Msg("Proxy request failed")
		return writeError(c, http.StatusInternalServerError, msgInternal)
	}
}

// upstreamPath strips the mount prefix. When nothing is left, the path is recovered
// from the pre-rewrite URI. Empty means the request names no API resource.
func (h *Handler) upstreamPath(req *http.Request) string {
	for _, prefix := range h.prefixes {
		if rest, ok := strings.CutPrefix(req.URL.Path, prefix); ok {
			if rest != "" && rest != "/" && strings.HasPrefix(rest, "/") {
				return rest
			}
			break
		}
	}

	for _, raw := range []string{req.Header.Get(HeaderForwardedURI), req.Header.Get(HeaderOriginalURI), req.RequestURI} {
		if m := aliasPattern.FindStringSubmatch(raw); m != nil && m[1] != "/" {
			return m[1]
		}
	}
	return ""
}

func setCORSHeaders(h http.Header) {
	h.Set(echo.HeaderAccessControlAllowOrigin, "*")
	h.Set(echo.HeaderAccessControlAllowHeaders, corsAllowHeaders)
	h.Set(echo.HeaderAccessControlAllowMethods, corsAllowMethods)
	h.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
}

func writeError(c echo.Context, status int, msg string) error {
	return c.JSON(status, ErrorBody{Error: msg, StatusCode: status})
}
