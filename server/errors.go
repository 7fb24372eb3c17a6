package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cineflex/cineflex/catalog"
	"github.com/cineflex/cineflex/config"
	"github.com/cineflex/cineflex/httpclient"
	"github.com/cineflex/cineflex/logger"
)

const (
	msgInternal      = "Internal server error"
	msgInternalQuiet = "An error occurred while processing your request"
	msgUnavailable   = "Service unavailable"
	msgTimeout       = "Request timed out"
)

// ErrorResponse is the JSON body of every error the server produces.
// It matches the proxy envelope so browsers see one error shape.
type ErrorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
	RequestID  string `json:"request_id,omitempty"`
}

// resolveError maps a handler error onto a status and a client-safe message.
func resolveError(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		switch m := he.Message.(type) {
		case string:
			return he.Code, m
		case error:
			return he.Code, m.Error()
		default:
			return he.Code, http.StatusText(he.Code)
		}
	}

	if errors.Is(err, catalog.ErrInvalidArgument) {
		return http.StatusBadRequest, err.Error()
	}

	if apiErr, ok := httpclient.AsAPIError(err); ok {
		switch {
		case apiErr.HasResponse():
			msg := apiErr.UpstreamMessage
			if msg == "" {
				msg = apiErr.Message
			}
			return apiErr.Status, msg
		case apiErr.Kind == httpclient.KindNetworkUnreachable, apiErr.Kind == httpclient.KindTimeout:
			return http.StatusServiceUnavailable, msgUnavailable
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, msgTimeout
	}
	return http.StatusInternalServerError, msgInternal
}

// errorHandler writes ErrorResponse envelopes. Outside debug mode, 500 details are hidden.
func errorHandler(cfg *config.Config, log logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, msg := resolveError(err)
		if status >= http.StatusInternalServerError {
			log.Error().
				Err(err).
				Str("request_id", requestIDOf(c)).
				Str("path", c.Request().URL.Path).
				Msg("Unhandled request error")
			if status == http.StatusInternalServerError && !cfg.App.Debug {
				msg = msgInternalQuiet
			}
		}

		body := ErrorResponse{Error: msg, StatusCode: status, RequestID: requestIDOf(c)}
		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			log.Error().Err(writeErr).Msg("Failed to write error response")
		}
	}
}

// requestIDOf reads the correlation id. The response may be nil after a timeout.
func requestIDOf(c echo.Context) string {
	if resp := c.Response(); resp != nil {
		if id := resp.Header().Get(echo.HeaderXRequestID); id != "" {
			return id
		}
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}
