package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cineflex/cineflex/logger"
)

const (
	resultError = "ERROR"
	resultWarn  = "WARN"
	resultInfo  = "INFO"
)

// LoggerConfig configures the request logging middleware.
type LoggerConfig struct {
	// SkipPaths lists probe endpoints excluded from logging
	SkipPaths []string

	// SlowRequestThreshold marks requests slower than this with result_code WARN.
	// Zero disables slow request detection.
	SlowRequestThreshold time.Duration
}

// Logger emits one action log per request with OpenTelemetry HTTP attribute
// names and the upstream call counters gathered by UpstreamStats.
func Logger(log logger.Logger, cfg LoggerConfig) echo.MiddlewareFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			if _, ok := skip[path]; ok {
				return next(c)
			}

			start := time.Now()
			err := next(c)
			latency := time.Since(start)

			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				// The error handler has not run yet; log the status it will write
				status, _ = resolveError(err)
			}
			logAction(c, log, cfg, latency, status, err)
			return err
		}
	}
}

func logAction(c echo.Context, log logger.Logger, cfg LoggerConfig, latency time.Duration, status int, err error) {
	ctx := c.Request().Context()
	level, resultCode := determineSeverity(status, latency, cfg.SlowRequestThreshold, err)

	var event logger.LogEvent
	switch level {
	case resultError:
		event = log.Error()
	case resultWarn:
		event = log.Warn()
	default:
		event = log.Info()
	}
	if err != nil {
		event = event.Err(err)
	}

	method := c.Request().Method
	uri := c.Request().URL.Path

	event.
		Str("log.type", "action").
		Str("request_id", requestIDOf(c)).
		Str("http.request.method", method).
		Int("http.response.status_code", status).
		Int64("http.server.request.duration", latency.Nanoseconds()).
		Str("url.path", uri).
		Str("http.route", c.Path()).
		Str("client.address", c.RealIP()).
		Str("user_agent.original", c.Request().UserAgent()).
		Str("result_code", resultCode).
		Int64("upstream_calls", logger.GetUpstreamCounter(ctx)).
		Int64("upstream_elapsed", logger.GetUpstreamElapsed(ctx)).
		Msg(actionMessage(method, uri, latency, status))
}

// determineSeverity returns the log level and result code for a finished request.
// 5xx and unanswered errors are ERROR, 4xx are WARN, slow successes keep the INFO
// level but carry result code WARN.
func determineSeverity(status int, latency, threshold time.Duration, err error) (level, resultCode string) {
	if status >= http.StatusInternalServerError || (err != nil && status == 0) {
		return resultError, resultError
	}
	if status >= http.StatusBadRequest {
		return resultWarn, resultWarn
	}
	if threshold > 0 && latency > threshold {
		return resultInfo, resultWarn
	}
	return resultInfo, resultInfo
}

// actionMessage renders e.g. "GET /api/tmdb/movie/popular completed in 12ms with status 200".
func actionMessage(method, path string, latency time.Duration, status int) string {
	return method + " " + path + " completed in " + latency.String() + " with status " + strconv.Itoa(status)
}
