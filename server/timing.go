package server

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cineflex/cineflex/logger"
)

// Timing adds X-Response-Time and X-Upstream-Calls headers. Headers are written
// in a before-hook so they land even when the handler streams its body.
func Timing() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// SAFETY: Response may be nil after a timeout
			if resp := c.Response(); resp != nil {
				resp.Before(func() {
					h := resp.Header()
					h.Set(HeaderXResponseTime, time.Since(start).String())
					h.Set(HeaderXUpstreamCalls, strconv.FormatInt(logger.GetUpstreamCounter(c.Request().Context()), 10))
				})
			}
			return next(c)
		}
	}
}

// UpstreamStats seeds the request context with upstream call counters that the
// catalog client increments and the request logger reports.
func UpstreamStats() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := logger.WithUpstreamCounter(c.Request().Context())
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
