package server

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
)

// Timeout adds a request-scoped deadline without swapping echo's response writer.
// When the deadline fires the handler observes cancellation and the error handler
// answers 503.
//
// echo's middleware.TimeoutWithConfig wraps net/http.TimeoutHandler, whose writer
// leaves c.Response() unusable for the logging and timing middlewares.
func Timeout(duration time.Duration) echo.MiddlewareFunc {
	if duration <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			parent := c.Request().Context()
			if err := parent.Err(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(parent, duration)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err == nil && !c.Response().Committed && ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}
