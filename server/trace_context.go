package server

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/cineflex/cineflex/trace"
)

// RequestID reuses an inbound X-Request-ID or generates one, echoes it on the
// response and stores it in the request context, where the catalog client logs
// it next to each outbound attempt.
func RequestID() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator:    trace.NewRequestID,
		TargetHeader: trace.HeaderXRequestID,
		RequestIDHandler: func(c echo.Context, id string) {
			ctx := trace.WithTraceID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
		},
	})
}
