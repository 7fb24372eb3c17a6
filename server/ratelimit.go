package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const (
	// BurstMultiplier derives the burst when none is configured
	BurstMultiplier = 2
	// RateLimitCleanup expires idle per-client limiters
	RateLimitCleanup = 3 * time.Minute

	msgRateLimited = "Too many requests"
)

// RateLimit limits requests per client IP. A non-positive requestsPerSecond
// disables limiting; a non-positive burst becomes requestsPerSecond*BurstMultiplier.
func RateLimit(requestsPerSecond, burst int, skipper middleware.Skipper) echo.MiddlewareFunc {
	if requestsPerSecond <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}
	if burst <= 0 {
		burst = requestsPerSecond * BurstMultiplier
	}
	if skipper == nil {
		skipper = middleware.DefaultSkipper
	}

	deny := func(c echo.Context) error {
		return c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error:      msgRateLimited,
			StatusCode: http.StatusTooManyRequests,
			RequestID:  requestIDOf(c),
		})
	}

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: skipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(requestsPerSecond),
				Burst:     burst,
				ExpiresIn: RateLimitCleanup,
			},
		),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, _ error) error {
			return deny(c)
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return deny(c)
		},
	})
}
