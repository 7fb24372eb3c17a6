package httpclient

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"math"
	nethttp "net/http"
	"strconv"
	"strings"
	"time"
)

// maxBackoffShift caps the exponent so base*2^n cannot overflow int64 nanoseconds
const maxBackoffShift = 30

// backoff computes capped exponential delays with proportional jitter.
type backoff struct {
	base   time.Duration
	max    time.Duration
	jitter float64
	// rand returns a value in [0, 1)
	rand func() float64
}

// delay returns the wait before retry n, where n starts at 1.
func (b backoff) delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	shift := n - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	exp := float64(b.base) * math.Pow(2, float64(shift))
	if exp >= float64(b.max) {
		return b.max
	}
	d := exp + exp*b.jitter*b.rand()
	if d > float64(b.max) {
		return b.max
	}
	return time.Duration(d)
}

// cryptoFloat64 returns a uniform value in [0, 1) from crypto/rand.
func cryptoFloat64() float64 {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		// On RNG failure, use no jitter
		return 0
	}
	return float64(binary.BigEndian.Uint64(buf[:])>>11) / (1 << 53)
}

func isRetryableStatus(code int) bool {
	switch code {
	case nethttp.StatusRequestTimeout,
		nethttp.StatusTooManyRequests,
		nethttp.StatusInternalServerError,
		nethttp.StatusBadGateway,
		nethttp.StatusServiceUnavailable,
		nethttp.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// parseRetryAfter interprets a Retry-After header as delta-seconds or an HTTP-date.
// ok is false when the header is absent or unparseable. Negative or past values clamp to zero.
func parseRetryAfter(raw string, now time.Time) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return 0, true
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := nethttp.ParseTime(raw); err == nil {
		if d := at.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

// retryDelay chooses the wait before retry n. A rate-limit hint replaces the computed delay.
func (c *client) retryDelay(n int, lastErr *APIError) time.Duration {
	if lastErr != nil && lastErr.Kind == KindRateLimited && (lastErr.retryAfterSet || lastErr.RetryAfter > 0) {
		return lastErr.RetryAfter
	}
	return c.backoff.delay(n)
}

// sleepContext waits for d or until ctx ends.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
