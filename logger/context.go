package logger

import (
	"context"
	"sync/atomic"
)

// contextKey is the type for context keys to avoid collisions
type contextKey string

const (
	// upstreamCounterKey is the context key for tracking upstream catalog calls per request
	upstreamCounterKey contextKey = "upstream_call_counter"
	// upstreamElapsedKey is the context key for tracking total upstream elapsed time per request
	upstreamElapsedKey contextKey = "upstream_elapsed_nanos"
)

// WithUpstreamCounter creates a new context with an upstream call counter and elapsed time tracker
func WithUpstreamCounter(ctx context.Context) context.Context {
	counter := int64(0)
	elapsed := int64(0)
	ctx = context.WithValue(ctx, upstreamCounterKey, &counter)
	ctx = context.WithValue(ctx, upstreamElapsedKey, &elapsed)
	return ctx
}

// IncrementUpstreamCounter increments the upstream call counter in the context
func IncrementUpstreamCounter(ctx context.Context) {
	if counter, ok := ctx.Value(upstreamCounterKey).(*int64); ok && counter != nil {
		atomic.AddInt64(counter, 1)
	}
}

// GetUpstreamCounter returns the current upstream call count from the context
func GetUpstreamCounter(ctx context.Context) int64 {
	if counter, ok := ctx.Value(upstreamCounterKey).(*int64); ok && counter != nil {
		return atomic.LoadInt64(counter)
	}
	return 0
}

// AddUpstreamElapsed adds elapsed nanoseconds to the upstream elapsed time in the context
func AddUpstreamElapsed(ctx context.Context, nanos int64) {
	if elapsed, ok := ctx.Value(upstreamElapsedKey).(*int64); ok && elapsed != nil {
		atomic.AddInt64(elapsed, nanos)
	}
}

// GetUpstreamElapsed returns the current upstream elapsed time in nanoseconds from the context
func GetUpstreamElapsed(ctx context.Context) int64 {
	if elapsed, ok := ctx.Value(upstreamElapsedKey).(*int64); ok && elapsed != nil {
		return atomic.LoadInt64(elapsed)
	}
	return 0
}
