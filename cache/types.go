// Package cache provides the key/value cache used to hold catalog API payloads.
// Backends are vendor-agnostic behind the Cache interface; NewMemory provides
// an in-process implementation on top of bigcache.
package cache

import "context"

// Cache defines the core interface for cache operations.
// All implementations must be thread-safe and context-aware.
//
// Example usage:
//
//	c, err := cache.NewMemory(cache.MemoryConfig{TTL: 5 * time.Minute})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	err = c.Set(ctx, "movie:550", payload)
//	data, err := c.Get(ctx, "movie:550")
type Cache interface {
	// Get retrieves a value from the cache by key.
	// Returns ErrNotFound if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value under the cache-wide TTL, overwriting existing values.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a value from the cache.
	// Returns nil if the key doesn't exist (idempotent operation).
	Delete(ctx context.Context, key string) error

	// Health reports whether the cache can serve requests.
	Health(ctx context.Context) error

	// Stats returns cache statistics for observability.
	// Keys depend on the implementation.
	Stats() (map[string]any, error)

	// Close releases resources. After calling Close, the cache instance should not be used.
	Close() error
}
