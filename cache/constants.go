package cache

import "time"

// Memory cache defaults.
const (
	// DefaultTTL is how long a payload stays fresh.
	DefaultTTL = 5 * time.Minute

	// DefaultCleanWindow is how often bigcache sweeps expired entries.
	DefaultCleanWindow = 1 * time.Minute

	// DefaultShards must be a power of two.
	DefaultShards = 64

	// DefaultMaxEntrySizeBytes sizes the initial shard allocation; larger entries are still accepted.
	DefaultMaxEntrySizeBytes = 4 * 1024

	// DefaultMaxEntriesInWindow sizes the initial shard allocation together with DefaultMaxEntrySizeBytes.
	DefaultMaxEntriesInWindow = 1024

	// DefaultHardMaxCacheSizeMB bounds total memory. Zero means unbounded.
	DefaultHardMaxCacheSizeMB = 64

	// expiryHeaderSize prefixes every stored entry with its expiry as unix nanoseconds
	expiryHeaderSize = 8
)
