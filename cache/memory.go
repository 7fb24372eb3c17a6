package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/allegro/bigcache/v3"
	"go.opentelemetry.io/otel/metric"

	"github.com/cineflex/cineflex/cache/internal/tracking"
)

// MemoryConfig configures the bigcache-backed cache.
type MemoryConfig struct {
	// TTL is the freshness window for every entry
	TTL time.Duration
	// CleanWindow is the interval between expired-entry sweeps
	CleanWindow time.Duration
	// Shards must be a power of two
	Shards            int
	MaxEntrySizeBytes int
	// HardMaxCacheSizeMB bounds total memory; zero means unbounded
	HardMaxCacheSizeMB int
	// MeterProvider receives cache metrics; nil uses the global provider
	MeterProvider metric.MeterProvider
}

// Validate performs fail-fast validation of the memory cache configuration.
func (c *MemoryConfig) Validate() error {
	if c.TTL < 0 {
		return NewConfigError("cache.ttl", fmt.Sprintf("must not be negative: %s", c.TTL), nil)
	}
	if c.CleanWindow < 0 {
		return NewConfigError("cache.cleanwindow", fmt.Sprintf("must not be negative: %s", c.CleanWindow), nil)
	}
	if c.Shards < 0 || (c.Shards > 0 && c.Shards&(c.Shards-1) != 0) {
		return NewConfigError("cache.shards", fmt.Sprintf("must be a power of two: %d", c.Shards), nil)
	}
	if c.MaxEntrySizeBytes < 0 {
		return NewConfigError("cache.maxentrysizebytes", "must not be negative", nil)
	}
	if c.HardMaxCacheSizeMB < 0 {
		return NewConfigError("cache.hardmaxcachesizemb", "must not be negative", nil)
	}
	return nil
}

func (c *MemoryConfig) applyDefaults() {
	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}
	if c.CleanWindow == 0 {
		c.CleanWindow = DefaultCleanWindow
	}
	if c.Shards == 0 {
		c.Shards = DefaultShards
	}
	if c.MaxEntrySizeBytes == 0 {
		c.MaxEntrySizeBytes = DefaultMaxEntrySizeBytes
	}
}

// Memory is an in-process Cache backed by bigcache.
// Expiry is checked on every read so entries never outlive TTL,
// independent of the background clean window.
type Memory struct {
	store    *bigcache.BigCache
	ttl      time.Duration
	maxEntry int
	closed   atomic.Bool
	metrics  *tracking.Recorder
	now      func() time.Time
}

var _ Cache = (*Memory)(nil)

// NewMemory creates a memory cache. Zero config values fall back to package defaults.
func NewMemory(cfg MemoryConfig) (*Memory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	bc := bigcache.DefaultConfig(cfg.TTL)
	bc.Shards = cfg.Shards
	bc.CleanWindow = cfg.CleanWindow
	bc.MaxEntrySize = cfg.MaxEntrySizeBytes + expiryHeaderSize
	bc.MaxEntriesInWindow = DefaultMaxEntriesInWindow
	bc.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	bc.Verbose = false

	store, err := bigcache.New(context.Background(), bc)
	if err != nil {
		return nil, NewConfigError("cache", "failed to create bigcache", err)
	}

	m := &Memory{
		store:   store,
		ttl:     cfg.TTL,
		metrics: tracking.NewRecorder(cfg.MeterProvider, "bigcache"),
		now:     time.Now,
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		m.maxEntry = cfg.HardMaxCacheSizeMB*1024*1024/cfg.Shards - expiryHeaderSize
	}
	if err := m.metrics.ObserveEntries(func() int64 { return int64(store.Len()) }); err != nil {
		_ = store.Close()
		return nil, NewConfigError("cache", "failed to register entry gauge", err)
	}
	return m, nil
}

// Get retrieves a fresh value or ErrNotFound.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	value, err := m.get(key)
	hit := err == nil
	opErr := err
	if errors.Is(err, ErrNotFound) {
		opErr = nil
	}
	m.metrics.RecordOperation(ctx, tracking.OpGet, time.Since(start), hit, opErr)
	return value, err
}

func (m *Memory) get(key string) ([]byte, error) {
	if m.closed.Load() {
		return nil, NewOperationError(tracking.OpGet, key, ErrClosed)
	}
	entry, err := m.store.Get(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, NewOperationError(tracking.OpGet, key, err)
	}
	if len(entry) < expiryHeaderSize {
		_ = m.store.Delete(key)
		return nil, ErrNotFound
	}
	expiresAt := int64(binary.BigEndian.Uint64(entry[:expiryHeaderSize]))
	if m.now().UnixNano() >= expiresAt {
		_ = m.store.Delete(key)
		return nil, ErrNotFound
	}

	// bigcache returns a copy, so the payload can be handed out directly
	return entry[expiryHeaderSize:], nil
}

// Set stores value until the cache TTL elapses.
func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := m.set(key, value)
	m.metrics.RecordOperation(ctx, tracking.OpSet, time.Since(start), false, err)
	return err
}

func (m *Memory) set(key string, value []byte) error {
	if m.closed.Load() {
		return NewOperationError(tracking.OpSet, key, ErrClosed)
	}
	if m.maxEntry > 0 && len(value) > m.maxEntry {
		return NewOperationError(tracking.OpSet, key, ErrEntryTooLarge)
	}

	entry := make([]byte, expiryHeaderSize+len(value))
	binary.BigEndian.PutUint64(entry, uint64(m.now().Add(m.ttl).UnixNano()))
	copy(entry[expiryHeaderSize:], value)

	if err := m.store.Set(key, entry); err != nil {
		return NewOperationError(tracking.OpSet, key, err)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (m *Memory) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := m.delete(key)
	m.metrics.RecordOperation(ctx, tracking.OpDelete, time.Since(start), false, err)
	return err
}

func (m *Memory) delete(key string) error {
	if m.closed.Load() {
		return NewOperationError(tracking.OpDelete, key, ErrClosed)
	}
	if err := m.store.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return NewOperationError(tracking.OpDelete, key, err)
	}
	return nil
}

// Health fails only once the cache is closed.
func (m *Memory) Health(ctx context.Context) error {
	if m.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

// Stats reports bigcache counters.
func (m *Memory) Stats() (map[string]any, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	s := m.store.Stats()
	return map[string]any{
		"entries":        m.store.Len(),
		"capacity_bytes": m.store.Capacity(),
		"hits":           s.Hits,
		"misses":         s.Misses,
		"delete_hits":    s.DelHits,
		"delete_misses":  s.DelMisses,
		"collisions":     s.Collisions,
		"ttl":            m.ttl.String(),
	}, nil
}

// Close stops the clean-up goroutine and releases memory. Subsequent calls are no-ops.
func (m *Memory) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	return errors.Join(m.metrics.Close(), m.store.Close())
}
