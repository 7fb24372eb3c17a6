package testing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cineflex/cineflex/cache"
)

// MockCache is an in-memory cache implementation for testing.
// It implements cache.Cache with configurable failures and delays, and tracks calls for assertions.
//
// Example usage:
//
//	mock := NewMockCache()
//	_ = mock.Set(ctx, "key", []byte("value"))
//	data, err := mock.Get(ctx, "key")
type MockCache struct {
	mu   sync.RWMutex
	data map[string][]byte

	closed atomic.Bool

	// Configurable behavior
	delay       time.Duration
	getError    error
	setError    error
	deleteError error
	healthError error

	// Operation tracking
	getCalls    atomic.Int64
	setCalls    atomic.Int64
	deleteCalls atomic.Int64
	healthCalls atomic.Int64
	closeCalls  atomic.Int64
}

var _ cache.Cache = (*MockCache)(nil)

// NewMockCache creates a new MockCache with default behavior.
func NewMockCache() *MockCache {
	return &MockCache{data: make(map[string][]byte)}
}

// WithDelay configures a delay for all operations.
func (m *MockCache) WithDelay(delay time.Duration) *MockCache {
	m.delay = delay
	return m
}

// WithGetFailure configures Get operations to return an error.
func (m *MockCache) WithGetFailure(err error) *MockCache {
	m.getError = err
	return m
}

// WithSetFailure configures Set operations to return an error.
func (m *MockCache) WithSetFailure(err error) *MockCache {
	m.setError = err
	return m
}

// WithDeleteFailure configures Delete operations to return an error.
func (m *MockCache) WithDeleteFailure(err error) *MockCache {
	m.deleteError = err
	return m
}

// WithHealthFailure configures Health operations to return an error.
func (m *MockCache) WithHealthFailure(err error) *MockCache {
	m.healthError = err
	return m
}

func (m *MockCache) wait(ctx context.Context) error {
	if m.delay <= 0 {
		return nil
	}
	select {
	case <-time.After(m.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get retrieves a value from the cache.
func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.getCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.closed.Load() {
		return nil, cache.ErrClosed
	}
	if m.getError != nil {
		return nil, m.getError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.data[key]
	if !ok {
		return nil, cache.ErrNotFound
	}
	return append([]byte(nil), val...), nil
}

// Set stores a value in the cache.
func (m *MockCache) Set(ctx context.Context, key string, value []byte) error {
	m.setCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return err
	}
	if m.closed.Load() {
		return cache.ErrClosed
	}
	if m.setError != nil {
		return m.setError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes a value from the cache.
func (m *MockCache) Delete(ctx context.Context, key string) error {
	m.deleteCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return err
	}
	if m.closed.Load() {
		return cache.ErrClosed
	}
	if m.deleteError != nil {
		return m.deleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Health checks cache health.
func (m *MockCache) Health(ctx context.Context) error {
	m.healthCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return err
	}
	if m.closed.Load() {
		return cache.ErrClosed
	}
	return m.healthError
}

// Stats returns mock cache statistics.
func (m *MockCache) Stats() (map[string]any, error) {
	if m.closed.Load() {
		return nil, cache.ErrClosed
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]any{
		"entries":      len(m.data),
		"get_calls":    m.getCalls.Load(),
		"set_calls":    m.setCalls.Load(),
		"delete_calls": m.deleteCalls.Load(),
	}, nil
}

// Close closes the cache.
func (m *MockCache) Close() error {
	m.closeCalls.Add(1)
	m.closed.Store(true)
	return nil
}

// Has reports whether key is stored, without counting as a Get.
func (m *MockCache) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok
}

// GetCalls returns the number of Get invocations.
func (m *MockCache) GetCalls() int64 { return m.getCalls.Load() }

// SetCalls returns the number of Set invocations.
func (m *MockCache) SetCalls() int64 { return m.setCalls.Load() }

// DeleteCalls returns the number of Delete invocations.
func (m *MockCache) DeleteCalls() int64 { return m.deleteCalls.Load() }

// CloseCalls returns the number of Close invocations.
func (m *MockCache) CloseCalls() int64 { return m.closeCalls.Load() }
