// Package testing provides an in-memory cache.Cache mock for unit tests.
//
// MockCache needs no setup and can be configured to fail or stall:
//
//	mock := testing.NewMockCache().
//	    WithGetFailure(errors.New("backend down")).
//	    WithDelay(10 * time.Millisecond)
//
// Call counters (GetCalls, SetCalls, ...) support assertions on cache usage.
package testing
