package pagination

import (
	"context"
	"strings"
	"sync"
)

// Cache deduplicates page fetches. Components holding the same key share the
// in-flight request and its result, so a list and a count badge reading the
// same query do not double-fetch. Successful results stay cached until
// invalidated; errors are never retained, so a failed key refetches on the
// next request. This is a request-dedup cache, not a durable one: it lives
// and dies with whoever constructed it.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry[T]
}

type cacheEntry[T any] struct {
	ready chan struct{}
	page  Page[T]
	err   error
}

// NewCache creates an empty request-dedup cache. A cache may be shared by
// multiple controllers; sharing is always explicit, there is no package-level
// instance.
func NewCache[T any]() *Cache[T] {
	return &Cache[T]{entries: make(map[string]*cacheEntry[T])}
}

// Do returns the result for key, invoking fetch at most once per cached key.
// Concurrent callers for the same key block on the single in-flight fetch.
func (c *Cache[T]) Do(ctx context.Context, key string, fetch func(ctx context.Context) (Page[T], error)) (Page[T], error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.mu.Unlock()
		select {
		case <-e.ready:
			return e.page, e.err
		case <-ctx.Done():
			var zero Page[T]
			return zero, ctx.Err()
		}
	}

	e := &cacheEntry[T]{ready: make(chan struct{})}
	c.entries[key] = e
	c.mu.Unlock()

	e.page, e.err = fetch(ctx)
	if e.err != nil {
		// Drop failed entries so the next caller retries.
		c.mu.Lock()
		if c.entries[key] == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
	}
	close(e.ready)
	return e.page, e.err
}

// Invalidate removes a single key. In-flight fetches for the key finish and
// deliver to their current waiters, but later calls refetch.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidatePrefix removes every key scoped under the given query identity.
// Used after record mutations, when all cached pages of a query are suspect.
func (c *Cache[T]) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

// Len returns the number of cached entries, including in-flight ones.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
