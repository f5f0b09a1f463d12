package aws

import (
	"context"
	"sync"
)

type cacheKey struct {
	kind    Kind
	region  string
	account string
	arg     string
}

type entry struct {
	done  chan struct{}
	names []string
	err   error
}

// Cache memoizes listing calls for one run. Concurrent callers of the same
// key wait for the first fetch instead of issuing their own.
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey]*entry
}

func NewCache() *Cache {
	return &Cache{entries: map[cacheKey]*entry{}}
}

// Do returns the cached result for key, calling fetch on the first miss.
// Failed fetches are cached too; listing errors end the run anyway.
func (c *Cache) Do(ctx context.Context, key cacheKey, fetch func() ([]string, error)) ([]string, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{done: make(chan struct{})}
		c.entries[key] = e
	}
	c.mu.Unlock()

	if !ok {
		func() {
			defer close(e.done)
			e.names, e.err = fetch()
		}()
		return e.names, e.err
	}

	select {
	case <-e.done:
		return e.names, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type clientKey struct {
	service string
	region  string
	account string
}

// clients holds one API client per (service, region, account).
type clients struct {
	mu sync.Mutex
	m  map[clientKey]any
}

func clientFor[T any](c *clients, key clientKey, build func() T) T {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = map[clientKey]any{}
	}
	if v, ok := c.m[key]; ok {
		return v.(T)
	}
	v := build()
	c.m[key] = v
	return v
}
