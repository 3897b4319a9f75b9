// Package dedup provides a cache that coalesces concurrent loads of the same
// key into a single unit of work.
//
// A key is in one of three states: completed (served from the store),
// in flight (callers join the running load), or absent (the caller starts a
// load). Failed loads are never stored. The caller that ran a failed load
// gets the error; callers that merely joined it go back to the start and try
// again, so a key that keeps failing is re-attempted by every waiter.
package dedup

import (
	"context"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/precip-render-service/internal/observability"
)

// Lookup outcomes recorded in the cache metrics.
const (
	resultHit       = "hit"
	resultMiss      = "miss"
	resultCoalesced = "coalesced"
	resultRetry     = "retry"
)

// LoadFunc produces the value for a key. It runs at most once at a time per key.
type LoadFunc[V any] func(ctx context.Context) (V, error)

// Cache is a coalescing cache of immutable values. The zero value is not usable.
//
// Completed values live in an LRU when the cache is bounded, and in a plain
// map otherwise.
type Cache[V any] struct {
	name    string
	group   singleflight.Group
	metrics *observability.Metrics
	logger  *slog.Logger

	bounded *lru.Cache[string, V]

	mu  sync.RWMutex
	all map[string]V
}

// New creates a cache. maxEntries <= 0 keeps every value for the life of the cache.
func New[V any](name string, maxEntries int, metrics *observability.Metrics, logger *slog.Logger) *Cache[V] {
	c := &Cache[V]{
		name:    name,
		metrics: metrics,
		logger:  logger.With("cache", name),
	}
	if maxEntries > 0 {
		// New only fails for a non-positive size.
		c.bounded, _ = lru.New[string, V](maxEntries)
	} else {
		c.all = make(map[string]V)
	}
	return c
}

// Get returns the value for key, loading it with load if needed.
//
// The load runs detached from the caller's cancellation so that one caller
// giving up does not fail the flight for everyone else; ctx only bounds how
// long this caller waits.
func (c *Cache[V]) Get(ctx context.Context, key string, load LoadFunc[V]) (V, error) {
	var zero V
	for attempt := 0; ; attempt++ {
		if v, ok := c.get(key); ok {
			c.count(resultHit)
			return v, nil
		}

		led := false
		ch := c.group.DoChan(key, func() (any, error) {
			led = true
			if v, ok := c.Peek(key); ok {
				return v, nil
			}
			v, err := load(context.WithoutCancel(ctx))
			if err != nil {
				return nil, err
			}
			c.put(key, v)
			return v, nil
		})

		// Counted after DoChan so the gauge only includes callers attached to a flight.
		waiters := c.metrics.CacheWaiters.WithLabelValues(c.name)
		waiters.Inc()
		select {
		case <-ctx.Done():
			waiters.Dec()
			return zero, ctx.Err()
		case res := <-ch:
			waiters.Dec()
			if led {
				c.count(resultMiss)
			} else {
				c.count(resultCoalesced)
			}
			if res.Err == nil {
				return res.Val.(V), nil
			}
			if led {
				return zero, res.Err
			}
			c.count(resultRetry)
			c.logger.Debug("joined load failed, retrying", "key", key, "attempt", attempt, "error", res.Err)
		}
	}
}

// Peek returns a completed value without loading or refreshing its recency.
func (c *Cache[V]) Peek(key string) (V, bool) {
	if c.bounded != nil {
		return c.bounded.Peek(key)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.all[key]
	return v, ok
}

// Len returns the number of completed values held.
func (c *Cache[V]) Len() int {
	if c.bounded != nil {
		return c.bounded.Len()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.all)
}

// get returns a completed value and marks it recently used.
func (c *Cache[V]) get(key string) (V, bool) {
	if c.bounded != nil {
		return c.bounded.Get(key)
	}
	return c.Peek(key)
}

func (c *Cache[V]) put(key string, v V) {
	if c.bounded != nil {
		if c.bounded.Add(key, v) {
			c.metrics.CacheEvictions.WithLabelValues(c.name).Inc()
		}
	} else {
		c.mu.Lock()
		c.all[key] = v
		c.mu.Unlock()
	}
	c.metrics.CacheEntries.WithLabelValues(c.name).Set(float64(c.Len()))
}

func (c *Cache[V]) count(result string) {
	c.metrics.CacheLookups.WithLabelValues(c.name, result).Inc()
}
