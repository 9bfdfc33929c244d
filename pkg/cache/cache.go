// Package cache is an in-process stale-while-revalidate cache with
// singleflight loading.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type Options struct {
	TTL                  time.Duration
	StaleWhileRevalidate time.Duration
	NegativeTTL          time.Duration
	MaxEntries           int
}

// Result labels passed to the OnResult hook.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultStale = "stale"
	ResultError = "error"
)

// Hooks receive cache outcomes, typically to feed a Prometheus counter.
type Hooks struct {
	OnResult func(result string)
}

type entry[V any] struct {
	value     V
	err       error
	expiresAt time.Time
	staleAt   time.Time
	negative  bool
}

// Cache holds values of type V by string key.
type Cache[V any] struct {
	mu    sync.RWMutex
	items map[string]*entry[V]
	order []string
	opts  Options
	hooks Hooks
	sf    singleflight.Group
}

// Loader produces the value for key on a miss or refresh.
type Loader[V any] func(ctx context.Context, key string) (V, error)

func New[V any](opts Options, hooks Hooks) *Cache[V] {
	return &Cache[V]{
		items: make(map[string]*entry[V]),
		order: make([]string, 0, 16),
		opts:  opts,
		hooks: hooks,
	}
}

func (c *Cache[V]) report(result string) {
	if c.hooks.OnResult != nil {
		c.hooks.OnResult(result)
	}
}

// Get returns the cached value for key, loading it on a miss. A stale entry
// is returned immediately and refreshed once in the background.
func (c *Cache[V]) Get(ctx context.Context, key string, loader Loader[V]) (V, error) {
	now := time.Now()
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if ok {
		switch {
		case now.Before(e.expiresAt):
			c.report(ResultHit)
			return e.value, e.err
		case now.Before(e.staleAt):
			c.report(ResultStale)
			refreshCtx := context.WithoutCancel(ctx)
			go func() {
				_, _, _ = c.sf.Do("refresh:"+key, func() (any, error) {
					val, err := loader(refreshCtx, key)
					c.store(key, val, err)
					return nil, nil
				})
			}()
			return e.value, e.err
		default:
			c.Delete(key)
		}
	}

	c.report(ResultMiss)
	result, err, _ := c.sf.Do(key, func() (any, error) {
		val, err := loader(ctx, key)
		c.store(key, val, err)
		return val, err
	})
	if err != nil {
		var zero V
		return zero, err
	}
	v, _ := result.(V)
	return v, nil
}

func (c *Cache[V]) store(key string, val V, err error) {
	now := time.Now()
	e := &entry[V]{}
	if err == nil {
		e.value = val
		e.expiresAt = now.Add(c.opts.TTL)
		e.staleAt = e.expiresAt.Add(c.opts.StaleWhileRevalidate)
	} else {
		c.report(ResultError)
		if c.opts.NegativeTTL <= 0 {
			return
		}
		e.err = err
		e.negative = true
		e.expiresAt = now.Add(c.opts.NegativeTTL)
		e.staleAt = e.expiresAt
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[key]; !exists {
		c.order = append(c.order, key)
	}
	c.items[key] = e
	c.evictIfNeeded()
}

func (c *Cache[V]) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// evictIfNeeded drops the oldest inserted keys first.
func (c *Cache[V]) evictIfNeeded() {
	if c.opts.MaxEntries <= 0 || len(c.items) <= c.opts.MaxEntries {
		return
	}
	excess := len(c.items) - c.opts.MaxEntries
	for excess > 0 && len(c.order) > 0 {
		victim := c.order[0]
		c.order = c.order[1:]
		delete(c.items, victim)
		excess--
	}
}

func (c *Cache[V]) Set(key string, val V, ttl time.Duration) {
	now := time.Now()
	e := &entry[V]{value: val, expiresAt: now.Add(ttl), staleAt: now.Add(ttl).Add(c.opts.StaleWhileRevalidate)}
	c.mu.Lock()
	if _, exists := c.items[key]; !exists {
		c.order = append(c.order, key)
	}
	c.items[key] = e
	c.evictIfNeeded()
	c.mu.Unlock()
}

// Peek returns a cached value without triggering a load. Stale entries are allowed.
func (c *Cache[V]) Peek(key string) (V, bool) {
	var zero V
	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[key]
	if !ok || now.After(e.staleAt) || e.negative {
		return zero, false
	}
	return e.value, true
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.removeFromOrder(key)
	c.mu.Unlock()
}
