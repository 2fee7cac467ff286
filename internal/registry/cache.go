// Package registry holds expensive, lazily loaded, process-wide handles
// (recognition models, translation models) behind a single-flight,
// bounded LRU cache.
package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// State is the load state of one key.
type State int

// Load states.
const (
	Unloaded State = iota
	Loading
	Loaded
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// Loader builds the value for key. It runs at most once at a time per key.
type Loader[V any] func(ctx context.Context, key string) (V, error)

// Cache maps keys to loaded values. Concurrent first use of a key shares a
// single load; values beyond the capacity are evicted least recently used
// first, and closed when they implement io.Closer.
type Cache[V any] struct {
	items  *lru.Cache[string, V]
	group  singleflight.Group
	load   Loader[V]
	logger *slog.Logger

	mu      sync.Mutex
	loading map[string]struct{}
	loads   int
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates a Cache holding at most size values.
func New[V any](size int, load Loader[V], opts ...Option) (*Cache[V], error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Cache[V]{
		load:    load,
		logger:  o.logger,
		loading: make(map[string]struct{}),
	}
	items, err := lru.NewWithEvict(size, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	c.items = items
	return c, nil
}

// GetOrLoad returns the cached value for key, loading it if needed.
// A caller whose ctx ends while waiting gets ctx.Err(); the shared load
// keeps running for the other waiters.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string) (V, error) {
	if v, ok := c.items.Get(key); ok {
		return v, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		if v, ok := c.items.Get(key); ok {
			return v, nil
		}

		c.mu.Lock()
		c.loading[key] = struct{}{}
		c.loads++
		c.mu.Unlock()
		defer func() {
			c.mu.Lock()
			delete(c.loading, key)
			c.mu.Unlock()
		}()

		c.logger.Debug("loading cached resource", "key", key)
		v, err := c.load(context.WithoutCancel(ctx), key)
		if err != nil {
			return nil, err
		}
		c.items.Add(key, v)
		return v, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, fmt.Errorf("load %s: %w", key, res.Err)
		}
		return res.Val.(V), nil
	}
}

// State reports whether key is loaded, being loaded, or neither.
func (c *Cache[V]) State(key string) State {
	if c.items.Contains(key) {
		return Loaded
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.loading[key]; ok {
		return Loading
	}
	return Unloaded
}

// Len returns the number of loaded values.
func (c *Cache[V]) Len() int { return c.items.Len() }

// Keys returns loaded keys from oldest to newest use.
func (c *Cache[V]) Keys() []string { return c.items.Keys() }

// Loads returns how many times the loader has run.
func (c *Cache[V]) Loads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads
}

// Purge drops every value, closing those that implement io.Closer.
func (c *Cache[V]) Purge() { c.items.Purge() }

func (c *Cache[V]) onEvict(key string, v V) {
	c.logger.Debug("evicting cached resource", "key", key)
	if closer, ok := any(v).(io.Closer); ok {
		if err := closer.Close(); err != nil {
			c.logger.Warn("closing evicted resource failed", "key", key, "error", err)
		}
	}
}
