// Package cache provides an in-memory read-through cache for fetch results.
//
// A Cache stores the first successful result produced for a key and serves it
// for every later lookup without calling the producer again. Entries never
// expire and the cache has no size bound; callers own the Cache value and
// decide its lifetime.
//
// Concurrent first-time lookups for the same key are not coalesced: each one
// invokes its producer and the last successful write wins.
//
// Example:
//
//	users := cache.New[User](cache.WithName("users"))
//	u, err := users.GetOrFetch(ctx, "user:1", func(ctx context.Context) (User, error) {
//	    return httpclient.CallJSON[User](ctx, client, url, nil)
//	})
package cache

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/metric"

	"github.com/gaborage/go-fetchkit/internal/tracking"
	"github.com/gaborage/go-fetchkit/logger"
)

// DefaultName labels metrics and logs when WithName is not used.
const DefaultName = "default"

// ErrNilProducer is returned when a lookup misses and no producer was given.
var ErrNilProducer = errors.New("cache: producer is nil")

// Producer computes the value for a missing key.
type Producer[T any] func(ctx context.Context) (T, error)

// Entry is one stored key/value pair. Value is held by reference for pointer,
// map and slice types; callers must not mutate it.
type Entry[T any] struct {
	Key   string
	Value T
}

// Cache maps string keys to values of type T. It is safe for concurrent use.
type Cache[T any] struct {
	mu      sync.RWMutex
	entries map[string]T

	name    string
	log     logger.Logger
	metrics *tracking.CacheMetrics
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	name          string
	log           logger.Logger
	meterProvider metric.MeterProvider
}

// WithName labels the cache in logs and the cache.name metric attribute.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger sets the logger for cache debug events; nil keeps the no-op logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMeterProvider records cache metrics on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// New creates an empty cache.
func New[T any](opts ...Option) *Cache[T] {
	o := options{name: DefaultName, log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[T]{
		entries: make(map[string]T),
		name:    o.name,
		log:     o.log.WithFields(map[string]any{"cache": o.name}),
		metrics: tracking.NewCacheMetrics(o.meterProvider, o.name),
	}
}

// Name returns the label given with WithName.
func (c *Cache[T]) Name() string { return c.name }

// GetOrFetch returns the value stored under key. On a miss it calls producer;
// a successful result is stored and returned, a failure is returned unchanged
// and nothing is stored, so the next lookup calls a producer again.
func (c *Cache[T]) GetOrFetch(ctx context.Context, key string, producer Producer[T]) (T, error) {
	if v, ok := c.lookup(key); ok {
		c.metrics.RecordHit(ctx)
		c.log.Debug().Str("key", key).Msg("Cache hit")
		return v, nil
	}

	c.metrics.RecordMiss(ctx)
	c.log.Debug().Str("key", key).Msg("Cache miss")

	var zero T
	if producer == nil {
		return zero, ErrNilProducer
	}

	v, err := producer(ctx)
	if err != nil {
		c.log.Debug().Str("key", key).Err(err).Msg("Producer failed, nothing stored")
		return zero, err
	}

	c.store(ctx, key, v)
	return v, nil
}

// Get returns the stored value without producing one.
func (c *Cache[T]) Get(key string) (T, bool) {
	return c.lookup(key)
}

// Len returns the number of stored keys.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns the stored keys in sorted order.
func (c *Cache[T]) Keys() []string {
	c.mu.RLock()
	keys := slices.Collect(maps.Keys(c.entries))
	c.mu.RUnlock()
	slices.Sort(keys)
	return keys
}

// Entries returns a snapshot of the stored entries sorted by key.
func (c *Cache[T]) Entries() []Entry[T] {
	c.mu.RLock()
	out := make([]Entry[T], 0, len(c.entries))
	for k, v := range c.entries {
		out = append(out, Entry[T]{Key: k, Value: v})
	}
	c.mu.RUnlock()
	slices.SortFunc(out, func(a, b Entry[T]) int { return strings.Compare(a.Key, b.Key) })
	return out
}

// Delete removes key. Removing a missing key is a no-op.
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()

	if ok {
		c.metrics.AddEntries(context.Background(), -1)
		c.log.Debug().Str("key", key).Msg("Cache entry deleted")
	}
}

// Clear removes every entry.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	n := len(c.entries)
	clear(c.entries)
	c.mu.Unlock()

	c.metrics.AddEntries(context.Background(), -int64(n))
	c.log.Debug().Int("removed", n).Msg("Cache cleared")
}

func (c *Cache[T]) lookup(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *Cache[T]) store(ctx context.Context, key string, v T) {
	c.mu.Lock()
	_, existed := c.entries[key]
	c.entries[key] = v
	c.mu.Unlock()

	if !existed {
		c.metrics.AddEntries(ctx, 1)
	}
	c.log.Debug().Str("key", key).Msg("Cache entry stored")
}
