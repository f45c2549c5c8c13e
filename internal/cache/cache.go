// README: Named TTL + LRU caches. Sharded so concurrent requests only contend per shard.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"scout/internal/metrics"
)

const (
	defaultShards   = 16
	defaultCapacity = 1024
	defaultTTL      = 5 * time.Minute
)

// Options configure one named cache.
type Options struct {
	Name     string
	Capacity int
	TTL      time.Duration
	// SweepInterval is the period of the background expiry sweep started by
	// Start. Zero disables it; expiry is still enforced on every read.
	SweepInterval time.Duration
	Shards        int
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Stats is a snapshot of a cache's counters.
type Stats struct {
	Name      string `json:"name"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Size      int    `json:"size"`
	Capacity  int    `json:"capacity"`
}

type entry[V any] struct {
	value     V
	storedAt  time.Time
	expiresAt time.Time
}

type shard[V any] struct {
	mu  sync.Mutex
	lru *simplelru.LRU[string, entry[V]]
}

// Cache is a capacity-bounded map whose entries expire after their TTL.
// It is safe for concurrent use.
type Cache[V any] struct {
	name          string
	capacity      int
	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	shards        []*shard[V]

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a cache. Capacity is split across shards so the total never
// exceeds opts.Capacity.
func New[V any](opts Options) *Cache[V] {
	if opts.Capacity <= 0 {
		opts.Capacity = defaultCapacity
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.Shards <= 0 {
		opts.Shards = defaultShards
	}
	if opts.Shards > opts.Capacity {
		opts.Shards = opts.Capacity
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Cache[V]{
		name:          opts.Name,
		capacity:      opts.Capacity,
		ttl:           opts.TTL,
		sweepInterval: opts.SweepInterval,
		now:           opts.Now,
		shards:        make([]*shard[V], opts.Shards),
	}
	per, extra := opts.Capacity/opts.Shards, opts.Capacity%opts.Shards
	for i := range c.shards {
		size := per
		if i < extra {
			size++
		}
		// Only fails for a non-positive size, which the split above rules out.
		lru, _ := simplelru.NewLRU[string, entry[V]](size, nil)
		c.shards[i] = &shard[V]{lru: lru}
	}
	return c
}

// Name returns the cache's name.
func (c *Cache[V]) Name() string { return c.name }

// TTL returns the default entry lifetime.
func (c *Cache[V]) TTL() time.Duration { return c.ttl }

func (c *Cache[V]) shardFor(key string) *shard[V] {
	return c.shards[xxhash.Sum64String(key)%uint64(len(c.shards))]
}

// Get returns the live value for key. An expired entry is removed and
// reported as a miss whether or not the sweep has reached it.
func (c *Cache[V]) Get(key string) (V, bool) {
	v, _, ok := c.GetWithTTL(key)
	return v, ok
}

// GetWithTTL is Get that also reports the entry's remaining lifetime.
func (c *Cache[V]) GetWithTTL(key string) (V, time.Duration, bool) {
	var zero V
	s := c.shardFor(key)
	now := c.now()

	s.mu.Lock()
	e, ok := s.lru.Get(key)
	if ok && !now.Before(e.expiresAt) {
		s.lru.Remove(key)
		ok = false
		c.evicted("expired")
	}
	s.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		metrics.CacheMisses.WithLabelValues(c.name).Inc()
		return zero, 0, false
	}
	c.hits.Add(1)
	metrics.CacheHits.WithLabelValues(c.name).Inc()
	return e.value, e.expiresAt.Sub(now), true
}

// Set stores value for ttl; ttl <= 0 uses the cache's default. At capacity
// the shard's least recently used entry is evicted.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := c.now()
	s := c.shardFor(key)

	s.mu.Lock()
	evicted := s.lru.Add(key, entry[V]{value: value, storedAt: now, expiresAt: now.Add(ttl)})
	s.mu.Unlock()

	if evicted {
		c.evicted("capacity")
	}
}

// Delete removes key.
func (c *Cache[V]) Delete(key string) {
	s := c.shardFor(key)
	s.mu.Lock()
	s.lru.Remove(key)
	s.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included until
// they are read or swept.
func (c *Cache[V]) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += s.lru.Len()
		s.mu.Unlock()
	}
	return n
}

// Sweep removes every expired entry and returns how many it removed.
func (c *Cache[V]) Sweep() int {
	now := c.now()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for _, key := range s.lru.Keys() {
			if e, ok := s.lru.Peek(key); ok && !now.Before(e.expiresAt) {
				s.lru.Remove(key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	for i := 0; i < removed; i++ {
		c.evicted("expired")
	}
	return removed
}

// Start runs the periodic sweep until ctx is done. It returns immediately
// when no sweep interval is configured.
func (c *Cache[V]) Start(ctx context.Context) {
	if c.sweepInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(c.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

// Stats returns a snapshot of the counters.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Name:      c.name,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.Len(),
		Capacity:  c.capacity,
	}
}

func (c *Cache[V]) evicted(cause string) {
	c.evictions.Add(1)
	metrics.CacheEvictions.WithLabelValues(c.name, cause).Inc()
}
