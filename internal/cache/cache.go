package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL applies when callers pass a non-positive TTL.
const DefaultTTL = time.Hour

// Stats is an operational snapshot. The approximate size is a
// serialized-byte estimate, for visibility only.
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	TotalItems  int     `json:"total_items"`
	HitRate     float64 `json:"hit_rate"`
	ApproxBytes int64   `json:"approx_bytes"`
}

// Store is a TTL'd key-value store for serialized search results and
// listings. The in-memory implementation is the default; a redis
// backend is available for multi-instance deployments.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Has(ctx context.Context, key string) bool
	Delete(ctx context.Context, key string)
	Clear(ctx context.Context) int
	GetStats(ctx context.Context) Stats
}

type entry struct {
	payload   []byte
	createdAt time.Time
	expiresAt time.Time
}

// MemoryCache is the in-process Store. Entries expire lazily on Get and
// eagerly via a periodic sweep.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	hits    int64
	misses  int64
	done    chan struct{}
	once    sync.Once
}

func NewMemoryCache(sweepInterval time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]entry),
		done:    make(chan struct{}),
	}

	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Minute
	}
	go c.sweep(sweepInterval)

	return c
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}

	c.hits++
	return e.payload, true
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := time.Now()
	c.mu.Lock()
	c.entries[key] = entry{
		payload:   value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	c.mu.Unlock()
}

func (c *MemoryCache) Has(_ context.Context, key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	return ok && time.Now().Before(e.expiresAt)
}

func (c *MemoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear drops every entry and reports how many were removed.
func (c *MemoryCache) Clear(_ context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]entry)
	return n
}

func (c *MemoryCache) GetStats(_ context.Context) Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var size int64
	for _, e := range c.entries {
		size += int64(len(e.payload))
	}

	stats := Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		TotalItems:  len(c.entries),
		ApproxBytes: size,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// Close stops the sweep goroutine.
func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *MemoryCache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, e := range c.entries {
				if now.After(e.expiresAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
