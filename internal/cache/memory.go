package cache

import (
	"context"
	"sync"
	"time"

	"github.com/markmehq/markme/internal/service/stats"
)

// MemoryStatsCache is the fallback when no redis address is configured.
type MemoryStatsCache struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]entry
}

type entry struct {
	val stats.DashboardStats
	exp time.Time
}

func NewMemoryStatsCache(ttl time.Duration) *MemoryStatsCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return &MemoryStatsCache{
		ttl: ttl,
		m:   make(map[string]entry),
	}
}

func (c *MemoryStatsCache) Get(ctx context.Context, day string) (stats.DashboardStats, bool) {
	now := time.Now()

	c.mu.RLock()
	e, ok := c.m[day]
	c.mu.RUnlock()

	if !ok {
		return stats.DashboardStats{}, false
	}

	if now.After(e.exp) {
		c.mu.Lock()
		delete(c.m, day)
		c.mu.Unlock()
		return stats.DashboardStats{}, false
	}

	return e.val, true
}

func (c *MemoryStatsCache) Set(ctx context.Context, day string, s stats.DashboardStats) {
	c.mu.Lock()
	c.m[day] = entry{val: s, exp: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *MemoryStatsCache) Invalidate(ctx context.Context, day string) {
	c.mu.Lock()
	delete(c.m, day)
	c.mu.Unlock()
}
