package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/markmehq/markme/internal/service/stats"
	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStatsCache stores serialized dashboard stats under a per-day key so a
// stale entry can never leak across midnight.
type RedisStatsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStatsCache(cfg RedisConfig, ttl time.Duration) *RedisStatsCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &RedisStatsCache{rdb: rdb, ttl: ttl}
}

func (c *RedisStatsCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisStatsCache) Close() error {
	return c.rdb.Close()
}

func statsKey(day string) string {
	return "markme:dashboard:" + day
}

func (c *RedisStatsCache) Get(ctx context.Context, day string) (stats.DashboardStats, bool) {
	raw, err := c.rdb.Get(ctx, statsKey(day)).Bytes()

	if err != nil {
		// cache miss and redis outage look the same to the caller; the
		// aggregator just recomputes
		return stats.DashboardStats{}, false
	}

	var out stats.DashboardStats

	if err := json.Unmarshal(raw, &out); err != nil {
		return stats.DashboardStats{}, false
	}

	return out, true
}

func (c *RedisStatsCache) Set(ctx context.Context, day string, s stats.DashboardStats) {
	raw, err := json.Marshal(s)

	if err != nil {
		return
	}

	_ = c.rdb.Set(ctx, statsKey(day), raw, c.ttl).Err()
}

func (c *RedisStatsCache) Invalidate(ctx context.Context, day string) {
	_ = c.rdb.Del(ctx, statsKey(day)).Err()
}
