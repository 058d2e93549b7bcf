package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "price-scout:"

// RedisCache is the shared Store backend for multi-instance
// deployments. Redis handles expiry itself, so there is no sweep.
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{
		client: client,
		logger: slog.Default().With("component", "cache", "backend", "redis"),
	}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, redisPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("redis get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := c.client.Set(ctx, redisPrefix+key, value, ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", "key", key, "error", err)
	}
}

func (c *RedisCache) Has(ctx context.Context, key string) bool {
	n, err := c.client.Exists(ctx, redisPrefix+key).Result()
	return err == nil && n > 0
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, redisPrefix+key).Err(); err != nil {
		c.logger.Warn("redis delete failed", "key", key, "error", err)
	}
}

func (c *RedisCache) Clear(ctx context.Context) int {
	keys, err := c.scanKeys(ctx)
	if err != nil {
		c.logger.Warn("redis scan failed", "error", err)
		return 0
	}
	if len(keys) == 0 {
		return 0
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("redis clear failed", "error", err)
		return 0
	}
	return len(keys)
}

func (c *RedisCache) GetStats(ctx context.Context) Stats {
	stats := Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}

	keys, err := c.scanKeys(ctx)
	if err == nil {
		stats.TotalItems = len(keys)
		for _, key := range keys {
			if n, err := c.client.StrLen(ctx, key).Result(); err == nil {
				stats.ApproxBytes += n
			}
		}
	}

	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, redisPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}
