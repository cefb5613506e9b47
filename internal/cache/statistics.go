// Package cache memoises computed statistics in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"example.com/activityplanner/internal/domain"
	"example.com/activityplanner/internal/logging"
)

const keyPrefix = "activityplanner:"

// StatisticsCache implements domain.StatisticsCache over Redis.
type StatisticsCache struct {
	client redis.Cmdable
	ttl    time.Duration
	log    logging.Logger
}

var _ domain.StatisticsCache = (*StatisticsCache)(nil)

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewStatisticsCache constructs a StatisticsCache. Entries expire after ttl.
func NewStatisticsCache(client redis.Cmdable, ttl time.Duration, log logging.Logger) *StatisticsCache {
	if log == nil {
		log = logging.Nop()
	}
	return &StatisticsCache{client: client, ttl: ttl, log: log.With("component", "statistics_cache")}
}

// Load returns the cached statistics for key. Redis errors count as a miss.
func (c *StatisticsCache) Load(ctx context.Context, key string) (*domain.Statistics, bool) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn(ctx, "statistics cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	var stats domain.Statistics
	if err := json.Unmarshal(raw, &stats); err != nil {
		c.log.Warn(ctx, "statistics cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return &stats, true
}

// Store caches stats under key.
func (c *StatisticsCache) Store(ctx context.Context, key string, stats domain.Statistics) {
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+key, raw, c.ttl).Err(); err != nil {
		c.log.Warn(ctx, "statistics cache write failed", "key", key, "error", err)
	}
}

// Invalidate drops every cached statistics entry.
func (c *StatisticsCache) Invalidate(ctx context.Context) error {
	var cursor uint64
	pattern := keyPrefix + "statistics:*"
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.log.Warn(ctx, "statistics cache invalidation failed", "error", err)
			return fmt.Errorf("scan statistics keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete statistics keys: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
