package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Cache key prefixes
	CacheKeyQuota = "pixelforge:quota:"

	// Cache TTLs
	CacheTTLQuota = 2 * time.Minute
)

// QuotaCacheKey builds the cache key for one (account, plan kind) record
func QuotaCacheKey(accountID uint, planKind string) string {
	return fmt.Sprintf("%s%d:%s", CacheKeyQuota, accountID, planKind)
}

// CacheGet retrieves a value from Redis cache and unmarshals it into dest
func CacheGet(rdb *redis.Client, key string, dest interface{}) error {
	ctx := context.Background()
	data, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// CacheSet stores a value in Redis cache with TTL
func CacheSet(rdb *redis.Client, key string, value interface{}, ttl time.Duration) error {
	ctx := context.Background()
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, data, ttl).Err()
}

// CacheDelete removes keys from Redis cache
func CacheDelete(rdb *redis.Client, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx := context.Background()
	return rdb.Del(ctx, keys...).Err()
}
