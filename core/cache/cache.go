package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"go-meeting-core/core/logger"
)

// Cache is a TTL key-value store used for query memoization and short-lived
// lookup state. Values are opaque byte payloads.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// ===================== Redis implementation =====================

type redisCache struct {
	client *redis.Client
}

func NewRedisCache(addr, password string, db int) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	logger.Info("Redis cache initialized", "addr", addr, "db", db)
	return &redisCache{client: client}, nil
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("Cache:Get:Error", "key", key, "error", err)
		}
		return nil, false
	}
	return val, true
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		logger.Warn("Cache:Set:Error", "key", key, "error", err)
	}
}

func (c *redisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		logger.Warn("Cache:Delete:Error", "key", key, "error", err)
	}
}

// ===================== In-process implementation =====================

// memoryCache backs single-instance deployments and tests with an expirable
// LRU. Per-entry TTLs shorter than the configured maximum are honored by
// storing the deadline alongside the payload.
type memoryCache struct {
	lru *lru.LRU[string, memoryEntry]
}

type memoryEntry struct {
	value    []byte
	deadline time.Time
}

func NewMemoryCache(size int, maxTTL time.Duration) Cache {
	if size <= 0 {
		size = 1024
	}
	return &memoryCache{lru: lru.NewLRU[string, memoryEntry](size, nil, maxTTL)}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.deadline) {
		c.lru.Remove(key)
		return nil, false
	}
	return entry.value, true
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	c.lru.Add(key, memoryEntry{value: value, deadline: time.Now().Add(ttl)})
}

func (c *memoryCache) Delete(_ context.Context, key string) {
	c.lru.Remove(key)
}
