package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache 多实例部署时共享的缓存
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache 通过 URL 连接 Redis 并 Ping 确认可用
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisCacheWithClient(client), nil
}

// NewRedisCacheWithClient creates a cache from an existing Redis client
func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: "cache:"}
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

func (c *RedisCache) Get(ctx context.Context, key string, dest any) bool {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("cache: redis get failed", "key", key, "error", err)
		}
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		slog.Warn("cache: marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		slog.Warn("cache: redis set failed", "key", key, "error", err)
	}
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		slog.Warn("cache: redis delete failed", "key", key, "error", err)
	}
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
