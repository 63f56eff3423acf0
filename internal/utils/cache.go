package utils

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache 简单的 KV 缓存，值以 JSON 存储，便于本地与 Redis 两种实现互换
type Cache interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// CacheItem 包装缓存数据和过期时间
type CacheItem struct {
	Data      []byte
	ExpiresAt time.Time
}

// LocalCache 进程内 LRU 缓存
type LocalCache struct {
	lruCache *lru.Cache[string, CacheItem]
	now      func() time.Time
}

// NewLocalCache 创建指定容量的 LRU 缓存
func NewLocalCache(size int) (*LocalCache, error) {
	if size <= 0 {
		size = 500
	}
	l, err := lru.New[string, CacheItem](size)
	if err != nil {
		return nil, err
	}
	return &LocalCache{lruCache: l, now: time.Now}, nil
}

// Set 设置缓存，TTL 为过期时间
func (c *LocalCache) Set(_ context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		slog.Warn("cache: marshal failed", "key", key, "error", err)
		return
	}
	c.lruCache.Add(key, CacheItem{
		Data:      data,
		ExpiresAt: c.now().Add(ttl),
	})
}

// Get 读取缓存到 dest，不存在或已过期返回 false
func (c *LocalCache) Get(_ context.Context, key string, dest any) bool {
	val, ok := c.lruCache.Get(key)
	if !ok {
		return false
	}

	// 检查过期
	if c.now().After(val.ExpiresAt) {
		c.lruCache.Remove(key)
		return false
	}

	return json.Unmarshal(val.Data, dest) == nil
}

// Delete 删除指定缓存
func (c *LocalCache) Delete(_ context.Context, key string) {
	c.lruCache.Remove(key)
}

// Len 当前条目数
func (c *LocalCache) Len() int {
	return c.lruCache.Len()
}
