// Package cache 提供基于键值存储的泛型缓存实现.
//
// 值使用 sonic 序列化，键统一加上命名空间前缀，便于在共享的 Redis 中区分与清理.
//
// 基本用法:
//
//	c := cache.NewCache(kvStore, "status")
//
//	err := cache.Set(ctx, c, "42", view, time.Minute)
//
//	view, err := cache.Get[types.FileStatus](ctx, c, "42")
//	if cache.IsMiss(err) {
//	    // 回源
//	}
//
// 缓存未命中通过 IsMiss 判断；序列化错误与底层存储错误原样包装返回.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/yeisme/ingestvault/pkg/internal/storage/kv"
)

// Cache 基于KV存储的缓存实现.
type Cache struct {
	kvStore kv.KVStore
	prefix  string
}

// NewCache 创建一个新的缓存实例，namespace 为空时不加前缀.
func NewCache(kvStore kv.KVStore, namespace string) *Cache {
	prefix := ""
	if namespace != "" {
		prefix = namespace + ":"
	}

	return &Cache{kvStore: kvStore, prefix: prefix}
}

func (c *Cache) key(k string) string {
	return c.prefix + k
}

// IsMiss 判断错误是否为缓存未命中.
func IsMiss(err error) bool {
	return errors.Is(err, kv.ErrKeyNotFound)
}

// Get 泛型获取缓存值.
func Get[T any](ctx context.Context, c *Cache, key string) (T, error) {
	var zero T

	data, err := c.kvStore.Get(ctx, c.key(key))
	if err != nil {
		return zero, err
	}

	var value T
	if err := sonic.Unmarshal(data, &value); err != nil {
		return zero, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}

	return value, nil
}

// Set 泛型设置缓存值.
func Set[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return c.kvStore.Set(ctx, c.key(key), data, ttl)
}

// Delete 删除缓存键.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.kvStore.Delete(ctx, c.key(key))
}

// Exists 检查缓存键是否存在.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	return c.kvStore.Exists(ctx, c.key(key))
}

// GetOrSet 获取缓存值，未命中时调用 getter 回源；store 返回 false 时不写入缓存.
func GetOrSet[T any](
	ctx context.Context, c *Cache, key string, ttl time.Duration,
	getter func() (T, bool, error),
) (T, error) {
	var zero T

	value, err := Get[T](ctx, c, key)
	if err == nil {
		return value, nil
	}

	value, store, err := getter()
	if err != nil {
		return zero, err
	}

	if store {
		// 写缓存失败不影响结果
		_ = Set(ctx, c, key, value, ttl)
	}

	return value, nil
}

// Clear 清空当前命名空间下的缓存.
func (c *Cache) Clear(ctx context.Context) error {
	keys, err := c.kvStore.Keys(ctx, c.prefix+"*")
	if err != nil {
		return err
	}

	for _, key := range keys {
		if delErr := c.kvStore.Delete(ctx, key); delErr != nil {
			return delErr
		}
	}

	return nil
}
