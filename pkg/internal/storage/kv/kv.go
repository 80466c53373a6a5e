// Package kv 提供键值存储接口与 memory、redis 两种实现，状态查询缓存基于它构建.
//
// 实现在 init 中按类型注册，编译时可用 no_redis 标签去掉 redis.
package kv

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/yeisme/ingestvault/pkg/configs"
	nlog "github.com/yeisme/ingestvault/pkg/log"
)

// ErrKeyNotFound 键不存在或已过期，调用方用 errors.Is 判断.
var ErrKeyNotFound = errors.New("kv: key not found")

// KVStore 键值存储.
type KVStore interface {
	// Get 键不存在时返回 ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set ttl<=0 表示永不过期.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Keys 返回匹配 glob 模式的键，顺序不保证.
	Keys(ctx context.Context, pattern string) ([]string, error)
	Close() error
}

// KVType 键值存储类型.
type KVType string

const (
	KVTypeMemory KVType = "memory"
	KVTypeRedis  KVType = "redis"
)

// KVFactory 按配置创建 KVStore，cfg 可能为 nil.
type KVFactory func(ctx context.Context, cfg *configs.KVConfig) (KVStore, error)

var kvFactories = map[KVType]KVFactory{}

// RegisterKVFactory 注册实现，只应在 init 中调用，重复注册会 panic.
func RegisterKVFactory(kvType KVType, factory KVFactory) {
	if _, dup := kvFactories[kvType]; dup {
		panic(fmt.Sprintf("kv: factory %q registered twice", kvType))
	}

	kvFactories[kvType] = factory
}

// GetRegisteredKVTypes 返回已注册的类型，按名称排序.
func GetRegisteredKVTypes() []KVType {
	return slices.Sorted(maps.Keys(kvFactories))
}

// NewKVStore 根据类型创建 KVStore 实例.
func NewKVStore(ctx context.Context, kvType KVType, cfg *configs.KVConfig) (KVStore, error) {
	factory, ok := kvFactories[kvType]
	if !ok {
		return nil, fmt.Errorf("unsupported KV type %q, registered: %v", kvType, GetRegisteredKVTypes())
	}

	return factory(ctx, cfg)
}

// Client storage.Manager 持有的 KV 客户端.
type Client struct {
	KVStore

	kvType KVType
}

// New 按配置创建 KV 客户端.
func New(ctx context.Context, cfg *configs.KVConfig) (*Client, error) {
	t := KVType(cfg.Type)

	store, err := NewKVStore(ctx, t, cfg)
	if err != nil {
		return nil, err
	}

	nlog.Logger().Info().Str("type", string(t)).Msg("kv store ready")

	return &Client{KVStore: store, kvType: t}, nil
}

// Type 返回实现类型.
func (c *Client) Type() KVType {
	return c.kvType
}

// HealthCheck memory 实现总是健康，redis 通过一次 EXISTS 往返确认连接.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.Exists(ctx, "ingestvault:health")

	return err
}
