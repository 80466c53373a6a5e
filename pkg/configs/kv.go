package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultKVMemoryMaxEntries = 100000
	DefaultKVRedisPoolSize    = 10
	DefaultKVRedisTimeout     = 3 * time.Second
)

// KVConfig 键值存储配置，用于状态查询缓存.
type KVConfig struct {
	Type   string         `mapstructure:"type"   rule:"oneof=memory redis"`
	Memory MemoryKVConfig `mapstructure:"memory"`
	Redis  RedisKVConfig  `mapstructure:"redis"`
}

// MemoryKVConfig 内存 KV 配置，MaxEntries 为 0 时不限制.
type MemoryKVConfig struct {
	MaxEntries int `mapstructure:"max_entries" rule:"gte=0"`
}

// RedisKVConfig Redis KV 配置.
type RedisKVConfig struct {
	Addr     string        `mapstructure:"addr"      rule:"hostname_port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"        rule:"min=0,max=15"`
	PoolSize int           `mapstructure:"pool_size" rule:"gte=0"`
	Timeout  time.Duration `mapstructure:"timeout"` // 连接与读写超时
}

// GetKVType 返回当前配置的 KV 类型.
func (c *KVConfig) GetKVType() string {
	return c.Type
}

func (c *KVConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("kv.type", "memory")
	v.SetDefault("kv.memory.max_entries", DefaultKVMemoryMaxEntries)

	v.SetDefault("kv.redis.addr", "localhost:6379")
	v.SetDefault("kv.redis.password", "")
	v.SetDefault("kv.redis.db", 0)
	v.SetDefault("kv.redis.pool_size", DefaultKVRedisPoolSize)
	v.SetDefault("kv.redis.timeout", DefaultKVRedisTimeout)
}
