package kv

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/yeisme/ingestvault/pkg/configs"
)

type entry struct {
	value     []byte
	expiresAt time.Time // 零值表示不过期
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryKV 进程内 KV，过期键在读取或写满时清理.
// 写满时先清理过期键，仍然满则随机淘汰一个，状态缓存丢失只会多回源一次.
type MemoryKV struct {
	mu         sync.RWMutex
	data       map[string]entry
	maxEntries int
	now        func() time.Time
}

// NewMemoryKV 创建内存 KV 实例.
func NewMemoryKV(_ context.Context, cfg *configs.KVConfig) (KVStore, error) {
	m := &MemoryKV{data: make(map[string]entry), now: time.Now}
	if cfg != nil {
		m.maxEntries = cfg.Memory.MaxEntries
	}

	return m, nil
}

// Get 获取键的值，返回副本.
func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	if e.expired(m.now()) {
		m.mu.Lock()
		if cur, ok := m.data[key]; ok && cur.expired(m.now()) {
			delete(m.data, key)
		}
		m.mu.Unlock()

		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	out := make([]byte, len(e.value))
	copy(out, e.value)

	return out, nil
}

// Set 设置键的值，ttl<=0 表示不过期.
func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: make([]byte, len(value))}
	copy(e.value, value)

	now := m.now()
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.data[key]; !exists && m.maxEntries > 0 && len(m.data) >= m.maxEntries {
		m.evict(now)
	}

	m.data[key] = e

	return nil
}

// evict 调用方持有写锁.
func (m *MemoryKV) evict(now time.Time) {
	for k, e := range m.data {
		if e.expired(now) {
			delete(m.data, k)
		}
	}

	if len(m.data) < m.maxEntries {
		return
	}

	for k := range m.data {
		delete(m.data, k)

		return
	}
}

// Delete 删除键.
func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()

	return nil
}

// Exists 检查键是否存在且未过期.
func (m *MemoryKV) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()

	return ok && !e.expired(m.now()), nil
}

// Keys 获取匹配 glob 模式的键，空模式等价于 "*".
func (m *MemoryKV) Keys(_ context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}

	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	now := m.now()
	keys := make([]string, 0)

	m.mu.RLock()
	defer m.mu.RUnlock()

	for k, e := range m.data {
		if e.expired(now) {
			continue
		}

		if matched, _ := path.Match(pattern, k); matched {
			keys = append(keys, k)
		}
	}

	return keys, nil
}

// Len 返回当前保存的键数量，包含尚未清理的过期键.
func (m *MemoryKV) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.data)
}

// Close 内存实现无需释放.
func (m *MemoryKV) Close() error {
	return nil
}

func init() {
	RegisterKVFactory(KVTypeMemory, NewMemoryKV)
}
