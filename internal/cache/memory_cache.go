package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache 基于go-cache实现的内存缓存
type MemoryCache struct {
	cache  *gocache.Cache
	prefix string
}

// NewMemoryCache 创建一个新的内存缓存
func NewMemoryCache(config Config) (Cache, error) {
	defaultExpiration := config.DefaultTTL
	if defaultExpiration == 0 {
		defaultExpiration = time.Hour
	}

	cleanupInterval := config.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 10 * time.Minute
	}

	return &MemoryCache{
		cache:  gocache.New(defaultExpiration, cleanupInterval),
		prefix: config.KeyPrefix,
	}, nil
}

func (m *MemoryCache) key(k string) string {
	if m.prefix == "" {
		return k
	}
	return GenerateCacheKey(m.prefix, k)
}

// Get 获取缓存内容
func (m *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	if value, found := m.cache.Get(m.key(key)); found {
		str, ok := value.(string)
		if !ok {
			return "", false, nil
		}
		return str, true, nil
	}
	return "", false, nil
}

// Set 设置缓存内容，ttl 为 0 时使用默认过期时间
func (m *MemoryCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	m.cache.Set(m.key(key), value, ttl)
	return nil
}

// Delete 删除缓存项
func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.cache.Delete(m.key(key))
	return nil
}

// Clear 清空所有缓存
func (m *MemoryCache) Clear(_ context.Context) error {
	m.cache.Flush()
	return nil
}

// Close 内存缓存无需释放
func (m *MemoryCache) Close() error {
	return nil
}

func init() {
	RegisterCache("memory", NewMemoryCache)
}
