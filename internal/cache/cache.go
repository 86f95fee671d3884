package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Cache 缓存接口
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
}

// Factory 缓存工厂函数类型
type Factory func(config Config) (Cache, error)

// 注册的缓存实现
var registry = make(map[string]Factory)

// RegisterCache 注册缓存实现
func RegisterCache(name string, factory Factory) {
	registry[name] = factory
}

// NewCache 创建缓存实例
func NewCache(config Config) (Cache, error) {
	if config.Type == "" {
		config.Type = "memory"
	}
	factory, ok := registry[config.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported cache type: %s", config.Type)
	}
	return factory(config)
}

// Config 缓存配置
type Config struct {
	// 缓存类型: "memory" 或 "redis"
	Type string
	// Redis连接地址
	RedisAddr string
	// Redis密码
	RedisPassword string
	// Redis数据库编号
	RedisDB int
	// 键前缀，Clear 只删除该前缀下的键
	KeyPrefix string
	// 默认缓存过期时间
	DefaultTTL time.Duration
	// 自动清理间隔时间 (仅内存缓存使用)
	CleanupInterval time.Duration
}

// DefaultConfig 返回默认缓存配置
func DefaultConfig() Config {
	return Config{
		Type:            "memory",
		KeyPrefix:       "lgpd",
		DefaultTTL:      time.Hour,
		CleanupInterval: time.Minute * 10,
	}
}

// GenerateCacheKey 生成标准化的缓存键
func GenerateCacheKey(prefix string, parts ...string) string {
	if len(parts) == 0 {
		return prefix
	}
	return prefix + ":" + strings.Join(parts, ":")
}
