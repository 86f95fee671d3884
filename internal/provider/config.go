package provider

import (
	"time"
)

// Config 模型服务连接配置
type Config struct {
	BaseURL    string            // 服务基础URL
	Timeout    time.Duration     // 单次请求超时时间
	MaxRetries int               // 失败后的最大重试次数
	RetryDelay time.Duration     // 首次重试前的等待时间，之后指数退避
	Headers    map[string]string // 额外请求头，例如 Authorization
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:8000/api",
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// WithBaseURL 设置基础URL
func (c *Config) WithBaseURL(url string) *Config {
	c.BaseURL = url
	return c
}

// WithTimeout 设置请求超时时间
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithRetry 设置重试参数
func (c *Config) WithRetry(maxRetries int, retryDelay time.Duration) *Config {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
	return c
}

// WithBearerToken 设置鉴权令牌
func (c *Config) WithBearerToken(token string) *Config {
	if token == "" {
		return c
	}
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
	c.Headers["Authorization"] = "Bearer " + token
	return c
}

// Attempts 返回包含首次请求在内的总尝试次数
// 负数按不重试处理，retry-go 会把 0 当作无限重试
func Attempts(maxRetries int) uint {
	if maxRetries < 0 {
		return 1
	}
	return uint(maxRetries) + 1
}
