package llm

import (
	"context"
	"time"
)

// Client 文本生成客户端接口
// 解码参数在创建时固定，Generate 只接收提示词
type Client interface {
	// Generate 根据提示词生成文本
	Generate(ctx context.Context, prompt string) (*Response, error)

	// Name 返回模型名称
	Name() string
}

// Pinger 可选接口，用于在加载阶段确认模型可用
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config 生成客户端配置
type Config struct {
	APIKey     string         // API密钥
	BaseURL    string         // API基础URL
	Model      string         // 模型名称
	Timeout    time.Duration  // 单次生成超时时间
	MaxRetries int            // 传输层最大重试次数
	Decoding   DecodingConfig // 解码参数
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:8000/api",
		Model:      ModelTinyLlamaChat,
		Timeout:    5 * time.Minute,
		MaxRetries: 0,
		Decoding:   DefaultDecodingConfig(),
	}
}

// Option 客户端配置选项函数类型
type Option func(*Config)

// WithAPIKey 设置API密钥
func WithAPIKey(apiKey string) Option {
	return func(c *Config) {
		c.APIKey = apiKey
	}
}

// WithBaseURL 设置API基础URL
func WithBaseURL(url string) Option {
	return func(c *Config) {
		if url != "" {
			c.BaseURL = url
		}
	}
}

// WithModel 设置模型名称
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithTimeout 设置请求超时时间
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithMaxRetries 设置最大重试次数
func WithMaxRetries(retries int) Option {
	return func(c *Config) {
		c.MaxRetries = retries
	}
}

// WithDecoding 设置解码参数
func WithDecoding(d DecodingConfig) Option {
	return func(c *Config) {
		c.Decoding = d
	}
}

// NewConfig 创建一个新的配置并应用选项
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Factory 生成客户端工厂函数类型
type Factory func(opts ...Option) (Client, error)

// 全局注册的生成客户端工厂函数
var clientFactories = make(map[string]Factory)

// RegisterClient 注册生成客户端工厂函数
func RegisterClient(name string, factory Factory) {
	clientFactories[name] = factory
}

// NewClient 根据名称创建生成客户端
func NewClient(name string, opts ...Option) (Client, error) {
	factory, exists := clientFactories[name]
	if !exists {
		return nil, NewLLMError(
			ErrCodeInvalidRequest,
			"llm client type not registered: "+name)
	}
	return factory(opts...)
}
