package embedding

import (
	"context"
	"time"
)

// Client 嵌入模型客户端接口
// 负责将文本转换为向量表示；同一模型对同一输入的结果是确定的
type Client interface {
	// Embed 生成单条文本的向量表示
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch 批量生成向量，结果与输入一一对应
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Name 返回模型名称
	Name() string
}

// Config 嵌入客户端配置
type Config struct {
	APIKey     string        // API密钥
	BaseURL    string        // 服务地址
	Model      string        // 模型名称
	Timeout    time.Duration // 请求超时时间
	MaxRetries int           // 最大重试次数
	Dimensions int           // 期望的向量维度，0 表示由模型决定
	BatchSize  int           // 单次请求的最大文本数
	Device     string        // 本地推理设备：auto 或 cpu
	Normalize  bool          // 是否返回归一化向量
}

// Option 客户端配置选项函数类型
type Option func(*Config)

// WithAPIKey 设置API密钥
func WithAPIKey(apiKey string) Option {
	return func(c *Config) {
		c.APIKey = apiKey
	}
}

// WithBaseURL 设置服务地址
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
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

// WithDimensions 设置向量维度
func WithDimensions(dimensions int) Option {
	return func(c *Config) {
		c.Dimensions = dimensions
	}
}

// WithBatchSize 设置批处理大小
func WithBatchSize(size int) Option {
	return func(c *Config) {
		c.BatchSize = size
	}
}

// WithDevice 设置推理设备
func WithDevice(device string) Option {
	return func(c *Config) {
		c.Device = device
	}
}

// WithNormalize 设置是否归一化
func WithNormalize(normalize bool) Option {
	return func(c *Config) {
		c.Normalize = normalize
	}
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:8000/api",
		Model:      "sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2",
		Timeout:    60 * time.Second,
		MaxRetries: 3,
		BatchSize:  32,
		Device:     "cpu",
		Normalize:  true,
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

// Factory 嵌入客户端工厂函数类型
type Factory func(opts ...Option) (Client, error)

var clientFactories = make(map[string]Factory)

// RegisterClient 注册嵌入客户端工厂函数
func RegisterClient(name string, factory Factory) {
	clientFactories[name] = factory
}

// NewClient 根据名称创建嵌入客户端
func NewClient(name string, opts ...Option) (Client, error) {
	factory, exists := clientFactories[name]
	if !exists {
		return nil, NewEmbeddingError(
			ErrCodeInvalidRequest,
			"embedding client type not registered: "+name)
	}
	return factory(opts...)
}

// checkBatch 校验批量输入
func checkBatch(texts []string, vectors [][]float32) error {
	if len(vectors) != len(texts) {
		return NewEmbeddingError(ErrCodeServerError,
			"embedding count mismatch")
	}
	for _, v := range vectors {
		if len(v) == 0 {
			return NewEmbeddingError(ErrCodeServerError, "empty embedding returned")
		}
	}
	return nil
}

func checkTexts(texts []string) error {
	for _, t := range texts {
		if t == "" {
			return ErrEmptyText
		}
	}
	return nil
}
