package embedding

import (
	"context"
	"time"

	"github.com/fyerfyer/lgpd-explica/internal/provider"
)

// ollamaEmbedRequest Ollama /api/embed 请求
type ollamaEmbedRequest struct {
	Model   string                 `json:"model"`
	Input   []string               `json:"input"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// ollamaEmbedResponse Ollama /api/embed 响应
type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// OllamaClient Ollama嵌入客户端
type OllamaClient struct {
	client provider.Client
	config *Config
}

// NewOllamaClient 创建Ollama嵌入客户端
func NewOllamaClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.BaseURL == DefaultConfig().BaseURL {
		cfg.BaseURL = "http://localhost:11434"
	}

	return &OllamaClient{
		client: provider.NewClient(provider.DefaultConfig().
			WithBaseURL(cfg.BaseURL).
			WithTimeout(cfg.Timeout).
			WithRetry(cfg.MaxRetries, time.Second)),
		config: cfg,
	}, nil
}

// Embed 生成单条文本的向量表示
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 批量生成向量
func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := checkTexts(texts); err != nil {
		return nil, err
	}

	req := ollamaEmbedRequest{
		Model: c.config.Model,
		Input: texts,
	}
	if c.config.Device == "cpu" {
		req.Options = map[string]interface{}{"num_gpu": 0}
	}

	var resp ollamaEmbedResponse
	if err := c.client.Post(ctx, "/api/embed", req, &resp); err != nil {
		return nil, wrapProviderError(err)
	}
	if err := checkBatch(texts, resp.Embeddings); err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}

// Name 返回模型名称
func (c *OllamaClient) Name() string {
	return c.config.Model
}

func init() {
	RegisterClient("ollama", NewOllamaClient)
}
