package embedding

import (
	"context"
	"time"

	"github.com/fyerfyer/lgpd-explica/internal/provider"
)

// batchEmbeddingRequest 本地模型服务的批量嵌入请求
type batchEmbeddingRequest struct {
	Texts     []string `json:"texts"`
	Model     string   `json:"model,omitempty"`
	Device    string   `json:"device,omitempty"`
	Normalize bool     `json:"normalize"`
}

// batchEmbeddingResponse 本地模型服务的批量嵌入响应
type batchEmbeddingResponse struct {
	Success       bool        `json:"success"`
	Model         string      `json:"model"`
	Count         int         `json:"count"`
	Dimension     int         `json:"dimension"`
	Embeddings    [][]float32 `json:"embeddings"`
	ProcessTimeMs int         `json:"process_time_ms"`
}

// PythonClient 调用本地 sentence-transformers 服务的嵌入客户端
type PythonClient struct {
	client provider.Client
	config *Config
}

// NewPythonClient 创建本地模型服务嵌入客户端
func NewPythonClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	pyConfig := provider.DefaultConfig().
		WithBaseURL(cfg.BaseURL).
		WithTimeout(cfg.Timeout).
		WithRetry(cfg.MaxRetries, time.Second).
		WithBearerToken(cfg.APIKey)

	return &PythonClient{
		client: provider.NewClient(pyConfig),
		config: cfg,
	}, nil
}

// Embed 生成单条文本的向量表示
func (c *PythonClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 批量生成向量
func (c *PythonClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := checkTexts(texts); err != nil {
		return nil, err
	}

	req := batchEmbeddingRequest{
		Texts:     texts,
		Model:     c.config.Model,
		Device:    c.config.Device,
		Normalize: c.config.Normalize,
	}

	var resp batchEmbeddingResponse
	if err := c.client.Post(ctx, "/embeddings/batch", req, &resp); err != nil {
		return nil, wrapProviderError(err)
	}
	if err := checkBatch(texts, resp.Embeddings); err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}

// Name 返回模型名称
func (c *PythonClient) Name() string {
	return c.config.Model
}

func init() {
	RegisterClient("python", NewPythonClient)
}
