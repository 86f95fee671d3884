package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/fyerfyer/lgpd-explica/internal/provider"
	"github.com/sashabaranov/go-openai"
)

// OpenAIClient OpenAI兼容接口的嵌入客户端
// 也可用于 vLLM、LocalAI 等兼容服务
type OpenAIClient struct {
	client *openai.Client
	config *Config
}

// NewOpenAIClient 创建一个新的OpenAI嵌入客户端
func NewOpenAIClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.APIKey == "" {
		return nil, NewEmbeddingError(ErrCodeInvalidAPIKey, "OpenAI API key is required")
	}
	if cfg.Model == DefaultConfig().Model {
		cfg.Model = string(openai.SmallEmbedding3)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" && cfg.BaseURL != DefaultConfig().BaseURL {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}, nil
}

// Embed 对单个文本生成嵌入向量
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 对多个文本生成嵌入向量，速率限制时指数退避重试
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := checkTexts(texts); err != nil {
		return nil, err
	}

	req := openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(c.config.Model),
		Dimensions: c.config.Dimensions,
	}

	resp, err := retry.DoWithData(
		func() (openai.EmbeddingResponse, error) {
			timeoutCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
			defer cancel()
			return c.client.CreateEmbeddings(timeoutCtx, req)
		},
		retry.Context(ctx),
		retry.Attempts(provider.Attempts(c.config.MaxRetries)),
		retry.Delay(time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRateLimitError),
	)
	if err != nil {
		return nil, wrapOpenAIError(err)
	}

	// 按 index 还原输入顺序
	sort.Slice(resp.Data, func(i, j int) bool {
		return resp.Data[i].Index < resp.Data[j].Index
	})
	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}

	if err := checkBatch(texts, vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Name 返回模型名称
func (c *OpenAIClient) Name() string {
	return c.config.Model
}

func isRateLimitError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}

func wrapOpenAIError(err error) error {
	if isRateLimitError(err) {
		return ErrRateLimited
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return NewEmbeddingError(ErrCodeInvalidAPIKey, apiErr.Message)
		case http.StatusBadRequest, http.StatusNotFound:
			return NewEmbeddingError(ErrCodeInvalidRequest, apiErr.Message)
		default:
			return NewEmbeddingError(ErrCodeServerError, apiErr.Message)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewEmbeddingError(ErrCodeTimeout, ErrMsgTimeout)
	}
	return NewEmbeddingError(ErrCodeNetworkError, fmt.Sprintf("embedding API error: %v", err))
}

func init() {
	RegisterClient("openai", NewOpenAIClient)
}
