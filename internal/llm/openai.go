package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient OpenAI兼容的补全接口客户端
// 也可用于 vLLM、llama.cpp server 等兼容服务；top_k 不受支持
type OpenAIClient struct {
	client *openai.Client
	config *Config
}

// NewOpenAIClient 创建OpenAI兼容生成客户端
func NewOpenAIClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, "OpenAI API key is required")
	}
	if cfg.Model == ModelTinyLlamaChat {
		cfg.Model = openai.GPT3Dot5TurboInstruct
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" && cfg.BaseURL != DefaultConfig().BaseURL {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}, nil
}

// Generate 调用补全接口，返回内容不包含提示词
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (*Response, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}

	d := c.config.Decoding
	temperature := d.Temperature
	if !d.DoSample || temperature == 0 {
		// 0 会被 omitempty 丢弃，改用最小正数表示贪心
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := c.client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       c.config.Model,
		Prompt:      prompt,
		MaxTokens:   d.MaxNewTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, wrapOpenAIError(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Text) == "" {
		return nil, NewLLMError(ErrCodeEmptyOutput, ErrMsgEmptyOutput)
	}

	return &Response{
		Text:             resp.Choices[0].Text,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		ModelName:        resp.Model,
		FinishTime:       time.Now(),
	}, nil
}

// Name 返回模型名称
func (c *OpenAIClient) Name() string {
	return c.config.Model
}

func wrapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return NewLLMError(ErrCodeInvalidAPIKey, messageOr(apiErr.Message, ErrMsgInvalidAPIKey))
		case http.StatusTooManyRequests:
			return NewLLMError(ErrCodeRateLimited, messageOr(apiErr.Message, ErrMsgRateLimited))
		case http.StatusBadRequest:
			if apiErr.Code == "context_length_exceeded" {
				return NewLLMError(ErrCodeContextTooLong, messageOr(apiErr.Message, ErrMsgContextTooLong))
			}
			return NewLLMError(ErrCodeInvalidRequest, messageOr(apiErr.Message, ErrMsgInvalidRequest))
		default:
			return NewLLMError(ErrCodeServerError, messageOr(apiErr.Message, ErrMsgServerError))
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewLLMError(ErrCodeTimeout, ErrMsgTimeout)
	}
	return NewLLMError(ErrCodeNetworkError, fmt.Sprintf("completion API error: %v", err))
}

func init() {
	RegisterClient("openai", NewOpenAIClient)
}
