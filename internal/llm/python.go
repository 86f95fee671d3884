package llm

import (
	"context"
	"strings"
	"time"

	"github.com/fyerfyer/lgpd-explica/internal/provider"
)

// generateRequest 本地模型服务 /generate 请求
type generateRequest struct {
	Prompt       string  `json:"prompt"`
	Model        string  `json:"model"`
	MaxNewTokens int     `json:"max_new_tokens"`
	DoSample     bool    `json:"do_sample"`
	Temperature  float32 `json:"temperature"`
	TopK         int     `json:"top_k"`
	Device       string  `json:"device"`
}

// generateResponse 本地模型服务 /generate 响应
// generated_text 与 transformers pipeline 一致，包含提示词
type generateResponse struct {
	GeneratedText    string `json:"generated_text"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

// loadRequest /load 请求，确保模型已载入
type loadRequest struct {
	Model  string `json:"model"`
	Device string `json:"device"`
}

type loadResponse struct {
	Success bool   `json:"success"`
	Model   string `json:"model"`
	Device  string `json:"device"`
}

// PythonClient 调用本地 transformers 服务的生成客户端
type PythonClient struct {
	client provider.Client
	config *Config
}

// NewPythonClient 创建本地模型服务生成客户端
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

// Generate 生成文本
func (c *PythonClient) Generate(ctx context.Context, prompt string) (*Response, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}

	d := c.config.Decoding
	req := generateRequest{
		Prompt:       prompt,
		Model:        c.config.Model,
		MaxNewTokens: d.MaxNewTokens,
		DoSample:     d.DoSample,
		Temperature:  d.Temperature,
		TopK:         d.TopK,
		Device:       d.Device,
	}

	var resp generateResponse
	if err := c.client.Post(ctx, "/generate", req, &resp); err != nil {
		return nil, wrapProviderError(err)
	}
	if resp.GeneratedText == "" {
		return nil, NewLLMError(ErrCodeEmptyOutput, ErrMsgEmptyOutput)
	}

	return &Response{
		Text:             resp.GeneratedText,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
		ModelName:        c.config.Model,
		FinishTime:       time.Now(),
	}, nil
}

// Ping 请求服务加载模型
func (c *PythonClient) Ping(ctx context.Context) error {
	var resp loadResponse
	req := loadRequest{Model: c.config.Model, Device: c.config.Decoding.Device}
	if err := c.client.Post(ctx, "/load", req, &resp); err != nil {
		return wrapProviderError(err)
	}
	if !resp.Success {
		return NewLLMError(ErrCodeModelLoad, "model service reported load failure for "+c.config.Model)
	}
	return nil
}

// Name 返回模型名称
func (c *PythonClient) Name() string {
	return c.config.Model
}

func init() {
	RegisterClient("python", NewPythonClient)
}
