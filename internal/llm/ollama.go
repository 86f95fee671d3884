package llm

import (
	"context"
	"strings"
	"time"

	"github.com/fyerfyer/lgpd-explica/internal/provider"
)

// ollamaGenerateRequest Ollama /api/generate 请求
// raw 模式下提示词原样传入，不套用模型自带模板
type ollamaGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Raw     bool                   `json:"raw"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

type ollamaShowRequest struct {
	Model string `json:"model"`
}

// OllamaClient Ollama生成客户端
type OllamaClient struct {
	client  provider.Client
	config  *Config
	options map[string]interface{}
}

// NewOllamaClient 创建Ollama生成客户端
func NewOllamaClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.BaseURL == DefaultConfig().BaseURL {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == ModelTinyLlamaChat {
		cfg.Model = ModelOllamaDefault
	}

	return &OllamaClient{
		client: provider.NewClient(provider.DefaultConfig().
			WithBaseURL(cfg.BaseURL).
			WithTimeout(cfg.Timeout).
			WithRetry(cfg.MaxRetries, time.Second)),
		config:  cfg,
		options: ollamaOptions(cfg.Decoding),
	}, nil
}

// ollamaOptions 把解码参数转换为 Ollama options
func ollamaOptions(d DecodingConfig) map[string]interface{} {
	opts := map[string]interface{}{
		"num_predict": d.MaxNewTokens,
	}
	if d.DoSample {
		opts["temperature"] = d.Temperature
		if d.TopK > 0 {
			opts["top_k"] = d.TopK
		}
	} else {
		// 贪心解码
		opts["temperature"] = 0
		opts["top_k"] = 1
	}
	if d.Device == DeviceCPU {
		opts["num_gpu"] = 0
	}
	return opts
}

// Generate 生成文本，返回内容不包含提示词
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (*Response, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}

	req := ollamaGenerateRequest{
		Model:   c.config.Model,
		Prompt:  prompt,
		Raw:     true,
		Stream:  false,
		Options: c.options,
	}

	var resp ollamaGenerateResponse
	if err := c.client.Post(ctx, "/api/generate", req, &resp); err != nil {
		return nil, wrapProviderError(err)
	}
	if strings.TrimSpace(resp.Response) == "" {
		return nil, NewLLMError(ErrCodeEmptyOutput, ErrMsgEmptyOutput)
	}

	return &Response{
		Text:             resp.Response,
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		ModelName:        c.config.Model,
		FinishTime:       time.Now(),
	}, nil
}

// Ping 确认模型已在本地拉取
func (c *OllamaClient) Ping(ctx context.Context) error {
	var resp map[string]interface{}
	if err := c.client.Post(ctx, "/api/show", ollamaShowRequest{Model: c.config.Model}, &resp); err != nil {
		return wrapProviderError(err)
	}
	return nil
}

// Name 返回模型名称
func (c *OllamaClient) Name() string {
	return c.config.Model
}

func init() {
	RegisterClient("ollama", NewOllamaClient)
}
