package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// Client 模型服务的JSON-over-HTTP客户端接口
type Client interface {
	// Get 发送GET请求，结果解码到 result
	Get(ctx context.Context, path string, result interface{}) error
	// Post 发送POST请求，data 编码为JSON
	Post(ctx context.Context, path string, data interface{}, result interface{}) error
	// BaseURL 返回服务地址
	BaseURL() string
}

// HTTPClient 带重试的HTTP客户端实现
type HTTPClient struct {
	client  *http.Client
	config  *Config
	headers map[string]string
}

// APIError 服务返回的错误
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Detail     string `json:"detail"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status code: %d): %s - %s", e.StatusCode, e.Message, e.Detail)
}

// Temporary 5xx 和 429 可以重试
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// NewClient 创建HTTP客户端
func NewClient(config *Config) *HTTPClient {
	if config == nil {
		config = DefaultConfig()
	}

	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
		"User-Agent":   "LGPD-Explica-Go-Client/1.0",
	}
	for k, v := range config.Headers {
		headers[k] = v
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		config:  config,
		headers: headers,
	}
}

// Get 发送GET请求
func (c *HTTPClient) Get(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// Post 发送POST请求
func (c *HTTPClient) Post(ctx context.Context, path string, data interface{}, result interface{}) error {
	var body []byte
	if data != nil {
		var err error
		body, err = json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal request data: %w", err)
		}
	}
	return c.do(ctx, http.MethodPost, path, body, result)
}

// BaseURL 返回服务地址
func (c *HTTPClient) BaseURL() string {
	return c.config.BaseURL
}

// do 执行请求，网络错误和临时性服务错误按指数退避重试
func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, result interface{}) error {
	url := strings.TrimRight(c.config.BaseURL, "/") + path

	delay := c.config.RetryDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	return retry.Do(
		func() error {
			var reader io.Reader
			if body != nil {
				reader = bytes.NewReader(body)
			}

			req, err := http.NewRequestWithContext(ctx, method, url, reader)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
			}
			for k, v := range c.headers {
				req.Header.Set(k, v)
			}

			return c.send(req, result)
		},
		retry.Context(ctx),
		retry.Attempts(Attempts(c.config.MaxRetries)),
		retry.Delay(delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
	)
}

func (c *HTTPClient) send(req *http.Request, result interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    "API call failed",
		}

		var errResp struct {
			Detail string `json:"detail"`
			Error  string `json:"error"`
		}
		switch {
		case json.Unmarshal(body, &errResp) == nil && errResp.Detail != "":
			apiErr.Detail = errResp.Detail
		case errResp.Error != "":
			apiErr.Detail = errResp.Error
		default:
			apiErr.Detail = string(body)
		}
		return apiErr
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return retry.Unrecoverable(fmt.Errorf("failed to unmarshal response JSON: %w", err))
		}
	}
	return nil
}

func isRetryable(err error) bool {
	if !retry.IsRecoverable(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}
