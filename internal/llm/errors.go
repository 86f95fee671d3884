package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fyerfyer/lgpd-explica/internal/provider"
)

// LLMError 大模型调用错误类型
type LLMError struct {
	Code    int    // 错误码
	Message string // 错误消息
}

// Error 实现error接口
func (e LLMError) Error() string {
	return fmt.Sprintf("llm error (code=%d): %s", e.Code, e.Message)
}

// 错误码常量
const (
	ErrCodeInvalidAPIKey  = 1001 // 无效的API密钥
	ErrCodeInvalidRequest = 1002 // 无效的请求
	ErrCodeNetworkError   = 1003 // 网络连接错误
	ErrCodeRateLimited    = 1004 // 请求频率超限
	ErrCodeServerError    = 1005 // 服务器错误
	ErrCodeTimeout        = 1006 // 请求超时
	ErrCodeEmptyPrompt    = 1007 // 提示词为空
	ErrCodeEmptyOutput    = 1008 // 模型没有输出
	ErrCodeModelOverload  = 1009 // 模型过载
	ErrCodeContextTooLong = 1010 // 上下文过长
	ErrCodeModelLoad      = 1011 // 模型加载失败
)

// 错误消息常量
const (
	ErrMsgInvalidAPIKey  = "invalid API key"
	ErrMsgInvalidRequest = "invalid request parameters"
	ErrMsgRateLimited    = "too many requests, rate limit exceeded"
	ErrMsgServerError    = "server error occurred"
	ErrMsgTimeout        = "request timed out"
	ErrMsgEmptyPrompt    = "prompt cannot be empty"
	ErrMsgEmptyOutput    = "model returned no output"
	ErrMsgNetworkError   = "network connection error"
	ErrMsgModelOverload  = "model is currently overloaded"
	ErrMsgContextTooLong = "context length exceeds model's maximum"
)

// ErrModelLoad 生成模型加载失败，可用 errors.Is 判断
var ErrModelLoad = errors.New("failed to load generation model")

// NewLLMError 创建新的大模型错误
func NewLLMError(code int, message string) LLMError {
	return LLMError{
		Code:    code,
		Message: message,
	}
}

// WrapError 包装普通错误为LLM错误
func WrapError(err error, code int) LLMError {
	if err == nil {
		return LLMError{Code: code, Message: "unknown error"}
	}

	var llmErr LLMError
	if errors.As(err, &llmErr) {
		return llmErr
	}

	return LLMError{
		Code:    code,
		Message: err.Error(),
	}
}

// messageOr 后端未给出详情时使用默认消息
func messageOr(detail, fallback string) string {
	if detail == "" {
		return fallback
	}
	return detail
}

// wrapProviderError 把传输层错误映射为生成错误码
func wrapProviderError(err error) error {
	var llmErr LLMError
	if errors.As(err, &llmErr) {
		return err
	}

	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return NewLLMError(ErrCodeInvalidAPIKey, messageOr(apiErr.Detail, ErrMsgInvalidAPIKey))
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return NewLLMError(ErrCodeRateLimited, messageOr(apiErr.Detail, ErrMsgRateLimited))
		case apiErr.StatusCode == http.StatusRequestEntityTooLarge:
			return NewLLMError(ErrCodeContextTooLong, messageOr(apiErr.Detail, ErrMsgContextTooLong))
		case apiErr.StatusCode == http.StatusServiceUnavailable:
			return NewLLMError(ErrCodeModelOverload, messageOr(apiErr.Detail, ErrMsgModelOverload))
		case apiErr.StatusCode >= 500:
			return NewLLMError(ErrCodeServerError, messageOr(apiErr.Detail, ErrMsgServerError))
		default:
			return NewLLMError(ErrCodeInvalidRequest, messageOr(apiErr.Detail, ErrMsgInvalidRequest))
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewLLMError(ErrCodeTimeout, ErrMsgTimeout)
	}
	return NewLLMError(ErrCodeNetworkError, fmt.Sprintf("%s: %v", ErrMsgNetworkError, err))
}
