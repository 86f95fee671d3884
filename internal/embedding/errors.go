package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fyerfyer/lgpd-explica/internal/provider"
)

// EmbeddingError 嵌入错误类型
type EmbeddingError struct {
	Code    int    // 错误码
	Message string // 错误消息
}

// Error 实现error接口
func (e EmbeddingError) Error() string {
	return fmt.Sprintf("embedding error (code=%d): %s", e.Code, e.Message)
}

// 错误码常量
const (
	ErrCodeInvalidAPIKey  = 1001 // 无效的API密钥
	ErrCodeInvalidRequest = 1002 // 无效的请求
	ErrCodeNetworkError   = 1003 // 网络连接错误
	ErrCodeRateLimited    = 1004 // 请求频率超限
	ErrCodeServerError    = 1005 // 服务器错误
	ErrCodeTimeout        = 1006 // 请求超时
	ErrCodeEmptyInput     = 1007 // 输入为空
)

// 错误消息常量
const (
	ErrMsgInvalidAPIKey  = "invalid API key"
	ErrMsgInvalidRequest = "invalid request parameters"
	ErrMsgRateLimited    = "too many requests, rate limit exceeded"
	ErrMsgServerError    = "server error occurred"
	ErrMsgTimeout        = "request timed out"
	ErrMsgEmptyInput     = "input text cannot be empty"
	ErrMsgNetworkError   = "network connection error"
)

// 预定义错误
var (
	ErrEmptyText   = NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
	ErrRateLimited = NewEmbeddingError(ErrCodeRateLimited, ErrMsgRateLimited)
)

// NewEmbeddingError 创建新的嵌入错误
func NewEmbeddingError(code int, message string) EmbeddingError {
	return EmbeddingError{
		Code:    code,
		Message: message,
	}
}

// wrapProviderError 把传输层错误映射为嵌入错误码
func wrapProviderError(err error) error {
	var embErr EmbeddingError
	if errors.As(err, &embErr) {
		return err
	}

	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return NewEmbeddingError(ErrCodeInvalidAPIKey, apiErr.Detail)
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return NewEmbeddingError(ErrCodeRateLimited, apiErr.Detail)
		case apiErr.StatusCode >= 500:
			return NewEmbeddingError(ErrCodeServerError, apiErr.Detail)
		default:
			return NewEmbeddingError(ErrCodeInvalidRequest, apiErr.Detail)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewEmbeddingError(ErrCodeTimeout, ErrMsgTimeout)
	}
	return NewEmbeddingError(ErrCodeNetworkError, err.Error())
}
