package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/fyerfyer/lgpd-explica/api/model"
	"github.com/fyerfyer/lgpd-explica/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 定义应用中的错误类型常量
const (
	ErrorTypeValidation  = "VALIDATION_ERROR"  // 输入验证错误
	ErrorTypeUnavailable = "UNAVAILABLE_ERROR" // 服务未初始化
	ErrorTypeInternal    = "INTERNAL_ERROR"    // 内部服务器错误
)

// AppError 应用错误结构体
type AppError struct {
	Type    string // 错误类型
	Message string // 错误消息
	Details string // 详细错误信息
	Code    int    // HTTP状态码
}

// Error 实现error接口的方法
func (e AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewValidationError 创建输入验证错误
func NewValidationError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusBadRequest,
	}
}

// NewUnavailableError 创建服务不可用错误
func NewUnavailableError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeUnavailable,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusServiceUnavailable,
	}
}

// NewInternalError 创建内部服务器错误
func NewInternalError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusInternalServerError,
	}
}

// FromPipelineError 把流水线错误映射为应用错误
func FromPipelineError(err error) AppError {
	var pe *services.PipelineError
	if !errors.As(err, &pe) {
		return NewInternalError("Internal server error", err.Error())
	}

	switch {
	case errors.Is(pe.Kind, services.ErrEmptyQuestion):
		return NewValidationError(pe.Message)
	case errors.Is(pe.Kind, services.ErrNotInitialized):
		return NewUnavailableError(pe.Message, pe.Detail)
	default:
		return NewInternalError(pe.Message, pe.Detail)
	}
}

// ErrorMiddleware 统一错误处理中间件
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 捕获 panic
		defer func() {
			if err := recover(); err != nil {
				log.WithFields(logrus.Fields{
					FieldError:   err,
					"stack":      string(debug.Stack()),
					FieldPath:    c.Request.URL.Path,
					FieldTraceID: c.GetString(TraceIDKey),
				}).Error("Panic recovered in API request")

				errorResponse := model.NewErrorResponse(
					http.StatusInternalServerError,
					"An unexpected error occurred",
				)
				if gin.Mode() == gin.DebugMode {
					errorResponse.Message = fmt.Sprintf("Panic: %v", err)
				}
				errorResponse.TraceID = c.GetString(TraceIDKey)

				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse)
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// 取最后一个错误进行处理
		err := c.Errors.Last().Err
		traceID := c.GetString(TraceIDKey)

		var appErr AppError
		switch e := err.(type) {
		case AppError:
			appErr = e
		case *AppError:
			appErr = *e
		default:
			appErr = FromPipelineError(err)
		}

		entry := log.WithFields(logrus.Fields{
			"error_type": appErr.Type,
			FieldTraceID: traceID,
			FieldPath:    c.Request.URL.Path,
		})
		if appErr.Details != "" {
			entry = entry.WithField(FieldError, appErr.Details)
		}
		if appErr.Code >= http.StatusInternalServerError {
			entry.Error(appErr.Message)
		} else {
			entry.Warn(appErr.Message)
		}

		errResp := model.NewErrorResponse(appErr.Code, appErr.Message)
		errResp.Detail = appErr.Details
		errResp.TraceID = traceID

		c.AbortWithStatusJSON(appErr.Code, errResp)
	}
}

// HandleError 在处理器中使用的错误处理辅助函数
func HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
}
