package middleware

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/fyerfyer/lgpd-explica/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log = logrus.New()

// 初始化日志配置
func init() {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})
	log.SetLevel(logrus.InfoLevel)
}

// LogOptions 日志输出配置
type LogOptions struct {
	Level      string // debug/info/warn/error
	File       string // 为空时只输出到标准输出
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	FileOnly   bool // 不输出到标准输出，终端界面使用
}

// SetupLogger 按配置设置全局日志记录器
// 指定文件时同时输出到标准输出和按大小滚动的日志文件
func SetupLogger(opts LogOptions) *logrus.Logger {
	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if opts.File == "" {
		log.SetOutput(os.Stdout)
		return log
	}

	file := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	if opts.FileOnly {
		log.SetOutput(file)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, file))
	}

	return log
}

// Logger 日志中间件
// 记录请求信息和响应时间
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.WithFields(logrus.Fields{
			FieldStatus:   c.Writer.Status(),
			FieldLatency:  time.Since(start).String(),
			FieldClientIP: c.ClientIP(),
			FieldMethod:   c.Request.Method,
			FieldPath:     path,
			FieldTraceID:  c.GetString(TraceIDKey),
		}).Info("HTTP request")
	}
}

// RequestBodyLog 请求体日志中间件
// 在DEBUG模式下记录请求体内容
func RequestBodyLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		if log.IsLevelEnabled(logrus.DebugLevel) && c.Request.Body != nil {
			var buf bytes.Buffer
			body, _ := io.ReadAll(io.TeeReader(c.Request.Body, &buf))
			c.Request.Body = io.NopCloser(&buf)

			if len(body) > 0 {
				log.WithFields(logrus.Fields{
					FieldMethod:  c.Request.Method,
					FieldPath:    c.Request.URL.Path,
					FieldTraceID: c.GetString(TraceIDKey),
					"body":       string(body),
				}).Debug("Request body")
			}
		}

		c.Next()
	}
}

// TraceIDKey 追踪ID在 gin 上下文中的键
const TraceIDKey = "TraceID"

// SetTraceID 将追踪ID设置到上下文和响应头中
// 同时写入请求的 context，供流水线日志使用
func SetTraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header("X-Trace-ID", traceID)
		c.Request = c.Request.WithContext(services.WithTraceID(c.Request.Context(), traceID))

		c.Next()
	}
}

// 常用日志字段
const (
	FieldTraceID  = "trace_id"    // 追踪ID
	FieldPath     = "path"        // 请求路径
	FieldMethod   = "method"      // 请求方法
	FieldStatus   = "status_code" // 状态码
	FieldLatency  = "latency"     // 延迟时间
	FieldClientIP = "client_ip"   // 客户端IP
	FieldError    = "error"       // 错误信息
)

// GetLogger 返回全局日志记录器
func GetLogger() *logrus.Logger {
	return log
}
