package model

import (
	"github.com/fyerfyer/lgpd-explica/internal/document"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Detail  string      `json:"detail,omitempty"`   // 技术细节，仅用于排查
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// QASourceInfo 问答来源信息
type QASourceInfo struct {
	Text     string `json:"text"`     // 相关文本段落
	Source   string `json:"source"`   // 来源文档
	Page     int    `json:"page"`     // 页码
	Position int    `json:"position"` // 段落位置
}

// QAResponse 问答响应
type QAResponse struct {
	Question     string         `json:"question"`      // 用户问题
	Answer       string         `json:"answer"`        // 生成的回答
	Sources      []QASourceInfo `json:"sources"`       // 来源信息，与提示词中的顺序一致
	Model        string         `json:"model"`         // 生成模型
	PromptTokens int            `json:"prompt_tokens"` // 提示词token数
	ElapsedMS    int64          `json:"elapsed_ms"`    // 耗时（毫秒）
}

// ConvertToSourceInfo 将文本块转换为来源信息
func ConvertToSourceInfo(chunks []document.Chunk) []QASourceInfo {
	sources := make([]QASourceInfo, len(chunks))
	for i, c := range chunks {
		sources[i] = QASourceInfo{
			Text:     c.Text,
			Source:   c.Source,
			Page:     c.Page,
			Position: c.Index,
		}
	}
	return sources
}

// ComponentHealth 组件状态
type ComponentHealth struct {
	State string `json:"state"`           // idle/ready/failed
	Error string `json:"error,omitempty"` // 最近一次初始化错误
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status        string          `json:"status"` // ok 或 degraded
	Ready         bool            `json:"ready"`
	KnowledgeBase ComponentHealth `json:"knowledge_base"`
	Generator     ComponentHealth `json:"generator"`
}
