package model

// QARequest 问答请求
type QARequest struct {
	Question string `json:"question" form:"question" binding:"max=2000"` // 问题内容，空问题由服务返回提示
}
