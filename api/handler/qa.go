package handler

import (
	"context"
	"net/http"

	"github.com/fyerfyer/lgpd-explica/api/middleware"
	"github.com/fyerfyer/lgpd-explica/api/model"
	"github.com/fyerfyer/lgpd-explica/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Answerer 问答能力，由 services.QAService 实现
type Answerer interface {
	Answer(ctx context.Context, question string) (*services.Answer, error)
	Status() services.Status
}

// QAHandler 处理问答相关的API请求
type QAHandler struct {
	qaService Answerer       // 问答服务
	logger    *logrus.Logger // 日志记录器
}

// NewQAHandler 创建新的问答处理器
func NewQAHandler(qaService Answerer) *QAHandler {
	return &QAHandler{
		qaService: qaService,
		logger:    middleware.GetLogger(),
	}
}

// AnswerQuestion 处理问答请求
// POST /api/qa
func (h *QAHandler) AnswerQuestion(c *gin.Context) {
	var req model.QARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":    err.Error(),
			"trace_id": c.GetString(middleware.TraceIDKey),
		}).Warn("Invalid question request")

		middleware.HandleError(c, middleware.NewValidationError("Requisição inválida", err.Error()))
		return
	}

	answer, err := h.qaService.Answer(c.Request.Context(), req.Question)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.QAResponse{
		Question:     answer.Question,
		Answer:       answer.Text,
		Sources:      model.ConvertToSourceInfo(answer.Sources),
		Model:        answer.Model,
		PromptTokens: answer.PromptTokens,
		ElapsedMS:    answer.Elapsed.Milliseconds(),
	}))
}

// Health 返回初始化状态，不会触发构建
// GET /api/health
func (h *QAHandler) Health(c *gin.Context) {
	status := h.qaService.Status()

	resp := model.HealthResponse{
		Status:        "ok",
		Ready:         status.Ready(),
		KnowledgeBase: componentHealth(status.KnowledgeBase),
		Generator:     componentHealth(status.Generator),
	}

	code := http.StatusOK
	if !resp.Ready {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

func componentHealth(s services.ComponentStatus) model.ComponentHealth {
	h := model.ComponentHealth{State: s.State.String()}
	if s.Err != nil {
		h.Error = s.Err.Error()
	}
	return h
}
