package api

import (
	"github.com/fyerfyer/lgpd-explica/api/handler"
	"github.com/fyerfyer/lgpd-explica/api/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRouter 设置路由
// 页面和JSON接口共用同一个问答服务
func SetupRouter(qaHandler *handler.QAHandler, pageHandler *handler.PageHandler) *gin.Engine {
	router := gin.New()

	// 应用全局中间件
	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())

	// 在调试模式下记录请求体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
	}

	// 单页界面
	router.GET("/", pageHandler.Index)
	router.POST("/", pageHandler.Ask)

	api := router.Group("/api")
	{
		// 回答问题 - POST /api/qa
		api.POST("/qa", qaHandler.AnswerQuestion)

		// 健康检查 - GET /api/health
		api.GET("/health", qaHandler.Health)
	}

	return router
}
