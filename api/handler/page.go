package handler

import (
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/fyerfyer/lgpd-explica/api/middleware"
	"github.com/fyerfyer/lgpd-explica/api/model"
	"github.com/fyerfyer/lgpd-explica/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/sirupsen/logrus"
)

//go:embed templates/index.html
var templateFS embed.FS

// 页面文案
const (
	PageTitle       = "LGPD-Explica"
	PageHeading     = "⚖️ LGPD-Explica: Seu Assistente Inteligente para a LGPD"
	PageIntro       = "Bem-vindo! Este chatbot usa um modelo de linguagem rodando localmente para responder suas perguntas sobre a Lei Geral de Proteção de Dados, com base no texto oficial."
	PagePlaceholder = "Ex: Quais são os direitos do titular dos dados?"
)

// sourceView 页面中的一条来源
type sourceView struct {
	Number int
	Page   int
	Text   string
}

// pageView 页面模板数据
type pageView struct {
	Title       string
	Heading     string
	Intro       string
	Placeholder string
	Question    string
	Answer      template.HTML
	Sources     []sourceView
	Warning     string
	Error       string
	Detail      string
	ElapsedMS   int64
}

// PageHandler 单页问答界面
type PageHandler struct {
	qaService Answerer
	tmpl      *template.Template
	logger    *logrus.Logger
}

// NewPageHandler 创建页面处理器
func NewPageHandler(qaService Answerer) (*PageHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, err
	}
	return &PageHandler{
		qaService: qaService,
		tmpl:      tmpl,
		logger:    middleware.GetLogger(),
	}, nil
}

// Index 显示空白页面
// GET /
func (h *PageHandler) Index(c *gin.Context) {
	h.render(c, http.StatusOK, h.newView())
}

// Ask 处理表单提交
// POST /
func (h *PageHandler) Ask(c *gin.Context) {
	view := h.newView()

	var req model.QARequest
	if err := c.ShouldBind(&req); err != nil {
		appErr := middleware.NewValidationError("Requisição inválida", err.Error())
		view.Error = appErr.Message
		view.Detail = appErr.Details
		h.render(c, appErr.Code, view)
		return
	}
	view.Question = req.Question

	answer, err := h.qaService.Answer(c.Request.Context(), req.Question)
	if err != nil {
		appErr := middleware.FromPipelineError(err)

		var pe *services.PipelineError
		if errors.As(err, &pe) && pe.IsWarning() {
			view.Warning = pe.Message
		} else {
			view.Error = appErr.Message
			view.Detail = appErr.Details
			h.logger.WithFields(logrus.Fields{
				middleware.FieldTraceID: c.GetString(middleware.TraceIDKey),
				middleware.FieldError:   appErr.Details,
			}).Error("Failed to answer question from page")
		}
		h.render(c, appErr.Code, view)
		return
	}

	view.Answer = RenderMarkdown(answer.Text)
	view.ElapsedMS = answer.Elapsed.Milliseconds()
	for i, src := range answer.Sources {
		view.Sources = append(view.Sources, sourceView{
			Number: i + 1,
			Page:   src.Page,
			Text:   src.Text,
		})
	}
	h.render(c, http.StatusOK, view)
}

func (h *PageHandler) newView() pageView {
	return pageView{
		Title:       PageTitle,
		Heading:     PageHeading,
		Intro:       PageIntro,
		Placeholder: PagePlaceholder,
	}
}

func (h *PageHandler) render(c *gin.Context, status int, view pageView) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.Execute(c.Writer, view); err != nil {
		h.logger.WithError(err).Error("Failed to render page")
	}
}

// RenderMarkdown 把回答渲染为HTML
// 模型输出中的原始HTML会被丢弃
func RenderMarkdown(text string) template.HTML {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.SkipHTML,
	})
	return template.HTML(markdown.ToHTML([]byte(text), p, renderer))
}
