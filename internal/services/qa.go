package services

import (
	"context"
	"strings"
	"time"

	"github.com/fyerfyer/lgpd-explica/internal/document"
	"github.com/fyerfyer/lgpd-explica/internal/llm"
	"github.com/sirupsen/logrus"
)

// DefaultRetrievalK 默认检索的文本块数量
const DefaultRetrievalK = 2

// Answer 问答结果
type Answer struct {
	Question     string           // 用户问题
	Text         string           // 后处理后的回答
	Raw          string           // 模型原始输出
	Sources      []document.Chunk // 检索到的文本块，与提示词中的顺序一致
	Model        string           // 生成模型名称
	PromptTokens int              // 提示词token数
	Elapsed      time.Duration    // 总耗时
}

// QAService 问答服务
// 负责串联检索、提示词填充、生成和后处理
type QAService struct {
	kb              RetrieverSource    // 知识库
	gen             GeneratorSource    // 生成模型
	k               int                // 检索数量
	template        llm.PromptTemplate // 提示词模板
	postProcessor   llm.PostProcessor  // 后处理策略
	tokens          *llm.TokenCounter  // token计数
	maxPromptTokens int                // 提示词token上限，0 表示不检查
	onStage         func(Stage)        // 阶段回调
	logger          *logrus.Logger     // 日志记录器
}

// QAOption 问答服务配置选项
type QAOption func(*QAService)

// NewQAService 创建问答服务实例
func NewQAService(kb RetrieverSource, gen GeneratorSource, opts ...QAOption) *QAService {
	service := &QAService{
		kb:            kb,
		gen:           gen,
		k:             DefaultRetrievalK,
		template:      llm.NewPromptTemplate(""),
		postProcessor: llm.NewMarkerPostProcessor(llm.CueMarker),
		logger:        logrus.New(),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// WithRetrievalK 设置检索数量
func WithRetrievalK(k int) QAOption {
	return func(s *QAService) {
		if k > 0 {
			s.k = k
		}
	}
}

// WithPromptTemplate 设置提示词模板
func WithPromptTemplate(t llm.PromptTemplate) QAOption {
	return func(s *QAService) {
		s.template = t
	}
}

// WithPostProcessor 设置后处理策略
func WithPostProcessor(p llm.PostProcessor) QAOption {
	return func(s *QAService) {
		if p != nil {
			s.postProcessor = p
		}
	}
}

// WithTokenLimit 统计提示词token数，超过 max 时记录警告
func WithTokenLimit(counter *llm.TokenCounter, max int) QAOption {
	return func(s *QAService) {
		s.tokens = counter
		s.maxPromptTokens = max
	}
}

// WithStageHook 每次进入新阶段时回调
func WithStageHook(fn func(Stage)) QAOption {
	return func(s *QAService) {
		s.onStage = fn
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) QAOption {
	return func(s *QAService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Answer 回答问题
// 返回的错误都是 *PipelineError
func (s *QAService) Answer(ctx context.Context, question string) (*Answer, error) {
	start := time.Now()
	log := s.logger.WithFields(logrus.Fields{
		"trace_id":     TraceID(ctx),
		"question_len": len([]rune(question)),
	})

	// 空问题不进入流水线
	if strings.TrimSpace(question) == "" {
		return nil, newPipelineError(ErrEmptyQuestion, StageIdle, MsgEmptyQuestion, nil)
	}

	// 1. 检索
	s.enter(log, StageRetrieving)
	retriever, err := s.kb.Retriever(ctx)
	if err != nil {
		return nil, s.fail(log, newPipelineError(ErrNotInitialized, StageRetrieving, MsgNotInitialized, err))
	}
	chunks, err := retriever.Search(ctx, question, s.k)
	if err != nil {
		return nil, s.fail(log, newPipelineError(ErrRetrievalFailed, StageRetrieving, MsgRetrievalFailed, err))
	}
	log = log.WithField("sources", len(chunks))

	// 2. 填充提示词，没有检索结果时上下文为空
	s.enter(log, StagePrompting)
	prompt := s.template.Fill(question, chunks)
	promptTokens := s.countTokens(log, prompt)

	// 3. 生成
	s.enter(log, StageGenerating)
	generator, err := s.gen.Generator(ctx)
	if err != nil {
		return nil, s.fail(log, newPipelineError(ErrNotInitialized, StageGenerating, MsgNotInitialized, err))
	}
	resp, err := generator.Generate(ctx, prompt)
	if err != nil {
		return nil, s.fail(log, newPipelineError(ErrGenerationFailed, StageGenerating, MsgGenerationFailed, err))
	}

	// 4. 后处理
	s.enter(log, StagePostProcessing)
	text := s.postProcessor.Process(resp.Text)

	answer := &Answer{
		Question:     question,
		Text:         text,
		Raw:          resp.Text,
		Sources:      chunks,
		Model:        generator.Name(),
		PromptTokens: promptTokens,
		Elapsed:      time.Since(start),
	}

	s.enter(log, StageDone)
	log.WithFields(logrus.Fields{
		"model":   answer.Model,
		"elapsed": answer.Elapsed.String(),
	}).Info("Question answered")

	return answer, nil
}

// Status 返回知识库和生成模型的当前状态，不触发初始化
func (s *QAService) Status() Status {
	return Status{
		KnowledgeBase: componentStatus(s.kb),
		Generator:     componentStatus(s.gen),
	}
}

// countTokens 未配置计数器时返回 0
func (s *QAService) countTokens(log *logrus.Entry, prompt string) int {
	if s.tokens == nil {
		return 0
	}
	n, exact := s.tokens.Count(prompt)
	log = log.WithFields(logrus.Fields{
		"prompt_tokens": n,
		"exact":         exact,
	})
	if s.maxPromptTokens > 0 && n > s.maxPromptTokens {
		log.WithField("max_prompt_tokens", s.maxPromptTokens).Warn("Prompt exceeds token limit, the model may truncate context")
	} else {
		log.Debug("Prompt built")
	}
	return n
}

func (s *QAService) enter(log *logrus.Entry, stage Stage) {
	log.WithField("stage", stage).Debug("Pipeline stage")
	if s.onStage != nil {
		s.onStage(stage)
	}
}

func (s *QAService) fail(log *logrus.Entry, err *PipelineError) error {
	log.WithFields(logrus.Fields{
		"stage": err.Stage,
		"error": err.Detail,
	}).Error(err.Message)
	if s.onStage != nil {
		s.onStage(StageError)
	}
	return err
}

type traceIDKey struct{}

// WithTraceID 在上下文中记录追踪ID
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceID 返回上下文中的追踪ID
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}
