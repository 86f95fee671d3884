package services

import (
	"context"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode"

	"github.com/fyerfyer/lgpd-explica/internal/document"
	"github.com/fyerfyer/lgpd-explica/internal/knowledge"
	"github.com/fyerfyer/lgpd-explica/internal/lazy"
	"github.com/fyerfyer/lgpd-explica/internal/llm"
	"github.com/fyerfyer/lgpd-explica/internal/llm/mocks"
	"github.com/fyerfyer/lgpd-explica/pkg/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// stubSearcher 返回固定的检索结果
type stubSearcher struct {
	chunks []document.Chunk
	err    error
	calls  int
}

func (s *stubSearcher) Search(_ context.Context, _ string, k int) ([]document.Chunk, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.chunks) > k {
		return s.chunks[:k], nil
	}
	return s.chunks, nil
}

type stubKB struct {
	searcher Searcher
	err      error
	calls    int
}

func (s *stubKB) Retriever(context.Context) (Searcher, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.searcher, nil
}

type stubGen struct {
	client llm.Client
	err    error
	calls  int
}

func (s *stubGen) Generator(context.Context) (llm.Client, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.client, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

var lawChunks = []document.Chunk{
	{Index: 3, Page: 2, Text: "Art. 18. O titular dos dados pessoais tem direito a obter do controlador..."},
	{Index: 1, Page: 1, Text: "Art. 5º Para os fins desta Lei, considera-se dado pessoal..."},
	{Index: 7, Page: 4, Text: "Art. 46. Os agentes de tratamento devem adotar medidas de segurança..."},
}

func TestQAServiceAnswer(t *testing.T) {
	searcher := &stubSearcher{chunks: lawChunks}
	client := mocks.NewMockClient(t)

	var prompt string
	client.EXPECT().Generate(mock.Anything, mock.AnythingOfType("string")).
		Run(func(_ context.Context, p string) { prompt = p }).
		Return(&llm.Response{Text: "<|assistant|>\nResposta:\n O titular pode acessar seus dados. "}, nil).
		Once()
	client.EXPECT().Name().Return("tinyllama")

	var stages []Stage
	service := NewQAService(&stubKB{searcher: searcher}, &stubGen{client: client},
		WithLogger(quietLogger()),
		WithStageHook(func(s Stage) { stages = append(stages, s) }),
		WithTokenLimit(llm.NewTokenCounter(""), 4096),
	)

	answer, err := service.Answer(context.Background(), "Quais são os direitos do titular?")
	require.NoError(t, err)

	assert.Equal(t, "O titular pode acessar seus dados.", answer.Text)
	assert.Equal(t, "tinyllama", answer.Model)
	assert.Greater(t, answer.PromptTokens, 0)

	// 默认检索 2 个文本块，按检索顺序进入提示词
	require.Len(t, answer.Sources, DefaultRetrievalK)
	assert.Equal(t, lawChunks[:2], answer.Sources)
	assert.Less(t, strings.Index(prompt, lawChunks[0].Text), strings.Index(prompt, lawChunks[1].Text))
	assert.NotContains(t, prompt, lawChunks[2].Text)
	assert.Contains(t, prompt, "Pergunta: Quais são os direitos do titular?")

	assert.Equal(t, []Stage{StageRetrieving, StagePrompting, StageGenerating, StagePostProcessing, StageDone}, stages)
}

func TestQAServiceEmptyQuestion(t *testing.T) {
	kb := &stubKB{searcher: &stubSearcher{}}
	gen := &stubGen{client: mocks.NewMockClient(t)}
	service := NewQAService(kb, gen, WithLogger(quietLogger()))

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := service.Answer(context.Background(), q)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmptyQuestion)

		var pe *PipelineError
		require.True(t, errors.As(err, &pe))
		assert.True(t, pe.IsWarning())
		assert.Equal(t, MsgEmptyQuestion, pe.Message)
	}

	// 空问题不会触发检索和生成
	assert.Zero(t, kb.calls)
	assert.Zero(t, gen.calls)
}

func TestQAServiceNotInitialized(t *testing.T) {
	buildErr := errors.New("open data/lgpd.pdf: no such file")
	kb := &stubKB{err: buildErr}
	gen := &stubGen{client: mocks.NewMockClient(t)}

	var stages []Stage
	service := NewQAService(kb, gen,
		WithLogger(quietLogger()),
		WithStageHook(func(s Stage) { stages = append(stages, s) }))

	_, err := service.Answer(context.Background(), "O que é dado pessoal?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, err, buildErr)

	var pe *PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, StageRetrieving, pe.Stage)
	assert.Equal(t, MsgNotInitialized, pe.Message)
	assert.Equal(t, buildErr.Error(), pe.Detail)
	assert.Equal(t, []Stage{StageRetrieving, StageError}, stages)
	assert.Zero(t, gen.calls)
}

func TestQAServiceGenerationFailed(t *testing.T) {
	client := mocks.NewMockClient(t)
	backendErr := llm.NewLLMError(llm.ErrCodeTimeout, llm.ErrMsgTimeout)
	client.EXPECT().Generate(mock.Anything, mock.Anything).Return(nil, backendErr).Once()

	service := NewQAService(&stubKB{searcher: &stubSearcher{chunks: lawChunks}}, &stubGen{client: client},
		WithLogger(quietLogger()))

	_, err := service.Answer(context.Background(), "O que é dado pessoal?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationFailed)

	var pe *PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, StageGenerating, pe.Stage)
	assert.Equal(t, MsgGenerationFailed, pe.Message)

	var llmErr llm.LLMError
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, llm.ErrCodeTimeout, llmErr.Code)
}

func TestQAServiceRetrievalFailed(t *testing.T) {
	searchErr := errors.New("embed query: connection refused")
	service := NewQAService(&stubKB{searcher: &stubSearcher{err: searchErr}}, &stubGen{client: mocks.NewMockClient(t)},
		WithLogger(quietLogger()))

	_, err := service.Answer(context.Background(), "O que é dado pessoal?")
	assert.ErrorIs(t, err, ErrRetrievalFailed)
	assert.ErrorIs(t, err, searchErr)
}

func TestQAServiceGeneratorRetried(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.EXPECT().Generate(mock.Anything, mock.Anything).Return(&llm.Response{Text: "Resposta: ok"}, nil).Once()
	client.EXPECT().Name().Return("tinyllama")

	gen := &stubGen{err: llm.ErrModelLoad}
	service := NewQAService(&stubKB{searcher: &stubSearcher{chunks: lawChunks}}, gen, WithLogger(quietLogger()))

	_, err := service.Answer(context.Background(), "pergunta")
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, err, llm.ErrModelLoad)

	// 生成模型恢复后流水线继续可用
	gen.err = nil
	gen.client = client
	answer, err := service.Answer(context.Background(), "pergunta")
	require.NoError(t, err)
	assert.Equal(t, "ok", answer.Text)
	assert.Equal(t, 2, gen.calls)
}

func TestQAServiceNoSources(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.EXPECT().Generate(mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "Contexto: \nPergunta: pergunta")
	})).Return(&llm.Response{Text: "sem contexto"}, nil).Once()
	client.EXPECT().Name().Return("tinyllama")

	service := NewQAService(&stubKB{searcher: &stubSearcher{}}, &stubGen{client: client},
		WithLogger(quietLogger()),
		WithPostProcessor(llm.TrimPostProcessor{}))

	answer, err := service.Answer(context.Background(), "pergunta")
	require.NoError(t, err)
	assert.Empty(t, answer.Sources)
	assert.Equal(t, "sem contexto", answer.Text)
}

func TestInitialize(t *testing.T) {
	kbErr := errors.New("load failed")
	res := Initialize(context.Background(), &stubKB{err: kbErr}, &stubGen{client: mocks.NewMockClient(t)})
	assert.False(t, res.Ready())
	assert.ErrorIs(t, res.Err(), kbErr)
	assert.NoError(t, res.GeneratorErr)

	res = Initialize(context.Background(), &stubKB{searcher: &stubSearcher{}}, &stubGen{client: mocks.NewMockClient(t)})
	assert.True(t, res.Ready())
	assert.NoError(t, res.Err())
}

func TestTraceID(t *testing.T) {
	ctx := WithTraceID(context.Background(), "abc")
	assert.Equal(t, "abc", TraceID(ctx))
	assert.Empty(t, TraceID(context.Background()))
}

// wordEmbedder 按单词哈希的确定性嵌入，忽略标点
type wordEmbedder struct{}

func (wordEmbedder) vector(text string) []float32 {
	v := make([]float32, 256)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%256]++
	}
	v[0] += 0.01
	return v
}

func (e wordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func (e wordEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (wordEmbedder) Name() string { return "words" }

func newKnowledgeBase(t *testing.T, path string) *knowledge.Base {
	t.Helper()
	splitter, err := document.NewRecursiveSplitter(document.SplitterConfig{ChunkSize: 50, ChunkOverlap: 10})
	require.NoError(t, err)
	builder, err := knowledge.NewBuilder(wordEmbedder{}, splitter, knowledge.WithLogger(quietLogger()))
	require.NoError(t, err)
	return knowledge.NewBase(builder, path)
}

func TestEndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "law.txt")
	require.NoError(t, os.WriteFile(path,
		[]byte("Art. 1. This law protects personal data. Art. 2. It applies to all processing."), 0o644))

	base := newKnowledgeBase(t, path)
	defer base.Close()

	client := mocks.NewMockClient(t)
	var prompt string
	client.EXPECT().Generate(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, p string) (*llm.Response, error) {
			prompt = p
			// 模拟回显提示词的后端
			return &llm.Response{Text: p + " X"}, nil
		}).Once()
	client.EXPECT().Name().Return("stub")

	kb := NewKnowledgeSource(base)
	service := NewQAService(kb, &stubGen{client: client}, WithLogger(quietLogger()))

	res := Initialize(context.Background(), kb, &stubGen{client: client})
	require.True(t, res.Ready())

	retriever, err := base.Retriever(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retriever.Size(), 2)

	answer, err := service.Answer(context.Background(), "What does Art. 1 say?")
	require.NoError(t, err)

	assert.Equal(t, "X", answer.Text)
	require.NotEmpty(t, answer.Sources)
	assert.Contains(t, answer.Sources[0].Text, "Art. 1")
	for _, src := range answer.Sources {
		assert.Contains(t, prompt, src.Text)
	}

	status := service.Status()
	assert.Equal(t, lazy.StateReady, status.KnowledgeBase.State)
}

func TestEndToEndMissingDocument(t *testing.T) {
	base := newKnowledgeBase(t, filepath.Join(t.TempDir(), "missing.pdf"))
	kb := NewKnowledgeSource(base)
	gen := &stubGen{client: mocks.NewMockClient(t)}
	service := NewQAService(kb, gen, WithLogger(quietLogger()))

	res := Initialize(context.Background(), kb, gen)
	require.Error(t, res.KnowledgeBaseErr)

	// 之后每次提问都报告相同的初始化错误
	var details []string
	for i := 0; i < 3; i++ {
		_, err := service.Answer(context.Background(), "O que é dado pessoal?")
		require.ErrorIs(t, err, ErrNotInitialized)
		assert.ErrorIs(t, err, knowledge.ErrLoad)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		var pe *PipelineError
		require.True(t, errors.As(err, &pe))
		details = append(details, pe.Detail)
	}
	assert.Equal(t, details[0], details[1])
	assert.Equal(t, details[0], details[2])

	status := service.Status()
	assert.Equal(t, lazy.StateFailed, status.KnowledgeBase.State)
	assert.Error(t, status.KnowledgeBase.Err)
	assert.False(t, status.Ready())
	assert.Equal(t, 1, gen.calls, "generator only touched by Initialize")
}
