package knowledge

import (
	"context"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fyerfyer/lgpd-explica/internal/cache"
	"github.com/fyerfyer/lgpd-explica/internal/document"
	"github.com/fyerfyer/lgpd-explica/internal/embedding"
	"github.com/fyerfyer/lgpd-explica/internal/embedding/mocks"
	"github.com/fyerfyer/lgpd-explica/internal/lazy"
	"github.com/fyerfyer/lgpd-explica/internal/vectordb"
	"github.com/fyerfyer/lgpd-explica/pkg/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const lawText = `Art. 1º Esta Lei dispõe sobre o tratamento de dados pessoais, inclusive nos meios digitais.

Art. 5º Para os fins desta Lei, considera-se dado pessoal a informação relacionada a pessoa natural identificada ou identificável.

Art. 7º O tratamento de dados pessoais somente poderá ser realizado mediante o fornecimento de consentimento pelo titular.

Art. 18. O titular dos dados pessoais tem direito a obter do controlador a confirmação da existência de tratamento.`

// bagOfWords 确定性的词袋嵌入，相同文本得到相同向量
type bagOfWords struct {
	calls atomic.Int32
}

func (b *bagOfWords) vector(text string) []float32 {
	v := make([]float32, 64)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%64]++
	}
	// 避免全零向量
	v[0] += 0.01
	return v
}

func (b *bagOfWords) Embed(_ context.Context, text string) ([]float32, error) {
	b.calls.Add(1)
	return b.vector(text), nil
}

func (b *bagOfWords) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = b.vector(t)
	}
	return out, nil
}

func (b *bagOfWords) Name() string { return "bag-of-words" }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func writeLaw(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lgpd.txt")
	require.NoError(t, os.WriteFile(path, []byte(lawText), 0o644))
	return path
}

func newTestBuilder(t *testing.T, embedder embedding.Client, size, overlap int, opts ...Option) *Builder {
	t.Helper()
	splitter, err := document.NewRecursiveSplitter(document.SplitterConfig{ChunkSize: size, ChunkOverlap: overlap})
	require.NoError(t, err)

	builder, err := NewBuilder(embedder, splitter, append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	return builder
}

func TestBuildAndSearch(t *testing.T) {
	ctx := context.Background()
	path := writeLaw(t)
	embedder := &bagOfWords{}

	builder := newTestBuilder(t, embedder, 50, 10, WithBatching(4, 2))
	retriever, err := builder.Build(ctx, path)
	require.NoError(t, err)
	defer retriever.Close()

	assert.Greater(t, retriever.Size(), 4)

	// 每个块都可以作为查询命中自己
	all, err := retriever.SearchWithScores(ctx, "dado pessoal", retriever.Size())
	require.NoError(t, err)
	require.Len(t, all, retriever.Size())
	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, all[i-1].Score, all[i].Score, "results must be best-first")
	}
	for _, c := range all {
		assert.LessOrEqual(t, len([]rune(c.Text)), 50)
		assert.Equal(t, "lgpd.txt", c.Source)
	}

	target := all[len(all)-1].Chunk
	results, err := retriever.Search(ctx, target.Text, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, target.Text, results[0].Text)

	results, err = retriever.Search(ctx, "consentimento pelo titular", 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = retriever.Search(ctx, "   ", 2)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestBuildMissingDocument(t *testing.T) {
	builder := newTestBuilder(t, &bagOfWords{}, 50, 10)

	_, err := builder.Build(context.Background(), filepath.Join(t.TempDir(), "nao-existe.pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoad)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	var buildErr *BuildError
	require.True(t, errors.As(err, &buildErr))
	assert.Contains(t, buildErr.Path, "nao-existe.pdf")
}

func TestBuildEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vazio.txt")
	require.NoError(t, os.WriteFile(path, []byte("  \n\t "), 0o644))

	builder := newTestBuilder(t, &bagOfWords{}, 50, 10)
	_, err := builder.Build(context.Background(), path)
	assert.ErrorIs(t, err, ErrLoad)
	assert.ErrorIs(t, err, document.ErrNoText)
}

func TestBuildEmbeddingFailure(t *testing.T) {
	embedder := mocks.NewMockClient(t)
	embedder.On("EmbedBatch", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	var factoryCalls atomic.Int32
	builder := newTestBuilder(t, embedder, 50, 10, WithIndexFactory(func(dim int) (vectordb.Repository, error) {
		factoryCalls.Add(1)
		return vectordb.NewMemoryRepository(vectordb.Config{Dimension: dim, DistanceType: vectordb.Cosine})
	}))

	_, err := builder.Build(context.Background(), writeLaw(t))
	assert.ErrorIs(t, err, ErrEmbedding)
	assert.NotErrorIs(t, err, ErrLoad)
	assert.EqualValues(t, 0, factoryCalls.Load(), "no index is created when embedding fails")
}

func TestBuildIndexFailure(t *testing.T) {
	builder := newTestBuilder(t, &bagOfWords{}, 50, 10, WithIndexFactory(func(int) (vectordb.Repository, error) {
		return nil, errors.New("pgvector unavailable")
	}))

	_, err := builder.Build(context.Background(), writeLaw(t))
	assert.ErrorIs(t, err, ErrIndex)
}

func TestBuildWithVectorStoreConfig(t *testing.T) {
	builder := newTestBuilder(t, &bagOfWords{}, 80, 20,
		WithVectorStore(vectordb.Config{Type: "memory", DistanceType: vectordb.Euclidean}))

	retriever, err := builder.Build(context.Background(), writeLaw(t))
	require.NoError(t, err)
	defer retriever.Close()

	results, err := retriever.Search(context.Background(), "consentimento", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestRetrieverQueryCache(t *testing.T) {
	ctx := context.Background()
	backend, err := cache.NewMemoryCache(cache.DefaultConfig())
	require.NoError(t, err)

	embedder := &bagOfWords{}
	builder := newTestBuilder(t, embedder, 50, 10,
		WithQueryCache(cache.NewVectorCache(backend, embedder.Name(), time.Minute)))
	retriever, err := builder.Build(ctx, writeLaw(t))
	require.NoError(t, err)

	first, err := retriever.Search(ctx, "O que é dado pessoal?", 2)
	require.NoError(t, err)
	second, err := retriever.Search(ctx, "O que é dado pessoal?", 2)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, embedder.calls.Load(), "second query should hit the vector cache")
}

func TestBaseCachesFailure(t *testing.T) {
	embedder := mocks.NewMockClient(t)
	builder := newTestBuilder(t, embedder, 50, 10)
	base := NewBase(builder, filepath.Join(t.TempDir(), "lgpd.pdf"))

	state, _ := base.State()
	assert.Equal(t, lazy.StateIdle, state)

	_, err1 := base.Retriever(context.Background())
	_, err2 := base.Retriever(context.Background())
	require.Error(t, err1)
	assert.Same(t, err1, err2, "the same failure is reported on every call")

	state, err := base.State()
	assert.Equal(t, lazy.StateFailed, state)
	assert.ErrorIs(t, err, ErrLoad)
	assert.NoError(t, base.Close())

	// 模拟客户端没有被调用
	embedder.AssertNotCalled(t, "EmbedBatch", mock.Anything, mock.Anything)
}

func TestBaseBuildsOnce(t *testing.T) {
	base := NewBase(newTestBuilder(t, &bagOfWords{}, 50, 10), writeLaw(t))

	r1, err := base.Retriever(context.Background())
	require.NoError(t, err)
	r2, err := base.Retriever(context.Background())
	require.NoError(t, err)
	assert.Same(t, r1, r2)

	state, _ := base.State()
	assert.Equal(t, lazy.StateReady, state)
	assert.NoError(t, base.Close())
}
