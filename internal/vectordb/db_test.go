package vectordb

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestDoc 创建用于测试的文档
func createTestDoc(position int, vector []float32) Document {
	return Document{
		ID:       fmt.Sprintf("chunk-%05d", position),
		Position: position,
		Page:     1,
		Source:   "lgpd.pdf",
		Text:     fmt.Sprintf("Art. %d texto de teste", position),
		Vector:   vector,
	}
}

func testDocs() []Document {
	return []Document{
		createTestDoc(0, []float32{1, 0, 0, 0}),
		createTestDoc(1, []float32{0, 1, 0, 0}),
		createTestDoc(2, []float32{0.9, 0.1, 0, 0}),
		createTestDoc(3, []float32{0, 0, 1, 0}),
		// 与 0 号方向相同，余弦同分
		createTestDoc(4, []float32{2, 0, 0, 0}),
	}
}

// testRepository 各实现共用的行为测试
func testRepository(t *testing.T, repo Repository) {
	ctx := context.Background()

	assert.Equal(t, 4, repo.GetDimension())
	assert.Equal(t, 0, repo.Count())

	require.NoError(t, repo.AddBatch(ctx, testDocs()))
	assert.Equal(t, 5, repo.Count())

	results, err := repo.Search(ctx, []float32{1, 0, 0, 0}, SearchFilter{MaxResults: 3})
	require.NoError(t, err)
	require.Len(t, results, 3)

	// 同分时按原文位置排序
	assert.Equal(t, 0, results[0].Document.Position)
	assert.Equal(t, 4, results[1].Document.Position)
	assert.Equal(t, 2, results[2].Document.Position)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	assert.GreaterOrEqual(t, results[1].Score, results[2].Score)
	assert.Equal(t, "Art. 0 texto de teste", results[0].Document.Text)

	// 结果数不超过总数
	results, err = repo.Search(ctx, []float32{0, 0, 1, 0}, SearchFilter{MaxResults: 50})
	require.NoError(t, err)
	assert.Len(t, results, 5)
	assert.Equal(t, 3, results[0].Document.Position)

	// 最小分数过滤
	results, err = repo.Search(ctx, []float32{0, 1, 0, 0}, SearchFilter{MaxResults: 5, MinScore: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Document.Position)

	// 维度不匹配
	_, err = repo.Search(ctx, []float32{1, 0}, SearchFilter{MaxResults: 1})
	assert.ErrorIs(t, err, ErrInvalidDimension)

	err = repo.AddBatch(ctx, []Document{createTestDoc(9, []float32{1})})
	assert.ErrorIs(t, err, ErrInvalidDimension)
	assert.Equal(t, 5, repo.Count(), "failed batch must not be partially written")
}

// TestMemoryRepository 测试内存向量仓库
func TestMemoryRepository(t *testing.T) {
	repo, err := NewRepository(Config{Type: "memory", Dimension: 4, DistanceType: Cosine})
	require.NoError(t, err)
	defer repo.Close()

	testRepository(t, repo)
}

func TestMemoryRepositoryDistanceTypes(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		distType DistanceType
		query    []float32
		first    int
	}{
		// 点积偏向长向量
		{name: "dot", distType: DotProduct, query: []float32{1, 0, 0, 0}, first: 4},
		{name: "l2", distType: Euclidean, query: []float32{0.9, 0.12, 0, 0}, first: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, err := NewRepository(Config{Type: "memory", Dimension: 4, DistanceType: tt.distType})
			require.NoError(t, err)
			defer repo.Close()

			require.NoError(t, repo.AddBatch(ctx, testDocs()))
			results, err := repo.Search(ctx, tt.query, SearchFilter{MaxResults: 1})
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, tt.first, results[0].Document.Position)
		})
	}
}

func TestMemoryRepositoryCopiesVectors(t *testing.T) {
	ctx := context.Background()
	repo, err := NewMemoryRepository(Config{Dimension: 2, DistanceType: Cosine})
	require.NoError(t, err)

	vector := []float32{1, 0}
	require.NoError(t, repo.AddBatch(ctx, []Document{createTestDoc(0, vector)}))
	vector[0] = 0

	results, err := repo.Search(ctx, []float32{1, 0}, SearchFilter{MaxResults: 1})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, results[0].Document.Vector)
}

func TestMemoryRepositoryClosed(t *testing.T) {
	repo, err := NewMemoryRepository(Config{Dimension: 2, DistanceType: Cosine})
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	_, err = repo.Search(context.Background(), []float32{1, 0}, DefaultSearchFilter())
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, repo.Count())
}

func TestNewRepositoryValidation(t *testing.T) {
	_, err := NewRepository(Config{Type: "qdrant", Dimension: 4})
	assert.Error(t, err)

	_, err = NewRepository(Config{Type: "memory", Dimension: 0})
	assert.ErrorIs(t, err, ErrInvalidDimension)

	_, err = NewRepository(Config{Type: "memory", Dimension: 4, DistanceType: "hamming"})
	assert.Error(t, err)

	repo, err := NewRepository(Config{Dimension: 4})
	require.NoError(t, err)
	assert.IsType(t, &MemoryRepository{}, repo)
}

func TestComputeDistance(t *testing.T) {
	d, err := ComputeDistance([]float32{1, 0}, []float32{0, 1}, Cosine)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, d, 1e-6)

	d, err = ComputeDistance([]float32{3, 0}, []float32{0, 4}, Euclidean)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, d, 1e-6)

	d, err = ComputeDistance([]float32{1, 2}, []float32{3, 4}, DotProduct)
	require.NoError(t, err)
	assert.InDelta(t, 11.0, d, 1e-6)

	_, err = ComputeDistance([]float32{1}, []float32{1, 2}, Cosine)
	assert.ErrorIs(t, err, ErrInvalidDimension)

	// 零向量距离最大
	d, err = ComputeDistance([]float32{0, 0}, []float32{1, 0}, Cosine)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, d, 1e-6)
}

// TestPgVectorRepository 需要设置 LGPD_TEST_PG_DSN 指向带 pgvector 扩展的数据库
func TestPgVectorRepository(t *testing.T) {
	dsn := os.Getenv("LGPD_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("LGPD_TEST_PG_DSN not set, skipping pgvector test")
	}

	repo, err := NewRepository(Config{Type: "pgvector", DSN: dsn, Dimension: 4, DistanceType: Cosine})
	require.NoError(t, err)
	defer repo.Close()

	testRepository(t, repo)
}
