//go:build faiss

package vectordb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFaissRepository 测试FAISS向量仓库
func TestFaissRepository(t *testing.T) {
	repo, err := NewRepository(Config{Type: "faiss", Dimension: 4, DistanceType: Cosine})
	if err != nil {
		t.Skip("FAISS may not be installed correctly, skipping test: " + err.Error())
	}
	defer repo.Close()

	testRepository(t, repo)
}

func TestFaissRepositoryEuclidean(t *testing.T) {
	repo, err := NewRepository(Config{Type: "faiss", Dimension: 4, DistanceType: Euclidean})
	require.NoError(t, err)
	defer repo.Close()

	require.NoError(t, repo.AddBatch(context.Background(), testDocs()))
	results, err := repo.Search(context.Background(), []float32{0.9, 0.12, 0, 0}, SearchFilter{MaxResults: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Document.Position)
	assert.InDelta(t, 0.02, results[0].Distance, 1e-4)
}
