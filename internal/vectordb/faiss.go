//go:build faiss

package vectordb

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/DataIntelligenceCrew/go-faiss"
)

// FaissRepository 基于 Faiss IndexFlat 的向量仓库
// 索引中的标签即文档插入序号
type FaissRepository struct {
	mu        sync.RWMutex
	index     faiss.Index
	documents []Document
	dimension int
	distType  DistanceType
}

// NewFaissRepository 创建新的Faiss向量仓库
func NewFaissRepository(config Config) (Repository, error) {
	index, err := createFaissIndex(config.Dimension, config.DistanceType)
	if err != nil {
		return nil, fmt.Errorf("failed to create Faiss index: %w", err)
	}

	return &FaissRepository{
		index:     index,
		dimension: config.Dimension,
		distType:  config.DistanceType,
	}, nil
}

// createFaissIndex 创建Faiss索引
// 余弦相似度通过归一化向量上的内积实现
func createFaissIndex(dimension int, distType DistanceType) (faiss.Index, error) {
	var metric int
	switch distType {
	case Cosine, DotProduct:
		metric = faiss.MetricInnerProduct
	case Euclidean:
		metric = faiss.MetricL2
	default:
		return nil, fmt.Errorf("unsupported distance type: %s", distType)
	}
	return faiss.NewIndexFlat(dimension, metric)
}

// AddBatch 批量添加文档到仓库
func (r *FaissRepository) AddBatch(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	flat := make([]float32, 0, len(docs)*r.dimension)
	stored := make([]Document, len(docs))
	for i, doc := range docs {
		if err := ValidateVector(doc.Vector, r.dimension); err != nil {
			return fmt.Errorf("invalid vector for document %s: %w", doc.ID, err)
		}
		vector := doc.Vector
		if r.distType == Cosine {
			vector = normalizeVector(vector)
		}
		flat = append(flat, vector...)
		doc.Vector = append([]float32(nil), doc.Vector...)
		stored[i] = doc
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index == nil {
		return ErrClosed
	}

	if err := r.index.Add(flat); err != nil {
		return fmt.Errorf("failed to add vectors to index: %w", err)
	}
	r.documents = append(r.documents, stored...)
	return nil
}

// Search 相似度搜索
func (r *FaissRepository) Search(ctx context.Context, vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}
	if r.distType == Cosine {
		vector = normalizeVector(vector)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.index == nil {
		return nil, ErrClosed
	}

	total := len(r.documents)
	if total == 0 {
		return []SearchResult{}, nil
	}

	// 多取一些候选，同分时再按 Position 重排
	limit := total
	if filter.MaxResults > 0 {
		limit = min(total, filter.MaxResults*2+8)
	}

	distances, labels, err := r.index.Search(vector, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(labels))
	for i, label := range labels {
		if label < 0 || int(label) >= total {
			continue
		}
		raw := distances[i]
		var dist float32
		switch r.distType {
		case Cosine:
			dist = 1 - raw
		case Euclidean:
			// IndexFlatL2 返回平方距离
			dist = float32(math.Sqrt(float64(raw)))
		default:
			dist = raw
		}
		results = append(results, SearchResult{
			Document: r.documents[label],
			Score:    DistanceToScore(dist, r.distType),
			Distance: dist,
		})
	}

	SortSearchResults(results)
	return filterAndTruncate(results, filter), nil
}

// Count 获取文档总数
func (r *FaissRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.documents)
}

// GetDimension 返回向量维数
func (r *FaissRepository) GetDimension() int {
	return r.dimension
}

// Close 释放 C 侧索引内存
func (r *FaissRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index != nil {
		r.index.Delete()
		r.index = nil
	}
	r.documents = nil
	return nil
}

func init() {
	RegisterRepository("faiss", NewFaissRepository)
}
