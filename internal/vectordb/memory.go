package vectordb

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRepository 内存向量仓库实现
// 暴力搜索，适合单份文档规模的语料
type MemoryRepository struct {
	mu        sync.RWMutex
	dimension int
	distType  DistanceType
	documents []Document // 按插入顺序保存
	closed    bool
}

// NewMemoryRepository 创建内存向量仓库
func NewMemoryRepository(config Config) (Repository, error) {
	switch config.DistanceType {
	case Cosine, DotProduct, Euclidean:
	default:
		return nil, fmt.Errorf("unsupported distance type: %s", config.DistanceType)
	}
	return &MemoryRepository{
		dimension: config.Dimension,
		distType:  config.DistanceType,
	}, nil
}

// AddBatch 批量添加文档，任一向量非法则整批不写入
func (r *MemoryRepository) AddBatch(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	for i := range docs {
		if err := ValidateVector(docs[i].Vector, r.dimension); err != nil {
			return fmt.Errorf("invalid vector for document %s: %w", docs[i].ID, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	for _, doc := range docs {
		vector := make([]float32, len(doc.Vector))
		copy(vector, doc.Vector)
		doc.Vector = vector
		r.documents = append(r.documents, doc)
	}
	return nil
}

// Search 计算查询向量与所有文档的相似度
func (r *MemoryRepository) Search(ctx context.Context, vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}

	results := make([]SearchResult, 0, len(r.documents))
	for i, doc := range r.documents {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		dist, err := ComputeDistance(vector, doc.Vector, r.distType)
		if err != nil {
			return nil, err
		}
		results = append(results, SearchResult{
			Document: doc,
			Score:    DistanceToScore(dist, r.distType),
			Distance: dist,
		})
	}

	SortSearchResults(results)
	return filterAndTruncate(results, filter), nil
}

// Count 获取文档总数
func (r *MemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.documents)
}

// GetDimension 返回向量维数
func (r *MemoryRepository) GetDimension() int {
	return r.dimension
}

// Close 释放内存
func (r *MemoryRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents = nil
	r.closed = true
	return nil
}

func init() {
	RegisterRepository("memory", NewMemoryRepository)
}
