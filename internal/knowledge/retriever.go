package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fyerfyer/lgpd-explica/internal/cache"
	"github.com/fyerfyer/lgpd-explica/internal/document"
	"github.com/fyerfyer/lgpd-explica/internal/embedding"
	"github.com/fyerfyer/lgpd-explica/internal/vectordb"
	"github.com/sirupsen/logrus"
)

// ErrEmptyQuery 查询为空
var ErrEmptyQuery = errors.New("query is empty")

// ScoredChunk 带相似度得分的文本块
type ScoredChunk struct {
	document.Chunk
	Score float32
}

// Retriever 检索器，构建完成后只读
type Retriever struct {
	embedder embedding.Client
	index    vectordb.Repository
	vectors  *cache.VectorCache
	logger   *logrus.Logger
}

// Search 返回与查询最相关的至多 k 个文本块，按相关度降序
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]document.Chunk, error) {
	scored, err := r.SearchWithScores(ctx, query, k)
	if err != nil {
		return nil, err
	}
	chunks := make([]document.Chunk, len(scored))
	for i, s := range scored {
		chunks[i] = s.Chunk
	}
	return chunks, nil
}

// SearchWithScores 同 Search，同时返回得分
func (r *Retriever) SearchWithScores(ctx context.Context, query string, k int) ([]ScoredChunk, error) {
	if k <= 0 {
		return []ScoredChunk{}, nil
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	vector, err := r.embedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := r.index.Search(ctx, vector, vectordb.SearchFilter{MaxResults: k})
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	out := make([]ScoredChunk, 0, len(results))
	for _, res := range results {
		doc := res.Document
		out = append(out, ScoredChunk{
			Chunk: document.Chunk{
				ID:     doc.ID,
				Index:  doc.Position,
				Page:   doc.Page,
				Source: doc.Source,
				Text:   doc.Text,
			},
			Score: res.Score,
		})
	}
	return out, nil
}

// embedQuery 优先读取查询向量缓存，缓存故障不影响检索
func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if r.vectors != nil {
		vector, found, err := r.vectors.Get(ctx, query)
		if err != nil {
			r.logger.WithError(err).Warn("Query vector cache read failed")
		} else if found {
			return vector, nil
		}
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	if r.vectors != nil {
		if err := r.vectors.Set(ctx, query, vector); err != nil {
			r.logger.WithError(err).Warn("Query vector cache write failed")
		}
	}
	return vector, nil
}

// Size 返回索引中的文本块数量
func (r *Retriever) Size() int {
	return r.index.Count()
}

// Close 释放向量仓库
func (r *Retriever) Close() error {
	return r.index.Close()
}
