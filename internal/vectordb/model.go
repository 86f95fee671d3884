package vectordb

import (
	"context"
	"errors"
	"fmt"
)

// 常用错误定义
var (
	ErrEmptyVector      = errors.New("empty vector")
	ErrInvalidDimension = errors.New("vector dimension mismatch")
	ErrClosed           = errors.New("repository closed")
)

// Document 已嵌入的文本块
// Position 为文本块在原文中的序号，用于同分排序
type Document struct {
	ID       string    // 唯一标识符
	Position int       // 在原文档中的段落位置
	Page     int       // 所在页码
	Source   string    // 来源文件
	Text     string    // 原始文本内容
	Vector   []float32 // 向量表示
}

// DistanceType 向量距离计算方法
type DistanceType string

const (
	// Cosine 余弦相似度
	Cosine DistanceType = "cosine"
	// DotProduct 点积
	DotProduct DistanceType = "dot"
	// Euclidean 欧几里得距离
	Euclidean DistanceType = "l2"
)

// SearchResult 搜索结果
type SearchResult struct {
	Document Document // 文档对象
	Score    float32  // 相似度得分，越大越相似
	Distance float32  // 计算的距离
}

// SearchFilter 搜索过滤条件
type SearchFilter struct {
	MinScore   float32 // 最小相似度分数，0 表示不过滤
	MaxResults int     // 最大返回结果数
}

// DefaultSearchFilter 返回默认的搜索过滤器
func DefaultSearchFilter() SearchFilter {
	return SearchFilter{
		MinScore:   0.0,
		MaxResults: 5,
	}
}

// Repository 向量仓库接口
// Search 的结果按得分降序排列，同分时按 Position 升序
type Repository interface {
	// AddBatch 批量添加文档
	AddBatch(ctx context.Context, docs []Document) error

	// Search 相似度搜索
	Search(ctx context.Context, vector []float32, filter SearchFilter) ([]SearchResult, error)

	// Count 获取文档总数
	Count() int

	// GetDimension 返回向量维数
	GetDimension() int

	// Close 释放资源
	Close() error
}

// Config 向量仓库配置
type Config struct {
	Type         string       // 仓库类型："memory", "faiss", "pgvector"
	DSN          string       // pgvector 连接串
	Dimension    int          // 向量维度
	DistanceType DistanceType // 距离计算类型
}

// Factory 向量仓库工厂函数类型
type Factory func(config Config) (Repository, error)

// RepositoryRegistry 注册可用的向量仓库实现
var RepositoryRegistry = map[string]Factory{}

// RegisterRepository 注册向量仓库工厂函数
func RegisterRepository(name string, factory Factory) {
	RepositoryRegistry[name] = factory
}

// NewRepository 根据配置创建向量仓库实例
func NewRepository(config Config) (Repository, error) {
	if config.Type == "" {
		config.Type = "memory"
	}
	factory, ok := RepositoryRegistry[config.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported vector store type: %s", config.Type)
	}
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidDimension, config.Dimension)
	}
	if config.DistanceType == "" {
		config.DistanceType = Cosine
	}
	return factory(config)
}
