package services

import (
	"context"
	"sync"

	"github.com/fyerfyer/lgpd-explica/internal/document"
	"github.com/fyerfyer/lgpd-explica/internal/knowledge"
	"github.com/fyerfyer/lgpd-explica/internal/lazy"
	"github.com/fyerfyer/lgpd-explica/internal/llm"
)

// Searcher 检索接口
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]document.Chunk, error)
}

// RetrieverSource 提供检索器，首次调用时可能触发知识库构建
type RetrieverSource interface {
	Retriever(ctx context.Context) (Searcher, error)
}

// GeneratorSource 提供生成客户端，首次调用时可能触发模型加载
type GeneratorSource interface {
	Generator(ctx context.Context) (llm.Client, error)
}

// StateReporter 在不触发初始化的情况下报告状态
type StateReporter interface {
	State() (lazy.State, error)
}

// KnowledgeSource 把 knowledge.Base 适配为 RetrieverSource
type KnowledgeSource struct {
	base *knowledge.Base
}

// NewKnowledgeSource 创建知识库来源
func NewKnowledgeSource(base *knowledge.Base) *KnowledgeSource {
	return &KnowledgeSource{base: base}
}

// Retriever 实现 RetrieverSource
func (s *KnowledgeSource) Retriever(ctx context.Context) (Searcher, error) {
	r, err := s.base.Retriever(ctx)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// State 返回知识库构建状态
func (s *KnowledgeSource) State() (lazy.State, error) {
	return s.base.State()
}

// LoaderSource 把 llm.Loader 适配为 GeneratorSource
// 加载失败不缓存，这里只记录最近一次错误用于状态展示
type LoaderSource struct {
	loader *llm.Loader

	mu      sync.Mutex
	lastErr error
}

// NewLoaderSource 创建生成模型来源
func NewLoaderSource(loader *llm.Loader) *LoaderSource {
	return &LoaderSource{loader: loader}
}

// Generator 实现 GeneratorSource
func (s *LoaderSource) Generator(ctx context.Context) (llm.Client, error) {
	client, err := s.loader.Generator(ctx)

	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()

	return client, err
}

// State 未加载时返回最近一次的加载错误
func (s *LoaderSource) State() (lazy.State, error) {
	state := s.loader.State()
	if state == lazy.StateReady {
		return state, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return state, s.lastErr
}
