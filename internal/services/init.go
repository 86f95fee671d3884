package services

import (
	"context"
	"errors"
	"time"

	"github.com/fyerfyer/lgpd-explica/internal/lazy"
	"golang.org/x/sync/errgroup"
)

// InitResult 启动时初始化的结果
// 表现层据此决定显示正常页面还是降级提示
type InitResult struct {
	KnowledgeBaseErr error
	GeneratorErr     error
	Elapsed          time.Duration
}

// Ready 两个组件都可用
func (r InitResult) Ready() bool {
	return r.KnowledgeBaseErr == nil && r.GeneratorErr == nil
}

// Err 合并两个组件的错误
func (r InitResult) Err() error {
	return errors.Join(r.KnowledgeBaseErr, r.GeneratorErr)
}

// Initialize 同时构建知识库并加载生成模型
// 知识库失败会被缓存，生成模型失败会在下次提问时重试
func Initialize(ctx context.Context, kb RetrieverSource, gen GeneratorSource) InitResult {
	start := time.Now()
	var res InitResult

	// 两个错误都要保留，goroutine 始终返回 nil
	var g errgroup.Group
	g.Go(func() error {
		_, res.KnowledgeBaseErr = kb.Retriever(ctx)
		return nil
	})
	g.Go(func() error {
		_, res.GeneratorErr = gen.Generator(ctx)
		return nil
	})
	_ = g.Wait()

	res.Elapsed = time.Since(start)
	return res
}

// ComponentStatus 单个组件的状态
type ComponentStatus struct {
	State lazy.State
	Err   error
}

// Status 流水线整体状态
type Status struct {
	KnowledgeBase ComponentStatus
	Generator     ComponentStatus
}

// Ready 两个组件都已就绪
func (s Status) Ready() bool {
	return s.KnowledgeBase.State == lazy.StateReady && s.Generator.State == lazy.StateReady
}

// componentStatus 不支持状态查询的来源视为未知的空闲状态
func componentStatus(source interface{}) ComponentStatus {
	reporter, ok := source.(StateReporter)
	if !ok {
		return ComponentStatus{State: lazy.StateIdle}
	}
	state, err := reporter.State()
	return ComponentStatus{State: state, Err: err}
}
