package knowledge

import (
	"context"

	"github.com/fyerfyer/lgpd-explica/internal/lazy"
)

// Base 进程级知识库
// 首次使用时构建，成功或失败的结果都会被缓存，之后不再重建
type Base struct {
	path  string
	value *lazy.Value[*Retriever]
}

// NewBase 创建知识库，不会立即构建
func NewBase(builder *Builder, path string) *Base {
	return &Base{
		path: path,
		value: lazy.New(func(ctx context.Context) (*Retriever, error) {
			return builder.Build(ctx, path)
		}, lazy.WithStickyFailure()),
	}
}

// Retriever 返回检索器，必要时触发构建
func (b *Base) Retriever(ctx context.Context) (*Retriever, error) {
	return b.value.Get(ctx)
}

// State 返回构建状态，不触发构建
func (b *Base) State() (lazy.State, error) {
	return b.value.Peek()
}

// Path 返回源文档路径
func (b *Base) Path() string {
	return b.path
}

// Close 释放已构建的索引
func (b *Base) Close() error {
	if state, _ := b.value.Peek(); state != lazy.StateReady {
		return nil
	}
	r, err := b.value.Get(context.Background())
	if err != nil {
		return nil
	}
	return r.Close()
}
