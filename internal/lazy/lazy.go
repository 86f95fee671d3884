// Package lazy 提供按需初始化的共享值
//
// 并发的首次调用只执行一次初始化函数，其余调用者等待同一结果。
// 初始化成功后结果被永久缓存；失败是否缓存由 Sticky 选项决定。
package lazy

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// State 初始化状态
type State int

const (
	// StateIdle 尚未初始化
	StateIdle State = iota
	// StateReady 已成功初始化
	StateReady
	// StateFailed 初始化失败且失败被缓存
	StateFailed
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// InitFunc 初始化函数
type InitFunc[T any] func(ctx context.Context) (T, error)

// Value 按需初始化的值
type Value[T any] struct {
	init   InitFunc[T]
	sticky bool

	group singleflight.Group

	mu    sync.RWMutex
	state State
	value T
	err   error
}

// Option 配置选项
type Option func(*options)

type options struct {
	sticky bool
}

// WithStickyFailure 初始化失败后不再重试，后续调用返回同一个错误
func WithStickyFailure() Option {
	return func(o *options) {
		o.sticky = true
	}
}

// New 创建延迟初始化的值
func New[T any](fn InitFunc[T], opts ...Option) *Value[T] {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return &Value[T]{init: fn, sticky: o.sticky}
}

// Get 返回值，必要时执行初始化
// 调用者的 ctx 取消只会让该调用者提前返回，不会中断进行中的初始化
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	if value, done, err := v.cached(); done {
		return value, err
	}

	ch := v.group.DoChan("init", func() (interface{}, error) {
		// 双重检查，避免等待期间已完成的初始化被重复执行
		if value, done, err := v.cached(); done {
			return value, err
		}

		value, err := v.init(context.WithoutCancel(ctx))

		v.mu.Lock()
		defer v.mu.Unlock()
		switch {
		case err == nil:
			v.value, v.err, v.state = value, nil, StateReady
		case v.sticky:
			v.err, v.state = err, StateFailed
		}
		return value, err
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		value, _ := res.Val.(T)
		return value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (v *Value[T]) cached() (T, bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	switch v.state {
	case StateReady:
		return v.value, true, nil
	case StateFailed:
		var zero T
		return zero, true, v.err
	default:
		var zero T
		return zero, false, nil
	}
}

// Peek 返回当前状态和已缓存的错误，不触发初始化
func (v *Value[T]) Peek() (State, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state, v.err
}
