package llm

import (
	"context"
	"fmt"

	"github.com/fyerfyer/lgpd-explica/internal/lazy"
	"github.com/sirupsen/logrus"
)

// LoaderConfig 生成模型加载配置
type LoaderConfig struct {
	Provider string   // 注册的客户端名称
	Options  []Option // 客户端选项
	Logger   *logrus.Logger
}

// Loader 进程级生成模型
// 首次成功加载后复用；加载失败不缓存，下一次调用会重试
type Loader struct {
	provider string
	value    *lazy.Value[Client]
}

// NewLoader 创建模型加载器，不会立即加载
func NewLoader(cfg LoaderConfig) *Loader {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	opts := append([]Option(nil), cfg.Options...)

	return &Loader{
		provider: cfg.Provider,
		value: lazy.New(func(ctx context.Context) (Client, error) {
			client, err := NewClient(cfg.Provider, opts...)
			if err != nil {
				logger.WithError(err).WithField("provider", cfg.Provider).Error("Failed to create generation client")
				return nil, fmt.Errorf("%w: %w", ErrModelLoad, WrapError(err, ErrCodeModelLoad))
			}

			log := logger.WithFields(logrus.Fields{
				"provider": cfg.Provider,
				"model":    client.Name(),
			})
			if pinger, ok := client.(Pinger); ok {
				if err := pinger.Ping(ctx); err != nil {
					log.WithError(err).Error("Generation model unavailable")
					return nil, fmt.Errorf("%w: %w", ErrModelLoad, WrapError(err, ErrCodeModelLoad))
				}
			}
			log.Info("Generation model loaded")
			return client, nil
		}),
	}
}

// Generator 返回生成客户端，必要时加载模型
func (l *Loader) Generator(ctx context.Context) (Client, error) {
	return l.value.Get(ctx)
}

// State 返回加载状态，不触发加载
func (l *Loader) State() lazy.State {
	state, _ := l.value.Peek()
	return state
}

// Provider 返回后端名称
func (l *Loader) Provider() string {
	return l.provider
}
