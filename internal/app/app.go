// Package app 按配置组装知识库、生成模型和问答服务
// HTTP 服务和终端界面共用同一套组装逻辑
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyerfyer/lgpd-explica/config"
	"github.com/fyerfyer/lgpd-explica/internal/cache"
	"github.com/fyerfyer/lgpd-explica/internal/document"
	"github.com/fyerfyer/lgpd-explica/internal/embedding"
	"github.com/fyerfyer/lgpd-explica/internal/knowledge"
	"github.com/fyerfyer/lgpd-explica/internal/llm"
	"github.com/fyerfyer/lgpd-explica/internal/services"
	"github.com/fyerfyer/lgpd-explica/internal/vectordb"
	"github.com/fyerfyer/lgpd-explica/pkg/storage"
	"github.com/sirupsen/logrus"
)

// App 组装完成的应用
type App struct {
	Config    *config.Config
	Logger    *logrus.Logger
	Base      *knowledge.Base
	Loader    *llm.Loader
	Knowledge *services.KnowledgeSource
	Generator *services.LoaderSource
	QA        *services.QAService

	closers []func() error
}

// New 按配置创建应用，不会构建知识库或加载模型
func New(cfg *config.Config, logger *logrus.Logger) (*App, error) {
	if logger == nil {
		logger = logrus.New()
	}
	a := &App{Config: cfg, Logger: logger}

	source, err := setupSource(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize document source: %w", err)
	}

	embedder, err := setupEmbedding(cfg.Embed, cfg.VectorDB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
	}

	splitter, err := document.NewRecursiveSplitter(document.SplitterConfig{
		ChunkSize:    cfg.Document.ChunkSize,
		ChunkOverlap: cfg.Document.ChunkOverlap,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid chunking config: %w", err)
	}

	builderOpts := []knowledge.Option{
		knowledge.WithSource(source),
		knowledge.WithPDFEngine(cfg.Document.PDFEngine),
		knowledge.WithBatching(cfg.Embed.BatchSize, cfg.Embed.Workers),
		knowledge.WithVectorStore(vectordb.Config{
			Type:         cfg.VectorDB.Type,
			DSN:          cfg.VectorDB.DSN,
			DistanceType: vectordb.DistanceType(cfg.VectorDB.Distance),
		}),
		knowledge.WithLogger(logger),
	}
	if vectors := a.setupQueryCache(cfg.Cache, embedder.Name()); vectors != nil {
		builderOpts = append(builderOpts, knowledge.WithQueryCache(vectors))
	}

	builder, err := knowledge.NewBuilder(embedder, splitter, builderOpts...)
	if err != nil {
		return nil, err
	}
	a.Base = knowledge.NewBase(builder, cfg.Document.Path)
	a.closers = append(a.closers, a.Base.Close)

	a.Loader = llm.NewLoader(llm.LoaderConfig{
		Provider: cfg.LLM.Provider,
		Options:  llmOptions(cfg.LLM),
		Logger:   logger,
	})

	postProcessor, err := llm.NewPostProcessor(cfg.LLM.PostProcess)
	if err != nil {
		return nil, err
	}

	a.Knowledge = services.NewKnowledgeSource(a.Base)
	a.Generator = services.NewLoaderSource(a.Loader)
	a.QA = services.NewQAService(a.Knowledge, a.Generator,
		services.WithRetrievalK(cfg.Retrieval.K),
		services.WithPostProcessor(postProcessor),
		services.WithTokenLimit(llm.NewTokenCounter(""), cfg.LLM.MaxPromptTokens),
		services.WithLogger(logger),
	)

	return a, nil
}

// Initialize 构建知识库并加载生成模型
// 失败时只记录日志，问答服务进入降级状态
func (a *App) Initialize(ctx context.Context) services.InitResult {
	a.Logger.WithFields(logrus.Fields{
		"document":  a.Config.Document.Path,
		"embedding": a.Config.Embed.Model,
		"llm":       a.Config.LLM.Model,
		"provider":  a.Config.LLM.Provider,
	}).Info("Initializing knowledge base and generation model")

	res := services.Initialize(ctx, a.Knowledge, a.Generator)

	log := a.Logger.WithField("elapsed", res.Elapsed.String())
	if res.KnowledgeBaseErr != nil {
		log.WithError(res.KnowledgeBaseErr).Error("Knowledge base unavailable, every question will report not initialized")
	}
	if res.GeneratorErr != nil {
		log.WithError(res.GeneratorErr).Warn("Generation model unavailable, loading will be retried on the next question")
	}
	if res.Ready() {
		log.Info("RAG pipeline ready")
	}
	return res
}

// Close 释放索引和缓存连接
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func setupSource(cfg config.StorageConfig) (storage.Source, error) {
	return storage.New(storage.Config{
		Type:      cfg.Type,
		Root:      cfg.Root,
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
	})
}

func setupEmbedding(cfg config.EmbedConfig, db config.VectorDBConfig) (embedding.Client, error) {
	opts := []embedding.Option{
		embedding.WithModel(cfg.Model),
		embedding.WithAPIKey(cfg.APIKey),
		embedding.WithDimensions(cfg.Dimensions),
		embedding.WithBatchSize(cfg.BatchSize),
		embedding.WithDevice(cfg.Device),
		embedding.WithMaxRetries(cfg.MaxRetries),
		// 余弦距离下归一化不改变排序
		embedding.WithNormalize(db.Distance == string(vectordb.Cosine)),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, embedding.WithBaseURL(cfg.Endpoint))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, embedding.WithTimeout(cfg.Timeout))
	}
	return embedding.NewClient(cfg.Provider, opts...)
}

// setupQueryCache 缓存不可用时退化为不缓存
func (a *App) setupQueryCache(cfg config.CacheConfig, model string) *cache.VectorCache {
	if !cfg.Enable {
		return nil
	}

	ttl := time.Duration(cfg.TTL) * time.Second
	c, err := cache.NewCache(cache.Config{
		Type:            cfg.Type,
		RedisAddr:       cfg.Address,
		RedisPassword:   cfg.Password,
		RedisDB:         cfg.DB,
		KeyPrefix:       "lgpd",
		DefaultTTL:      ttl,
		CleanupInterval: 10 * time.Minute,
	})
	if err != nil {
		a.Logger.WithError(err).WithField("type", cfg.Type).Warn("Query cache unavailable, continuing without it")
		return nil
	}
	a.closers = append(a.closers, c.Close)
	return cache.NewVectorCache(c, model, ttl)
}

func llmOptions(cfg config.LLMConfig) []llm.Option {
	opts := []llm.Option{
		llm.WithModel(cfg.Model),
		llm.WithAPIKey(cfg.APIKey),
		llm.WithBaseURL(cfg.Endpoint),
		llm.WithMaxRetries(cfg.MaxRetries),
		llm.WithDecoding(llm.DecodingConfig{
			MaxNewTokens: cfg.MaxNewTokens,
			DoSample:     cfg.DoSample,
			Temperature:  cfg.Temperature,
			TopK:         cfg.TopK,
			Device:       cfg.Device,
		}),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, llm.WithTimeout(cfg.Timeout))
	}
	return opts
}
