package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/fyerfyer/lgpd-explica/internal/cache"
	"github.com/fyerfyer/lgpd-explica/internal/document"
	"github.com/fyerfyer/lgpd-explica/internal/embedding"
	"github.com/fyerfyer/lgpd-explica/internal/vectordb"
	"github.com/fyerfyer/lgpd-explica/pkg/storage"
	"github.com/sirupsen/logrus"
)

// IndexFactory 按向量维度创建空的向量仓库
type IndexFactory func(dimension int) (vectordb.Repository, error)

// Builder 知识库构建器
// 依次执行 加载 → 分块 → 嵌入 → 建索引，任一阶段失败都不会产出检索器
type Builder struct {
	embedder     embedding.Client
	splitter     document.Splitter
	source       storage.Source
	loader       document.Loader // 为空时按扩展名选择
	pdfEngine    string
	batchSize    int
	workers      int
	indexFactory IndexFactory
	vectors      *cache.VectorCache
	logger       *logrus.Logger
}

// Option 构建器配置选项
type Option func(*Builder)

// WithSource 设置源文档来源
func WithSource(source storage.Source) Option {
	return func(b *Builder) {
		if source != nil {
			b.source = source
		}
	}
}

// WithLoader 固定使用指定的加载器
func WithLoader(loader document.Loader) Option {
	return func(b *Builder) {
		b.loader = loader
	}
}

// WithPDFEngine 设置PDF解析引擎
func WithPDFEngine(engine string) Option {
	return func(b *Builder) {
		b.pdfEngine = engine
	}
}

// WithBatching 设置嵌入批大小和并发数
func WithBatching(batchSize, workers int) Option {
	return func(b *Builder) {
		b.batchSize = batchSize
		b.workers = workers
	}
}

// WithIndexFactory 设置向量仓库工厂
func WithIndexFactory(factory IndexFactory) Option {
	return func(b *Builder) {
		if factory != nil {
			b.indexFactory = factory
		}
	}
}

// WithVectorStore 按配置创建向量仓库，维度在构建时确定
func WithVectorStore(cfg vectordb.Config) Option {
	return WithIndexFactory(func(dimension int) (vectordb.Repository, error) {
		c := cfg
		c.Dimension = dimension
		return vectordb.NewRepository(c)
	})
}

// WithQueryCache 缓存查询向量
func WithQueryCache(vectors *cache.VectorCache) Option {
	return func(b *Builder) {
		b.vectors = vectors
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder 创建知识库构建器
func NewBuilder(embedder embedding.Client, splitter document.Splitter, opts ...Option) (*Builder, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if splitter == nil {
		return nil, fmt.Errorf("splitter is required")
	}

	local, err := storage.NewLocalStorage(storage.LocalConfig{})
	if err != nil {
		return nil, err
	}

	b := &Builder{
		embedder:  embedder,
		splitter:  splitter,
		source:    local,
		batchSize: 32,
		workers:   2,
		logger:    logrus.New(),
	}
	b.indexFactory = func(dimension int) (vectordb.Repository, error) {
		return vectordb.NewRepository(vectordb.Config{
			Type:         "memory",
			Dimension:    dimension,
			DistanceType: vectordb.Cosine,
		})
	}

	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Build 从源文档构建检索器
func (b *Builder) Build(ctx context.Context, path string) (*Retriever, error) {
	start := time.Now()
	log := b.logger.WithField("path", path)
	log.Info("Building knowledge base")

	pages, name, err := b.load(ctx, path)
	if err != nil {
		return nil, err
	}
	log.WithField("pages", len(pages)).Debug("Document loaded")

	chunks, err := b.splitter.Split(pages)
	if err != nil {
		return nil, newBuildError(ErrChunk, path, err)
	}
	if len(chunks) == 0 {
		return nil, newBuildError(ErrChunk, path, fmt.Errorf("document produced no chunks"))
	}
	for i := range chunks {
		chunks[i].Source = name
	}
	log.WithField("chunks", len(chunks)).Debug("Document split")

	vectors, err := b.embed(ctx, chunks)
	if err != nil {
		return nil, newBuildError(ErrEmbedding, path, err)
	}

	index, err := b.index(ctx, chunks, vectors)
	if err != nil {
		return nil, newBuildError(ErrIndex, path, err)
	}

	log.WithFields(logrus.Fields{
		"chunks":    len(chunks),
		"dimension": index.GetDimension(),
		"elapsed":   time.Since(start).String(),
	}).Info("Knowledge base ready")

	return &Retriever{
		embedder: b.embedder,
		index:    index,
		vectors:  b.vectors,
		logger:   b.logger,
	}, nil
}

// load 获取源文档并抽取页面文本
func (b *Builder) load(ctx context.Context, path string) ([]document.Page, string, error) {
	fetched, err := b.source.Fetch(ctx, path)
	if err != nil {
		return nil, "", newBuildError(ErrLoad, path, err)
	}
	defer fetched.Release()

	loader := b.loader
	if loader == nil {
		loader, err = document.NewLoader(fetched.LocalPath, b.pdfEngine)
		if err != nil {
			return nil, "", newBuildError(ErrLoad, path, err)
		}
	}

	pages, err := loader.Load(ctx, fetched.LocalPath)
	if err != nil {
		return nil, "", newBuildError(ErrLoad, path, err)
	}
	if !document.HasText(pages) {
		return nil, "", newBuildError(ErrLoad, path, document.ErrNoText)
	}
	return pages, fetched.Name, nil
}

// embed 批量嵌入所有文本块，向量数量和维度必须一致
func (b *Builder) embed(ctx context.Context, chunks []document.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	processor := embedding.NewBatchProcessor(b.embedder, b.batchSize, b.workers)
	vectors, err := processor.Process(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("expected %d vectors, got %d", len(chunks), len(vectors))
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return nil, fmt.Errorf("chunk %d: inconsistent vector dimension %d (expected %d)", i, len(v), dim)
		}
	}
	return vectors, nil
}

// index 写入向量仓库，失败时释放仓库
func (b *Builder) index(ctx context.Context, chunks []document.Chunk, vectors [][]float32) (vectordb.Repository, error) {
	repo, err := b.indexFactory(len(vectors[0]))
	if err != nil {
		return nil, err
	}

	docs := make([]vectordb.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = vectordb.Document{
			ID:       c.ID,
			Position: c.Index,
			Page:     c.Page,
			Source:   c.Source,
			Text:     c.Text,
			Vector:   vectors[i],
		}
	}

	if err := repo.AddBatch(ctx, docs); err != nil {
		_ = repo.Close()
		return nil, err
	}
	if n := repo.Count(); n != len(docs) {
		_ = repo.Close()
		return nil, fmt.Errorf("index holds %d vectors, expected %d", n, len(docs))
	}
	return repo, nil
}
