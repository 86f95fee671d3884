package vectordb

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgVectorRepository 基于 PostgreSQL + pgvector 的向量仓库
// 每个实例使用独立的临时表，Close 时删除
type PgVectorRepository struct {
	mu        sync.RWMutex
	pool      *pgxpool.Pool
	table     string // 已转义的表名
	dimension int
	distType  DistanceType
	count     int
}

const pgConnectTimeout = 10 * time.Second

// NewPgVectorRepository 连接数据库并创建文本块表
func NewPgVectorRepository(config Config) (Repository, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("pgvector: DSN is required")
	}
	if _, err := pgOperator(config.DistanceType); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), pgConnectTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgvector: failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector: failed to ping database: %w", err)
	}

	name := "lgpd_chunks_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	repo := &PgVectorRepository{
		pool:      pool,
		table:     pgx.Identifier{name}.Sanitize(),
		dimension: config.Dimension,
		distType:  config.DistanceType,
	}

	if err := repo.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

func (r *PgVectorRepository) migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("pgvector: failed to create extension: %w", err)
	}

	query := fmt.Sprintf(`CREATE TABLE %s (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		page INTEGER NOT NULL,
		source TEXT NOT NULL,
		content TEXT NOT NULL,
		embedding vector(%d) NOT NULL
	)`, r.table, r.dimension)
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("pgvector: failed to create table: %w", err)
	}
	return nil
}

// pgOperator 返回距离类型对应的 pgvector 运算符
func pgOperator(distType DistanceType) (string, error) {
	switch distType {
	case Cosine:
		return "<=>", nil
	case Euclidean:
		return "<->", nil
	case DotProduct:
		// <#> 返回负内积
		return "<#>", nil
	default:
		return "", fmt.Errorf("unsupported distance type: %s", distType)
	}
}

// AddBatch 在一个事务内批量写入
func (r *PgVectorRepository) AddBatch(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	for _, doc := range docs {
		if err := ValidateVector(doc.Vector, r.dimension); err != nil {
			return fmt.Errorf("invalid vector for document %s: %w", doc.ID, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pool == nil {
		return ErrClosed
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (id, position, page, source, content, embedding) VALUES ($1, $2, $3, $4, $5, $6)",
		r.table)

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, doc := range docs {
			batch.Queue(query, doc.ID, doc.Position, doc.Page, doc.Source, doc.Text, pgvector.NewVector(doc.Vector))
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("pgvector: failed to insert documents: %w", err)
	}

	r.count += len(docs)
	return nil
}

// Search 使用 pgvector 运算符排序，同距离按 position 排序
func (r *PgVectorRepository) Search(ctx context.Context, vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}
	op, err := pgOperator(r.distType)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.pool == nil {
		return nil, ErrClosed
	}

	limit := r.count
	if filter.MaxResults > 0 && filter.MaxResults < limit {
		limit = filter.MaxResults
	}
	if limit == 0 {
		return []SearchResult{}, nil
	}

	query := fmt.Sprintf(`SELECT id, position, page, source, content, embedding, embedding %s $1 AS distance
		FROM %s
		ORDER BY distance, position
		LIMIT $2`, op, r.table)

	rows, err := r.pool.Query(ctx, query, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("pgvector: search failed: %w", err)
	}
	defer rows.Close()

	results := make([]SearchResult, 0, limit)
	for rows.Next() {
		var (
			doc       Document
			embedding pgvector.Vector
			raw       float64
		)
		if err := rows.Scan(&doc.ID, &doc.Position, &doc.Page, &doc.Source, &doc.Text, &embedding, &raw); err != nil {
			return nil, fmt.Errorf("pgvector: failed to scan row: %w", err)
		}
		doc.Vector = embedding.Slice()

		dist := float32(raw)
		if r.distType == DotProduct {
			dist = -dist
		}
		results = append(results, SearchResult{
			Document: doc,
			Score:    DistanceToScore(dist, r.distType),
			Distance: dist,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector: failed to read rows: %w", err)
	}

	SortSearchResults(results)
	return filterAndTruncate(results, filter), nil
}

// Count 获取文档总数
func (r *PgVectorRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// GetDimension 返回向量维数
func (r *PgVectorRepository) GetDimension() int {
	return r.dimension
}

// Close 删除临时表并关闭连接池
func (r *PgVectorRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pool == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), pgConnectTimeout)
	defer cancel()
	_, err := r.pool.Exec(ctx, "DROP TABLE IF EXISTS "+r.table)

	r.pool.Close()
	r.pool = nil
	r.count = 0
	if err != nil {
		return fmt.Errorf("pgvector: failed to drop table: %w", err)
	}
	return nil
}

func init() {
	RegisterRepository("pgvector", NewPgVectorRepository)
}
