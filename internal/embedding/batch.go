package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// BatchProcessor 把大量文本分批并行嵌入
// 输出顺序与输入一致
type BatchProcessor struct {
	client     Client // 嵌入客户端
	batchSize  int    // 每批文本数量
	maxWorkers int    // 最大并行请求数
}

// NewBatchProcessor 创建新的批处理器
func NewBatchProcessor(client Client, batchSize int, maxWorkers int) *BatchProcessor {
	if batchSize <= 0 {
		batchSize = 16
	}
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	return &BatchProcessor{
		client:     client,
		batchSize:  batchSize,
		maxWorkers: maxWorkers,
	}
}

// Process 分批调用 EmbedBatch，任一批失败则整体失败
func (p *BatchProcessor) Process(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxWorkers)

	for start := 0; start < len(texts); start += p.batchSize {
		end := min(start+p.batchSize, len(texts))
		batch := texts[start:end]
		offset := start
		batchIndex := start / p.batchSize

		g.Go(func() error {
			vectors, err := p.client.EmbedBatch(gctx, batch)
			if err != nil {
				return fmt.Errorf("batch %d processing error: %w", batchIndex, err)
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("batch %d: expected %d vectors, got %d", batchIndex, len(batch), len(vectors))
			}
			// 各批写入互不重叠的区间
			copy(results[offset:], vectors)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
