package vectordb

import (
	"fmt"
	"math"
	"sort"
)

// ComputeDistance 计算两个向量间的距离
func ComputeDistance(v1, v2 []float32, distType DistanceType) (float32, error) {
	if len(v1) != len(v2) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrInvalidDimension, len(v1), len(v2))
	}

	switch distType {
	case Cosine:
		return cosineDistance(v1, v2), nil
	case DotProduct:
		return dotProduct(v1, v2), nil
	case Euclidean:
		return euclideanDistance(v1, v2), nil
	default:
		return 0, fmt.Errorf("unsupported distance type: %s", distType)
	}
}

// cosineDistance 计算余弦距离
func cosineDistance(v1, v2 []float32) float32 {
	// 余弦距离 = 1 - 点积 / (||v1|| * ||v2||)
	dot := dotProduct(v1, v2)
	norm1 := vectorNorm(v1)
	norm2 := vectorNorm(v2)

	if norm1 == 0 || norm2 == 0 {
		return 1.0
	}

	similarity := dot / (norm1 * norm2)
	if similarity > 1.0 {
		similarity = 1.0
	}

	return 1.0 - similarity
}

func dotProduct(v1, v2 []float32) float32 {
	var dot float32
	for i := 0; i < len(v1); i++ {
		dot += v1[i] * v2[i]
	}
	return dot
}

func euclideanDistance(v1, v2 []float32) float32 {
	var sum float32
	for i := 0; i < len(v1); i++ {
		d := v1[i] - v2[i]
		sum += d * d
	}
	return float32(math.Sqrt(float64(sum)))
}

// vectorNorm 计算向量的L2范数
func vectorNorm(v []float32) float32 {
	var sum float32
	for _, val := range v {
		sum += val * val
	}
	return float32(math.Sqrt(float64(sum)))
}

// normalizeVector 归一化向量，返回新切片
func normalizeVector(v []float32) []float32 {
	norm := vectorNorm(v)
	result := make([]float32, len(v))
	if norm == 0 {
		copy(result, v)
		return result
	}
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}

// SortSearchResults 按得分降序排序，同分时按 Position 升序
func SortSearchResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.Position < results[j].Document.Position
	})
}

// DistanceToScore 将距离转换为评分
// 不同距离度量需要不同的转换方法
func DistanceToScore(distance float32, distType DistanceType) float32 {
	switch distType {
	case Cosine:
		return 1 - distance
	case DotProduct:
		// 点积本身即相似度
		return distance
	case Euclidean:
		// 距离越小，分数越高
		return float32(math.Exp(-float64(distance)))
	default:
		return 0
	}
}

// ValidateVector 验证向量维度和有效性
func ValidateVector(vector []float32, expectedDim int) error {
	if len(vector) == 0 {
		return ErrEmptyVector
	}

	if expectedDim > 0 && len(vector) != expectedDim {
		return fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, expectedDim, len(vector))
	}

	return nil
}

// filterAndTruncate 按最小分数过滤并截断到 MaxResults
func filterAndTruncate(results []SearchResult, filter SearchFilter) []SearchResult {
	out := results[:0]
	for _, r := range results {
		if filter.MinScore > 0 && r.Score < filter.MinScore {
			continue
		}
		out = append(out, r)
	}
	if filter.MaxResults > 0 && len(out) > filter.MaxResults {
		out = out[:filter.MaxResults]
	}
	return out
}
