package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// VectorCache 以查询文本为键缓存嵌入向量
// 键包含模型名，换模型后旧向量不会被命中
type VectorCache struct {
	cache Cache
	model string
	ttl   time.Duration
}

// NewVectorCache 创建查询向量缓存
func NewVectorCache(c Cache, model string, ttl time.Duration) *VectorCache {
	return &VectorCache{cache: c, model: model, ttl: ttl}
}

func (v *VectorCache) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return GenerateCacheKey("qemb", v.model, hex.EncodeToString(sum[:]))
}

// Get 读取缓存的向量，解码失败视为未命中
func (v *VectorCache) Get(ctx context.Context, text string) ([]float32, bool, error) {
	raw, found, err := v.cache.Get(ctx, v.key(text))
	if err != nil || !found {
		return nil, false, err
	}

	var vector []float32
	if err := json.Unmarshal([]byte(raw), &vector); err != nil || len(vector) == 0 {
		return nil, false, nil
	}
	return vector, true, nil
}

// Set 写入向量
func (v *VectorCache) Set(ctx context.Context, text string, vector []float32) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return err
	}
	return v.cache.Set(ctx, v.key(text), string(data), v.ttl)
}
