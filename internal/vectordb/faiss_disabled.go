//go:build !faiss

package vectordb

import "errors"

// ErrFaissUnavailable 未使用 faiss 构建标签编译
var ErrFaissUnavailable = errors.New("faiss support not compiled in; rebuild with -tags faiss")

func init() {
	RegisterRepository("faiss", func(Config) (Repository, error) {
		return nil, ErrFaissUnavailable
	})
}
