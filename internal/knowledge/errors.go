package knowledge

import (
	"errors"
	"fmt"
)

// 构建阶段错误，可用 errors.Is 判断失败阶段
var (
	ErrLoad      = errors.New("failed to load document")
	ErrChunk     = errors.New("failed to split document")
	ErrEmbedding = errors.New("failed to embed chunks")
	ErrIndex     = errors.New("failed to build vector index")
)

// BuildError 知识库构建错误
type BuildError struct {
	Stage error  // 所属阶段，取值为上面的哨兵错误之一
	Path  string // 源文档路径
	Err   error  // 底层错误
}

// Error 实现error接口
func (e *BuildError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", e.Stage, e.Path)
	}
	return fmt.Sprintf("%v: %s: %v", e.Stage, e.Path, e.Err)
}

// Unwrap 返回底层错误
func (e *BuildError) Unwrap() error {
	return e.Err
}

// Is 匹配所属阶段
func (e *BuildError) Is(target error) bool {
	return e.Stage == target
}

func newBuildError(stage error, path string, err error) *BuildError {
	return &BuildError{Stage: stage, Path: path, Err: err}
}
