package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStorage 本地文件存储实现
type LocalStorage struct {
	basePath string // 基础存储路径
}

// LocalConfig 本地存储配置
type LocalConfig struct {
	Path string // 本地存储路径，相对路径基于此目录解析
}

// NewLocalStorage 创建本地存储实例
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	root := cfg.Path
	if root == "" {
		root = "."
	}
	absPath, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %v", err)
	}

	return &LocalStorage{
		basePath: absPath,
	}, nil
}

// resolve 绝对路径原样使用，相对路径基于根目录
func (s *LocalStorage) resolve(name string) string {
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}
	return filepath.Join(s.basePath, name)
}

// Fetch 本地文件无需复制，直接返回路径
func (s *LocalStorage) Fetch(ctx context.Context, name string) (*Fetched, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := s.resolve(name)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	return &Fetched{
		FileInfo: FileInfo{
			Name:     filepath.Base(path),
			Size:     info.Size(),
			MimeType: getMimeType(path),
			Path:     path,
		},
		LocalPath: path,
	}, nil
}

// Exists 检查文件是否存在
func (s *LocalStorage) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(s.resolve(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}
