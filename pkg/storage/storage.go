package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrNotFound 源文档不存在
var ErrNotFound = errors.New("source document not found")

// FileInfo 文件元数据结构
type FileInfo struct {
	Name     string // 原始文件名
	Size     int64  // 文件大小(字节)
	MimeType string // 文件MIME类型
	Path     string // 内部存储路径(实现相关)
}

// Fetched 已就绪的本地文件
// 使用完毕后必须调用 Release
type Fetched struct {
	FileInfo
	LocalPath string
	release   func()
}

// Release 释放临时文件
func (f *Fetched) Release() {
	if f != nil && f.release != nil {
		f.release()
		f.release = nil
	}
}

// Source 知识库源文档的只读来源
// 可以有不同实现(本地文件系统、MinIO等)
type Source interface {
	// Fetch 把文档准备为本地可读的文件
	Fetch(ctx context.Context, name string) (*Fetched, error)

	// Exists 检查文档是否存在
	Exists(ctx context.Context, name string) (bool, error)
}

// Config 存储配置
type Config struct {
	Type      string // "local" 或 "minio"
	Root      string // 本地根目录
	Endpoint  string // MinIO服务端点
	AccessKey string // 访问密钥ID
	SecretKey string // 秘密访问密钥
	UseSSL    bool   // 是否使用SSL
	Bucket    string // 存储桶名称
}

// New 根据配置创建文档来源
func New(cfg Config) (Source, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalStorage(LocalConfig{Path: cfg.Root})
	case "minio":
		return NewMinioStorage(MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// getMimeType 简单根据文件扩展名判断MIME类型
func getMimeType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
