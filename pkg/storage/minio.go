package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage MinIO存储实现
// 对象下载到临时目录后交给文档加载器
type MinioStorage struct {
	client     *minio.Client // MinIO客户端
	bucketName string        // 存储桶名称
}

// MinioConfig MinIO存储配置
type MinioConfig struct {
	Endpoint  string // MinIO服务端点
	AccessKey string // 访问密钥ID
	SecretKey string // 秘密访问密钥
	UseSSL    bool   // 是否使用SSL
	Bucket    string // 存储桶名称
}

// NewMinioStorage 创建MinIO存储实例
func NewMinioStorage(cfg MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %v", err)
	}

	return &MinioStorage{
		client:     client,
		bucketName: cfg.Bucket,
	}, nil
}

// Fetch 下载对象到临时文件
func (s *MinioStorage) Fetch(ctx context.Context, name string) (*Fetched, error) {
	stat, err := s.client.StatObject(ctx, s.bucketName, name, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, s.bucketName, name)
		}
		return nil, fmt.Errorf("failed to stat object: %v", err)
	}

	dir, err := os.MkdirTemp("", "lgpd-source-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %v", err)
	}
	release := func() { _ = os.RemoveAll(dir) }

	// 保留扩展名，加载器据此选择解析方式
	localPath := filepath.Join(dir, path.Base(name))
	if err := s.client.FGetObject(ctx, s.bucketName, name, localPath, minio.GetObjectOptions{}); err != nil {
		release()
		return nil, fmt.Errorf("failed to download object: %v", err)
	}

	mimeType := stat.ContentType
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = getMimeType(name)
	}

	return &Fetched{
		FileInfo: FileInfo{
			Name:     path.Base(name),
			Size:     stat.Size,
			MimeType: mimeType,
			Path:     s.bucketName + "/" + name,
		},
		LocalPath: localPath,
		release:   release,
	}, nil
}

// Exists 检查对象是否存在
func (s *MinioStorage) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucketName, name, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, err
}
