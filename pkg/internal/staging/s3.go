package staging

import (
	"context"
	"fmt"
	"io"

	minio "github.com/minio/minio-go/v7"

	s3c "github.com/yeisme/ingestvault/pkg/internal/storage/s3"
)

const noSuchKey = "NoSuchKey"

// S3 以对象存储桶作为暂存后端，多个 worker 实例可共享.
type S3 struct {
	cli    *s3c.Client
	bucket string
}

// NewS3 创建对象存储暂存.
func NewS3(cli *s3c.Client, bucket string) *S3 {
	return &S3{cli: cli, bucket: bucket}
}

// Put 上传暂存副本.
func (s *S3) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	_, err := s.cli.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: "text/csv",
		PartSize:    s.cli.PartSize(),
	})
	if err != nil {
		return fmt.Errorf("put staged %s: %w", key, err)
	}

	return nil
}

// Open 读取暂存副本；GetObject 是惰性的，先 Stat 以便立即发现缺失.
func (s *S3) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.cli.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.wrap(key, err)
	}

	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()

		return nil, s.wrap(key, err)
	}

	return obj, nil
}

// Delete 删除暂存副本.
func (s *S3) Delete(ctx context.Context, key string) error {
	err := s.cli.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != noSuchKey {
		return fmt.Errorf("delete staged %s: %w", key, err)
	}

	return nil
}

// HealthCheck 检查桶可访问.
func (s *S3) HealthCheck(ctx context.Context) error {
	return s.cli.HealthCheck(ctx)
}

func (s *S3) wrap(key string, err error) error {
	if minio.ToErrorResponse(err).Code == noSuchKey {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}

	return fmt.Errorf("open staged %s: %w", key, err)
}
