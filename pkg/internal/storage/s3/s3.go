// Package s3 连接暂存用的对象存储桶（MinIO 或任意 S3 兼容服务）.
package s3

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yeisme/ingestvault/pkg/configs"
	nlog "github.com/yeisme/ingestvault/pkg/log"
)

// Client 包装 MinIO 客户端，绑定暂存桶.
type Client struct {
	*minio.Client

	bucket   string
	partSize uint64
}

// endpoint 去掉 scheme，https 前缀隐含 secure.
func endpoint(cfg *configs.S3Config) (string, bool) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Host == "" {
		return cfg.Endpoint, cfg.UseSSL
	}

	return u.Host, cfg.UseSSL || u.Scheme == "https"
}

// New 连接对象存储并确认暂存桶可用.
func New(ctx context.Context, cfg *configs.S3Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	host, secure := endpoint(cfg)

	cli, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	cli.SetAppInfo(configs.AppName, configs.AppVersion)

	c := &Client{Client: cli, bucket: cfg.Bucket, partSize: cfg.PartSizeMB << 20}
	if err := c.ensureBucket(ctx, cfg); err != nil {
		return nil, err
	}

	nlog.Logger().Info().Str("endpoint", host).Bool("secure", secure).Str("bucket", cfg.Bucket).Msg("s3 staging connected")

	return c, nil
}

func (c *Client) ensureBucket(ctx context.Context, cfg *configs.S3Config) error {
	exists, err := c.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", c.bucket, err)
	}

	if exists {
		return nil
	}

	if !cfg.AutoCreateBucket {
		return fmt.Errorf("bucket %s does not exist and s3.auto_create_bucket is off", c.bucket)
	}

	if err := c.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", c.bucket, err)
	}

	nlog.Logger().Info().Str("bucket", c.bucket).Msg("staging bucket created")

	return nil
}

// Bucket 返回暂存使用的桶名.
func (c *Client) Bucket() string {
	return c.bucket
}

// PartSize 分片上传的分片大小，0 表示使用 minio 默认值.
func (c *Client) PartSize() uint64 {
	return c.partSize
}

// HealthCheck 通过查询暂存桶验证连接.
func (c *Client) HealthCheck(ctx context.Context) error {
	ok, err := c.BucketExists(ctx, c.bucket)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("bucket %s not found", c.bucket)
	}

	return nil
}

// Close minio 客户端没有需要释放的连接.
func (c *Client) Close() error {
	return nil
}
