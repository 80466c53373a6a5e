package configs

import (
	"github.com/spf13/viper"
)

const (
	DefaultS3Endpoint   = "localhost:9000"
	DefaultS3Bucket     = "ingestvault-staging"
	DefaultS3Region     = "us-east-1"
	DefaultS3PartSizeMB = 16
)

// S3Config 暂存桶配置，staging.type=s3 时使用.endpoint 可以带 http:// 或 https:// 前缀.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"          rule:"required"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"            rule:"required"`

	// AutoCreateBucket 为 false 时桶必须预先存在，适用于没有建桶权限的凭证.
	AutoCreateBucket bool `mapstructure:"auto_create_bucket"`
	// PartSizeMB 分片上传的分片大小，上传文件大小未知时按它切分.
	PartSizeMB uint64 `mapstructure:"part_size_mb" rule:"min=5,max=5120"`
}

func (c *S3Config) setDefaults(v *viper.Viper) {
	v.SetDefault("s3.endpoint", DefaultS3Endpoint)
	v.SetDefault("s3.access_key_id", "minioadmin")
	v.SetDefault("s3.secret_access_key", "minioadmin")
	v.SetDefault("s3.session_token", "")
	v.SetDefault("s3.use_ssl", false)
	v.SetDefault("s3.region", DefaultS3Region)
	v.SetDefault("s3.bucket", DefaultS3Bucket)
	v.SetDefault("s3.auto_create_bucket", true)
	v.SetDefault("s3.part_size_mb", DefaultS3PartSizeMB)
}
