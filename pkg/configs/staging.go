package configs

import "github.com/spf13/viper"

// StagingType 暂存后端类型.
type StagingType string

const (
	StagingLocal StagingType = "local" // 本地目录
	StagingS3    StagingType = "s3"    // 对象存储（复用 s3 配置）

	DefaultStagingDir    = "data/staging"
	DefaultStagingPrefix = "staging"
)

// StagingConfig 暂存文件配置，worker 从这里读取待处理文件.
type StagingConfig struct {
	Type   StagingType `mapstructure:"type"   rule:"oneof=local s3"`
	Dir    string      `mapstructure:"dir"`    // local 类型的根目录
	Prefix string      `mapstructure:"prefix"` // 对象键前缀
}

func (c *StagingConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("staging.type", StagingLocal)
	v.SetDefault("staging.dir", DefaultStagingDir)
	v.SetDefault("staging.prefix", DefaultStagingPrefix)
}
