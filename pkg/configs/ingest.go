package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultIngestDelimiter     = ","
	DefaultIngestBatchSize     = 100              // 每处理多少行持久化一次进度
	DefaultIngestMaxRowErrors  = 100              // 最多保留的行错误信息条数
	DefaultIngestMaxAttempts   = 3                // 每个文件最多执行的尝试次数
	DefaultIngestRunTimeout    = time.Hour        // 单次尝试的墙钟超时
	DefaultIngestRetryInterval = 5 * time.Second  // 重试初始间隔
	DefaultIngestMaxFileSizeMB = 50               // 上传文件大小上限
	DefaultIngestTopic         = "ingest.file.requested"
	DefaultIngestSweepInterval = 10 * time.Minute // 暂存清理、卡死任务回收的执行间隔
	DefaultIngestStaleGrace    = 5 * time.Minute  // 超过 run_timeout 后的宽限时间
	DefaultStatusCacheTTL      = 10 * time.Minute // 终态状态缓存时间
)

// IngestConfig 导入流水线配置.
type IngestConfig struct {
	// Delimiter 字段分隔符，单个字符.
	Delimiter    string `mapstructure:"delimiter"      rule:"len=1"`
	BatchSize    int    `mapstructure:"batch_size"     rule:"min=1"`
	MaxRowErrors int    `mapstructure:"max_row_errors" rule:"min=0"`
	MaxAttempts  int    `mapstructure:"max_attempts"   rule:"min=1,max=20"`

	RunTimeout    time.Duration `mapstructure:"run_timeout"    rule:"min=1s"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`

	// RetryFailedOnResubmit 重新提交与失败记录相同内容的文件时，是否重新排队.
	RetryFailedOnResubmit bool `mapstructure:"retry_failed_on_resubmit"`

	MaxFileSizeMB     int64    `mapstructure:"max_file_size_mb"   rule:"min=1"`
	AllowedExtensions []string `mapstructure:"allowed_extensions" rule:"min=1,dive,file_ext"`
	SpoolDir          string   `mapstructure:"spool_dir"` // 为空时使用系统临时目录

	Topic string `mapstructure:"topic" rule:"required"`

	StatusCacheTTL time.Duration `mapstructure:"status_cache_ttl"` // 0 表示关闭缓存
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`   // 0 表示关闭维护任务
	StaleGrace     time.Duration `mapstructure:"stale_grace"`

	Columns ColumnsConfig `mapstructure:"columns"`
}

// ColumnsConfig 表头列名映射.
type ColumnsConfig struct {
	Key            string `mapstructure:"key"             rule:"required"`
	Title          string `mapstructure:"title"           rule:"required"`
	Description    string `mapstructure:"description"     rule:"required"`
	Style          string `mapstructure:"style"`
	MainframeColor string `mapstructure:"mainframe_color"`
	Size           string `mapstructure:"size"`
	ColorName      string `mapstructure:"color_name"`
	Price          string `mapstructure:"price"`
}

// MaxFileSize 返回字节表示的大小上限.
func (c *IngestConfig) MaxFileSize() int64 {
	return c.MaxFileSizeMB << 20
}

// DelimiterRune 返回分隔符字符.
func (c *IngestConfig) DelimiterRune() rune {
	for _, r := range c.Delimiter {
		return r
	}

	return ','
}

func (c *IngestConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("ingest.delimiter", DefaultIngestDelimiter)
	v.SetDefault("ingest.batch_size", DefaultIngestBatchSize)
	v.SetDefault("ingest.max_row_errors", DefaultIngestMaxRowErrors)
	v.SetDefault("ingest.max_attempts", DefaultIngestMaxAttempts)
	v.SetDefault("ingest.run_timeout", DefaultIngestRunTimeout)
	v.SetDefault("ingest.retry_interval", DefaultIngestRetryInterval)
	v.SetDefault("ingest.retry_failed_on_resubmit", false)
	v.SetDefault("ingest.max_file_size_mb", DefaultIngestMaxFileSizeMB)
	v.SetDefault("ingest.allowed_extensions", []string{"csv", "txt"})
	v.SetDefault("ingest.spool_dir", "")
	v.SetDefault("ingest.topic", DefaultIngestTopic)
	v.SetDefault("ingest.status_cache_ttl", DefaultStatusCacheTTL)
	v.SetDefault("ingest.sweep_interval", DefaultIngestSweepInterval)
	v.SetDefault("ingest.stale_grace", DefaultIngestStaleGrace)

	v.SetDefault("ingest.columns.key", "UNIQUE_KEY")
	v.SetDefault("ingest.columns.title", "PRODUCT_TITLE")
	v.SetDefault("ingest.columns.description", "PRODUCT_DESCRIPTION")
	v.SetDefault("ingest.columns.style", "STYLE#")
	v.SetDefault("ingest.columns.mainframe_color", "SANMAR_MAINFRAME_COLOR")
	v.SetDefault("ingest.columns.size", "SIZE")
	v.SetDefault("ingest.columns.color_name", "COLOR_NAME")
	v.SetDefault("ingest.columns.price", "PIECE_PRICE")
}
