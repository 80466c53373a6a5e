package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultMaxBatchSize 默认最大批量大小.
	DefaultMaxBatchSize = 512
	// DefaultMaxQueueSize 默认最大队列大小.
	DefaultMaxQueueSize = 2048
)

// TracingConfig 追踪配置.ServiceName 同时作为日志的 service 字段.
type TracingConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"    rule:"required"`
	ServiceVersion string `mapstructure:"service_version"`
	ExporterType   string `mapstructure:"exporter_type"   rule:"oneof=otlp-http otlp-grpc zipkin"`
	Endpoint       string `mapstructure:"endpoint"        rule:"required_if=Enabled true"`
	// SampleRate 根 span 的采样率，下游 span 跟随父级决定.
	SampleRate   float64       `mapstructure:"sample_rate"    rule:"min=0,max=1"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	MaxBatchSize int           `mapstructure:"max_batch_size" rule:"gte=1"`
	MaxQueueSize int           `mapstructure:"max_queue_size" rule:"gtefield=MaxBatchSize"`
	// ResourceLabels 附加到资源上的标签，例如 deployment.environment.
	ResourceLabels map[string]string `mapstructure:"resource_labels"`
}

// setDefaults 设置Tracing配置的默认值.
func (c *TracingConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", AppName)
	v.SetDefault("tracing.service_version", AppVersion)
	v.SetDefault("tracing.exporter_type", "otlp-http")
	v.SetDefault("tracing.endpoint", "http://localhost:4318")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.batch_timeout", "5s")
	v.SetDefault("tracing.max_batch_size", DefaultMaxBatchSize)
	v.SetDefault("tracing.max_queue_size", DefaultMaxQueueSize)
	v.SetDefault("tracing.resource_labels", map[string]string{})
}
