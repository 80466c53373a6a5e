package configs

import (
	"time"

	"github.com/spf13/viper"
)

// MetricsConfig Prometheus 指标配置.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Endpoint 独立指标服务监听地址，例如 :9090；为空时挂载在 HTTP 服务上.
	Endpoint string `mapstructure:"endpoint" rule:"omitempty,hostname_port"`
	Path     string `mapstructure:"path"     rule:"startswith=/"`
	// CollectInterval gorm 连接池指标的刷新周期.
	CollectInterval time.Duration `mapstructure:"collect_interval"`
	// RuntimeMetrics 关闭时不导出 go_* 与 process_* 指标.
	RuntimeMetrics bool `mapstructure:"runtime_metrics"`
	Pprof          bool `mapstructure:"pprof"`
	// Labels 附加到全部导入指标上的常量标签.
	Labels map[string]string `mapstructure:"labels"`
}

func (c *MetricsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.endpoint", "")
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.collect_interval", "15s")
	v.SetDefault("metrics.runtime_metrics", true)
	v.SetDefault("metrics.pprof", false)
	v.SetDefault("metrics.labels", map[string]string{"service": AppName})
}
