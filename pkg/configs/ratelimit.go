package configs

import "github.com/spf13/viper"

const (
	DefaultRateLimitRPS         = 50.0
	DefaultRateLimitBurst       = 100
	DefaultRateLimitKey         = "ip"
	DefaultRateLimitUploadRPS   = 2.0 // 上传需要整份落盘并计算 sha256，单独限流
	DefaultRateLimitUploadBurst = 10
)

// DefaultExemptPaths 不参与限流与熔断统计的路径前缀.
var DefaultExemptPaths = []string{"/api/v1/health", "/metrics", "/debug/pprof"}

// RateLimitConfig 速率限制配置.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"   rule:"gte=0"` // 每秒允许的请求数
	Burst   int     `mapstructure:"burst" rule:"gte=0"` // 突发容量
	// Key 选择限流维度：global（全局）、ip（按客户端IP）、header:Header-Name（按请求头）
	Key string `mapstructure:"key"`

	// UploadRPS 上传接口的独立限额，0 表示与其他接口共用.
	UploadRPS   float64 `mapstructure:"upload_rps"   rule:"gte=0"`
	UploadBurst int     `mapstructure:"upload_burst" rule:"gte=0"`

	Exempt []string `mapstructure:"exempt"`
}

func (c *RateLimitConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.rps", DefaultRateLimitRPS)
	v.SetDefault("rate_limit.burst", DefaultRateLimitBurst)
	v.SetDefault("rate_limit.key", DefaultRateLimitKey)
	v.SetDefault("rate_limit.upload_rps", DefaultRateLimitUploadRPS)
	v.SetDefault("rate_limit.upload_burst", DefaultRateLimitUploadBurst)
	v.SetDefault("rate_limit.exempt", DefaultExemptPaths)
}
