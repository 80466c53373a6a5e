package configs

import (
	"time"

	"github.com/spf13/viper"
)

// CircuitBreakerConfig 熔断器配置.数据库或暂存后端故障时 5xx 比例升高，打开后直接返回 503.
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	FailureRate      float64       `mapstructure:"failure_rate"       rule:"gte=0,lte=1"` // 窗口内失败比例阈值
	MinRequests      uint32        `mapstructure:"min_requests"`                          // 进入统计的最小请求数
	Interval         time.Duration `mapstructure:"interval"`                              // 关闭状态下计数清零的周期
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`                          // 打开状态持续时间，之后半开
	HalfOpenRequests uint32        `mapstructure:"half_open_requests"`                    // 半开状态允许通过的请求数
	Exempt           []string      `mapstructure:"exempt"`                                // 不经过熔断的路径前缀
}

func (c *CircuitBreakerConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("circuit_breaker.enabled", false)
	v.SetDefault("circuit_breaker.failure_rate", 0.5)
	v.SetDefault("circuit_breaker.min_requests", 20)
	v.SetDefault("circuit_breaker.interval", time.Minute)
	v.SetDefault("circuit_breaker.open_timeout", 30*time.Second)
	v.SetDefault("circuit_breaker.half_open_requests", 5)
	v.SetDefault("circuit_breaker.exempt", DefaultExemptPaths)
}
