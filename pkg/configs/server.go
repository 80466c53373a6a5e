package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultPort              = 8080      // 监听端口
	DefaultHost              = "0.0.0.0" // 监听地址
	DefaultTimeout           = 30        // 读取请求头与优雅关闭的超时，单位秒
	DefaultMultipartMemoryMB = 8         // 上传表单在内存中保留的上限，超出部分写入临时文件
)

type (
	// ServerConfig HTTP 服务配置.
	ServerConfig struct {
		Port         int    `mapstructure:"port"          rule:"min=1,max=65535"`
		Host         string `mapstructure:"host"          rule:"ip|hostname"`
		ReloadConfig bool   `mapstructure:"reload_config"`
		Debug        bool   `mapstructure:"debug"`
		Timeout      int    `mapstructure:"timeout"       rule:"min=1,max=300"`

		// AllowOrigins 为空时允许任意来源.
		AllowOrigins      []string `mapstructure:"allow_origins"`
		MultipartMemoryMB int64    `mapstructure:"multipart_memory_mb" rule:"min=1"`
	}
)

// GetTimeoutDuration 返回超时时间作为time.Duration.
func (s *ServerConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// MultipartMemory 返回字节表示的表单内存上限.
func (s *ServerConfig) MultipartMemory() int64 {
	return s.MultipartMemoryMB << 20
}

// setDefaults 设置服务器配置的默认值.
func (s *ServerConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.reload_config", true)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.timeout", DefaultTimeout)
	v.SetDefault("server.allow_origins", []string{})
	v.SetDefault("server.multipart_memory_mb", DefaultMultipartMemoryMB)
}
