package configs

import (
	"github.com/spf13/viper"
)

const (
	DefaultLogFormat     = LogFormatConsole
	DefaultLogLevel      = "info"
	DefaultLogEnableFile = false
	DefaultLogFilePath   = "logs/ingestvault.log"
	DefaultLogMaxSize    = 100 // MB
	DefaultLogMaxBackups = 7
	DefaultLogMaxAge     = 28 // 天
)

// 终端输出格式，文件输出始终为 JSON.
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// LogConfig 日志相关配置.容器中运行 worker 时通常使用 json 以便采集.
type LogConfig struct {
	Level  string `mapstructure:"level"  rule:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `mapstructure:"format" rule:"oneof=console json"`

	EnableFile bool   `mapstructure:"enable_file"`
	FilePath   string `mapstructure:"file_path"    rule:"required_if=EnableFile true"`
	MaxSize    int    `mapstructure:"max_size_mb"  rule:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups"  rule:"gte=0"`
	MaxAge     int    `mapstructure:"max_age_days" rule:"gte=0"`
	Compress   bool   `mapstructure:"compress"`
}

func (l *LogConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("log.enable_file", DefaultLogEnableFile)
	v.SetDefault("log.file_path", DefaultLogFilePath)
	v.SetDefault("log.max_size_mb", DefaultLogMaxSize)
	v.SetDefault("log.max_backups", DefaultLogMaxBackups)
	v.SetDefault("log.max_age_days", DefaultLogMaxAge)
	v.SetDefault("log.compress", true)
}
