package configs

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type (
	DBType string
)

const (
	// PostgreSQL 协议.
	PostgreSQL DBType = "postgresql"
	Postgres   DBType = "postgre"
	Pg         DBType = "pg"

	// MySQL 协议.
	MySQL   DBType = "mysql"
	MariaDB DBType = "mariadb"
	// SQLite 协议.
	SQLite DBType = "sqlite"
)

const (
	DefaultDatabaseHost    = "localhost"
	DefaultDatabasePort    = 5432
	DefaultDatabaseUser    = "postgres"
	DefaultDatabaseName    = "ingestvault"
	DefaultDatabaseSSLMode = "disable"
	DefaultMaxOpenConns    = 20
	DefaultMaxIdleConns    = 5
	DefaultConnMaxLifetime = 30 * time.Minute
)

// DBConfig 进度与行明细所在的数据库.sqlite 只使用 Database 作为文件路径.
type DBConfig struct {
	Type     DBType `mapstructure:"type"     rule:"oneof=postgresql postgre pg mysql mariadb sqlite"`
	Host     string `mapstructure:"host"     rule:"omitempty,hostname|ip"`
	Port     int    `mapstructure:"port"     rule:"min=1,max=65535"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database" rule:"required"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"    rule:"min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    rule:"min=0,ltefield=MaxOpenConns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`

	// LogLevel gorm 日志级别: silent, error, warn, info.
	LogLevel      string        `mapstructure:"log_level"      rule:"oneof=silent error warn info"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
	// PreferSimpleProtocol 仅 PostgreSQL，经 pgbouncer 事务池访问时开启.
	PreferSimpleProtocol bool `mapstructure:"prefer_simple_protocol"`
}

// Family 返回驱动族名，别名归并到同一族.
func (c *DBConfig) Family() string {
	switch c.Type {
	case PostgreSQL, Postgres, Pg:
		return "postgres"
	case MySQL, MariaDB:
		return "mysql"
	case SQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// SQLitePath 返回 sqlite 文件路径，未带 .db 后缀时补上，:memory: 原样返回.
func (c *DBConfig) SQLitePath() string {
	if c.Database == ":memory:" || strings.HasSuffix(c.Database, ".db") {
		return c.Database
	}

	return c.Database + ".db"
}

// setDefaults 设置数据库配置的默认值.
func (c *DBConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("db.type", PostgreSQL)
	v.SetDefault("db.host", DefaultDatabaseHost)
	v.SetDefault("db.port", DefaultDatabasePort)
	v.SetDefault("db.user", DefaultDatabaseUser)
	v.SetDefault("db.password", "")
	v.SetDefault("db.database", DefaultDatabaseName)
	v.SetDefault("db.sslmode", DefaultDatabaseSSLMode)
	v.SetDefault("db.max_open_conns", DefaultMaxOpenConns)
	v.SetDefault("db.max_idle_conns", DefaultMaxIdleConns)
	v.SetDefault("db.conn_max_lifetime", DefaultConnMaxLifetime)
	v.SetDefault("db.log_level", "warn")
	v.SetDefault("db.slow_threshold", "500ms")
	v.SetDefault("db.prefer_simple_protocol", false)
}
