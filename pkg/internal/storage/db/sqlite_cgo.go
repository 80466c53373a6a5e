//go:build !no_sqlite && cgo

package db

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yeisme/ingestvault/pkg/configs"
)

// sqliteDSN mattn/go-sqlite3 不识别 _pragma，使用它自己的参数名.
func sqliteDSN(cfg *configs.DBConfig) string {
	return "file:" + cfg.SQLitePath() + "?_busy_timeout=5000&_journal_mode=WAL"
}

func init() {
	RegisterDialectorFactory(configs.SQLite, func(cfg *configs.DBConfig) gorm.Dialector {
		return sqlite.Open(sqliteDSN(cfg))
	})
}
