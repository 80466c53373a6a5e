//go:build !no_sqlite && !cgo

package db

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/yeisme/ingestvault/pkg/configs"
)

// sqliteDSN 开启 WAL 与 busy_timeout，HTTP 与 worker 同时写入时不会立即报 database is locked.
func sqliteDSN(cfg *configs.DBConfig) string {
	return "file:" + cfg.SQLitePath() + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func init() {
	RegisterDialectorFactory(configs.SQLite, func(cfg *configs.DBConfig) gorm.Dialector {
		return sqlite.Open(sqliteDSN(cfg))
	})
}
