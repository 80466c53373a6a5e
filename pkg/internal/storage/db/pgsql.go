//go:build !no_postgres

package db

import (
	"strconv"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yeisme/ingestvault/pkg/configs"
)

// pgQuote 按 libpq 的 key=value 规则给值加引号.
func pgQuote(v string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
}

func postgresDSN(cfg *configs.DBConfig) string {
	pairs := [][2]string{
		{"host", cfg.Host},
		{"port", strconv.Itoa(cfg.Port)},
		{"user", cfg.User},
		{"password", cfg.Password},
		{"dbname", cfg.Database},
		{"sslmode", cfg.SSLMode},
		{"TimeZone", "UTC"},
	}

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p[1] != "" {
			parts = append(parts, p[0]+"="+pgQuote(p[1]))
		}
	}

	return strings.Join(parts, " ")
}

func postgresDialector(cfg *configs.DBConfig) gorm.Dialector {
	return postgres.New(postgres.Config{
		DSN:                  postgresDSN(cfg),
		PreferSimpleProtocol: cfg.PreferSimpleProtocol,
	})
}

func init() {
	for _, t := range []configs.DBType{configs.PostgreSQL, configs.Postgres, configs.Pg} {
		RegisterDialectorFactory(t, postgresDialector)
	}
}
