//go:build !no_mysql

package db

import (
	"net"
	"strconv"
	"time"

	drv "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/yeisme/ingestvault/pkg/configs"
)

// mysqlStringSize 未指定长度的字符串列的默认长度，fingerprint 与 unique_key 都有索引，不能用 longtext.
const mysqlStringSize = 255

// mysqlDSN 由驱动自己格式化，密码中的特殊字符无需转义.
func mysqlDSN(cfg *configs.DBConfig) string {
	c := drv.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	c.DBName = cfg.Database
	c.ParseTime = true
	c.Loc = time.UTC
	c.Params = map[string]string{"charset": "utf8mb4"}

	return c.FormatDSN()
}

func mysqlDialector(cfg *configs.DBConfig) gorm.Dialector {
	return mysql.New(mysql.Config{
		DSN:               mysqlDSN(cfg),
		DefaultStringSize: mysqlStringSize,
		// 旧版 MariaDB 不支持 RENAME COLUMN/INDEX
		DontSupportRenameColumn: cfg.Type == configs.MariaDB,
		DontSupportRenameIndex:  cfg.Type == configs.MariaDB,
	})
}

func init() {
	RegisterDialectorFactory(configs.MySQL, mysqlDialector)
	RegisterDialectorFactory(configs.MariaDB, mysqlDialector)
}
