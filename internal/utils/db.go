// 包 utils：数据库与 Redis 连接、自签证书等启动期工具
package utils

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"citymap/internal/logger"
)

// OpenPostgres：按 DSN 打开 PostgreSQL 连接池
// 约束：城市缓存写入量很小，连接池保持较小规模
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	return db, nil
}

// OpenSQLite：打开本地 SQLite 文件（不存在时创建目录）
// 约束：":memory:" 或单文件库均限制为单连接，避免内存库在多连接下各自独立、文件库写锁冲突
func OpenSQLite(path string) (*sql.DB, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	logger.L().Debug("sqlite_open", "path", path)
	return db, nil
}
