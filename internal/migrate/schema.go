package migrate

import (
	"context"
	"database/sql"

	"citymap/internal/logger"
)

// 背景：首次运行自动创建城市缓存表与索引，SQLite 与 PostgreSQL 共用
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；仅创建最小必需结构
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cities (
            objectid BIGINT PRIMARY KEY,
            payload TEXT NOT NULL,
            updated_at BIGINT NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_cities_updated ON cities(updated_at)`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
