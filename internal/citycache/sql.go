package citycache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"citymap/internal/logger"
	"citymap/internal/migrate"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// SQLStore：SQLite / PostgreSQL 后端，单表 cities(objectid, payload, updated_at)
// 约束：SQL 统一以 ? 书写，PostgreSQL 下改写为 $n
type SQLStore struct {
	db      *sql.DB
	dialect string
}

func NewSQLStore(db *sql.DB, dialect string) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// Init：建表（幂等）
func (s *SQLStore) Init(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return err
	}
	err := migrate.EnsureSchema(ctx, s.db)
	if err == nil {
		logger.L().Debug("citycache_schema_ready", "dialect", s.dialect)
	}
	return err
}

func (s *SQLStore) All(ctx context.Context) ([]CityRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT objectid, payload FROM cities ORDER BY objectid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CityRecord
	for rows.Next() {
		var id int64
		var payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		var r CityRecord
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			logger.L().Warn("citycache_bad_row", "objectid", id, "err", err)
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Replace：单个事务内先清空（可选）再逐条 upsert
func (s *SQLStore) Replace(ctx context.Context, records []CityRecord, clear bool) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if clear {
		if _, err = tx.ExecContext(ctx, `DELETE FROM cities`); err != nil {
			return err
		}
	}
	stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO cities (objectid, payload, updated_at) VALUES (?, ?, ?)
ON CONFLICT (objectid) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`))
	if err != nil {
		return err
	}
	defer stmt.Close()
	now := time.Now().UnixMilli()
	for _, r := range records {
		b, mErr := json.Marshal(r)
		if mErr != nil {
			err = fmt.Errorf("encode record %d: %w", r.ObjectID, mErr)
			return err
		}
		if _, err = stmt.ExecContext(ctx, r.ObjectID, string(b), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cities`)
	return err
}

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) rebind(q string) string {
	if s.dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, c := range q {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
