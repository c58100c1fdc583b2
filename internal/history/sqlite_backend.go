package history

import (
	"context"
	"database/sql"
	"errors"
	"time"

	contextutils "learnapp/internal/utils"
)

// SQLiteBackend stores values in the kv_store table opened by database.Manager.
type SQLiteBackend struct {
	db    *sql.DB
	quota int64
}

// NewSQLiteBackend wraps an open database whose schema is already applied.
func NewSQLiteBackend(db *sql.DB, quotaBytes int64) *SQLiteBackend {
	return &SQLiteBackend{db: db, quota: quotaBytes}
}

func (s *SQLiteBackend) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, contextutils.WrapError(contextutils.ErrStorageFailure, err.Error())
	}
	return value, true, nil
}

func (s *SQLiteBackend) Set(ctx context.Context, key, value string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return contextutils.WrapError(contextutils.ErrStorageFailure, err.Error())
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if s.quota > 0 {
		var others int64
		row := tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(LENGTH(CAST(key AS BLOB)) + LENGTH(CAST(value AS BLOB))), 0) FROM kv_store WHERE key != ?`, key)
		if err = row.Scan(&others); err != nil {
			return contextutils.WrapError(contextutils.ErrStorageFailure, err.Error())
		}
		if needed := others + entrySize(key, value); needed > s.quota {
			return quotaError(s.quota, needed)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		return contextutils.WrapError(contextutils.ErrStorageFailure, err.Error())
	}
	if err = tx.Commit(); err != nil {
		return contextutils.WrapError(contextutils.ErrStorageFailure, err.Error())
	}
	return nil
}

func (s *SQLiteBackend) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, key); err != nil {
		return contextutils.WrapError(contextutils.ErrStorageFailure, err.Error())
	}
	return nil
}

func (s *SQLiteBackend) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM kv_store ORDER BY key`)
	if err != nil {
		return nil, contextutils.WrapError(contextutils.ErrStorageFailure, err.Error())
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, contextutils.WrapError(contextutils.ErrStorageFailure, err.Error())
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(contextutils.ErrStorageFailure, err.Error())
	}
	return keys, nil
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}
