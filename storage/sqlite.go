package storage

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

type SQLiteConfig struct {
	// Path to the database file. Blank means in-memory.
	Path string
}

// SQLiteKV persists the KV in a single sqlite database. Suitable for
// single-host deployments; use PostgresKV when multiple server
// instances share the store.
type SQLiteKV struct {
	db *sql.DB

	TimeNow func() time.Time
}

func NewSQLiteKV(cfg ...SQLiteConfig) (*SQLiteKV, error) {
	sourceName := ":memory:"
	if len(cfg) > 0 && cfg[0].Path != "" {
		sourceName = cfg[0].Path
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL,
    expires_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS kv_expires_at ON kv (expires_at);
`)
	if err != nil {
		return nil, errors.Wrap(err, "creating table")
	}

	return &SQLiteKV{db: db, TimeNow: time.Now}, nil
}

func (s *SQLiteKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	var expiresAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
SELECT value, expires_at FROM kv WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "selecting")
	}
	if expiresAt.Valid && s.TimeNow().After(expiresAt.Time) {
		// Expired. Reap it while we're here.
		_, _ = s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
		return nil, ErrNotFound
	}
	return value, nil
}

func (s *SQLiteKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt interface{}
	if ttl > 0 {
		expiresAt = s.TimeNow().Add(ttl).UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt)
	return errors.Wrap(err, "upserting")
}

func (s *SQLiteKV) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return errors.Wrap(err, "deleting")
}

func (s *SQLiteKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT key FROM kv
WHERE key >= ? AND key < ? AND (expires_at IS NULL OR expires_at > ?)
ORDER BY key`,
		prefix, prefix+"\xff", s.TimeNow().UTC())
	if err != nil {
		return nil, errors.Wrap(err, "selecting keys")
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, errors.Wrap(err, "scanning key")
		}
		keys = append(keys, key)
	}
	return keys, errors.Wrap(rows.Err(), "iterating keys")
}

func (s *SQLiteKV) Close() error {
	return s.db.Close()
}
