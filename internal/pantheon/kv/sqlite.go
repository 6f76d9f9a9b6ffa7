package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/bdobrica/pantheon/common/retry"
	"github.com/bdobrica/pantheon/internal/pantheon/store"
)

// SQLiteConfig tunes the SQLite-backed store.
type SQLiteConfig struct {
	// Retry governs writes that hit SQLITE_BUSY / SQLITE_LOCKED. Zero value
	// means retry.Default.
	Retry retry.Policy
	// Now stamps updated_at. Defaults to time.Now.
	Now func() time.Time
}

type sqliteStore struct {
	db    *store.Store
	retry retry.Policy
	now   func() time.Time
}

var _ Store = (*sqliteStore)(nil)

// NewSQLite returns a Store over the kv table created by the store
// migrations.
func NewSQLite(db *store.Store, cfg SQLiteConfig) Store {
	if cfg.Retry.Attempts == 0 {
		onRetry := cfg.Retry.OnRetry
		cfg.Retry = retry.Default
		cfg.Retry.OnRetry = onRetry
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = IsBusy
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &sqliteStore{db: db, retry: cfg.Retry, now: cfg.Now}
}

// IsBusy reports whether err is SQLite lock contention that is worth
// retrying.
func IsBusy(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	return err != nil && strings.Contains(err.Error(), "database is locked")
}

func (s *sqliteStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.DB().QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kv: get %q: %w", key, err)
	}
	return value, nil
}

func (s *sqliteStore) Set(ctx context.Context, key, value string) error {
	now := s.now().UTC().Format(time.RFC3339Nano)
	err := retry.Do(ctx, s.retry, func() error {
		_, err := s.db.DB().ExecContext(ctx, `
			INSERT INTO kv (key, value, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				value      = excluded.value,
				updated_at = excluded.updated_at
		`, key, value, now)
		return err
	})
	if err != nil {
		return fmt.Errorf("kv: set %q: %w", key, err)
	}
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, key string) error {
	err := retry.Do(ctx, s.retry, func() error {
		_, err := s.db.DB().ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
		return err
	})
	if err != nil {
		return fmt.Errorf("kv: delete %q: %w", key, err)
	}
	return nil
}

func (s *sqliteStore) List(ctx context.Context, prefix string) (map[string]string, error) {
	query := `SELECT key, value FROM kv ORDER BY key`
	args := []any{}
	if prefix != "" {
		// Range scan on the primary key: every key with this prefix sorts
		// between prefix and prefix+U+10FFFF.
		query = `SELECT key, value FROM kv WHERE key >= ? AND key < ? ORDER BY key`
		args = append(args, prefix, prefix+"\U0010FFFF")
	}

	rows, err := s.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("kv: list %q: %w", prefix, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("kv: list scan: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("kv: list rows: %w", err)
	}
	return out, nil
}
