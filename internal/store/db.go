package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

// DB is the SQLite-backed key-value store.
type DB struct {
	Pool *sql.DB
}

func Open(path string) (*DB, error) {
	// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)

	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}

	pool.SetMaxOpenConns(1) // sqlite typically wants 1 writer
	pool.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, errors.Wrap(err, "ping sqlite")
	}

	if err := Migrate(pool); err != nil {
		_ = pool.Close()
		return nil, errors.Wrap(err, "migrate sqlite")
	}

	return &DB{Pool: pool}, nil
}

func (d *DB) Close() error {
	if d == nil || d.Pool == nil {
		return nil
	}
	return d.Pool.Close()
}

func (d *DB) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	var raw string
	err := d.Pool.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ? LIMIT 1;`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "get %q", key)
	}
	if raw == "" {
		return false, nil
	}
	if err := decode(raw, out); err != nil {
		return false, errors.Wrapf(err, "decode %q", key)
	}
	return true, nil
}

func (d *DB) SetJSON(ctx context.Context, key string, value any) error {
	raw, err := encode(value)
	if err != nil {
		return errors.Wrapf(err, "encode %q", key)
	}
	_, err = d.Pool.ExecContext(ctx, `
INSERT INTO kv(key, value, updated_at)
VALUES(?,?,?)
ON CONFLICT(key) DO UPDATE SET
  value = excluded.value,
  updated_at = excluded.updated_at;`,
		key, raw, time.Now().UTC().Format(time.RFC3339))
	return errors.Wrapf(err, "set %q", key)
}

func (d *DB) Delete(ctx context.Context, key string) error {
	_, err := d.Pool.ExecContext(ctx, `DELETE FROM kv WHERE key = ?;`, key)
	return errors.Wrapf(err, "delete %q", key)
}
