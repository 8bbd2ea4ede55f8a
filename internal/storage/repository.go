// Package storage is the durable, SQLite-backed session backend. Every
// browser gets its own namespace so sessions survive server restarts.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"

	"expensedash/internal/session"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

type sessionValue struct {
	Namespace string `db:"namespace"`
	Key       string `db:"key"`
	Value     string `db:"value"`
	// UpdatedAt is unix seconds.
	UpdatedAt int64 `db:"updated_at"`
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between browser sessions
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable. Used by the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	var value string
	err := r.db.GetContext(ctx, &value,
		`SELECT value FROM session_values WHERE namespace = ? AND key = ?`,
		namespace, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s/%s: %w", namespace, key, err)
	}
	return value, true, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, namespace, key, value string) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO session_values (namespace, key, value, updated_at)
		VALUES (:namespace, :key, :value, :updated_at)
		ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		sessionValue{Namespace: namespace, Key: key, Value: value, UpdatedAt: r.now().Unix()})
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, namespace string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM session_values WHERE namespace = ? AND key IN (?)`, namespace, keys)
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("delete %s: %w", namespace, err)
	}
	return nil
}

// PurgeBefore drops every value not written since cutoff and returns how
// many rows went.
func (r *SQLiteRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM session_values WHERE updated_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("purge session values: %w", err)
	}
	return res.RowsAffected()
}

// Backend implements session.Provider.
func (r *SQLiteRepository) Backend(namespace string) session.Backend {
	return &namespaceBackend{repo: r, namespace: namespace}
}

type namespaceBackend struct {
	repo      *SQLiteRepository
	namespace string
}

func (b *namespaceBackend) Get(ctx context.Context, key string) (string, bool, error) {
	return b.repo.Get(ctx, b.namespace, key)
}

func (b *namespaceBackend) Set(ctx context.Context, key, value string) error {
	return b.repo.Set(ctx, b.namespace, key, value)
}

func (b *namespaceBackend) Delete(ctx context.Context, keys ...string) error {
	return b.repo.Delete(ctx, b.namespace, keys...)
}

var _ session.Provider = (*SQLiteRepository)(nil)
