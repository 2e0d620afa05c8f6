package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS session_kv (
	namespace TEXT NOT NULL,
	key       TEXT NOT NULL,
	value     TEXT NOT NULL,
	PRIMARY KEY (namespace, key)
)`

// SQLite is a [Store] persisted in a SQLite database. Rows live in the
// session_kv table keyed by (namespace, key).
type SQLite struct {
	db        *sql.DB
	namespace string
	owned     bool
}

// OpenSQLite opens (or creates) the database file at path and returns a store
// scoped to namespace. The returned store owns the connection; call Close when
// done.
func OpenSQLite(ctx context.Context, path, namespace string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite path required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	// SQLite allows one writer; a single connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}

	s, err := NewSQLite(ctx, db, namespace)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewSQLite wraps an existing database handle. The schema is created if
// missing. The caller keeps ownership of db.
func NewSQLite(ctx context.Context, db *sql.DB, namespace string) (*SQLite, error) {
	if db == nil {
		return nil, errors.New("sqlite db required")
	}
	ns, err := normalizeNamespace(namespace)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return &SQLite{db: db, namespace: ns}, nil
}

// Read implements [Store].
func (s *SQLite) Read(ctx context.Context, kind Kind) (string, bool, error) {
	if !kind.Valid() {
		return "", false, ErrInvalidKind
	}
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM session_kv WHERE namespace = ? AND key = ?`,
		s.namespace, string(kind),
	).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return v, true, nil
}

// Write implements [Store].
func (s *SQLite) Write(ctx context.Context, kind Kind, value string) error {
	if !kind.Valid() {
		return ErrInvalidKind
	}
	if err := upsert(ctx, s.db, s.namespace, kind, value); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// WritePair implements [PairWriter] inside one transaction.
func (s *SQLite) WritePair(ctx context.Context, access, refresh string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := upsert(ctx, tx, s.namespace, AccessToken, access); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := upsert(ctx, tx, s.namespace, RefreshToken, refresh); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Clear implements [Store].
func (s *SQLite) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_kv WHERE namespace = ?`, s.namespace); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Close releases the database handle if it was opened by [OpenSQLite].
func (s *SQLite) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, namespace string, kind Kind, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO session_kv (namespace, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value`,
		namespace, string(kind), value,
	)
	return err
}
