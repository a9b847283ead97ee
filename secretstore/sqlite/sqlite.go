// Package sqlite provides a SQLite-backed secret store using the pure Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmcleod/pinvault/secretstore"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS secrets (
	namespace  TEXT    NOT NULL,
	key        TEXT    NOT NULL,
	value      BLOB    NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (namespace, key)
);`

// Store implements secretstore.Store on a SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ secretstore.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema. Use
// ":memory:" for a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Set(ctx context.Context, namespace, key string, value []byte) error {
	if err := secretstore.ValidateName(namespace, key); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return secretstore.NewStoreError("set", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM secrets WHERE namespace = ? AND key = ?`, namespace, key); err != nil {
		return secretstore.NewStoreError("set", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO secrets (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)`,
		namespace, key, value, s.now().UTC().Unix(),
	); err != nil {
		return secretstore.NewStoreError("set", err)
	}
	if err := tx.Commit(); err != nil {
		return secretstore.NewStoreError("set", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM secrets WHERE namespace = ? AND key = ?`, namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, secretstore.NewStoreError("get", err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, true, nil
}

func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM secrets WHERE namespace = ? AND key = ?`, namespace, key); err != nil {
		return secretstore.NewStoreError("delete", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, namespace, key string, value []byte) error {
	if err := secretstore.ValidateName(namespace, key); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO secrets (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (namespace, key) DO NOTHING`,
		namespace, key, value, s.now().UTC().Unix(),
	)
	if err != nil {
		return secretstore.NewStoreError("create", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return secretstore.NewStoreError("create", err)
	}
	if n == 0 {
		return secretstore.ErrExists
	}
	return nil
}
