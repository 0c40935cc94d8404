// Package sqlitestore persists router state in SQLite.
package sqlitestore

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"xdao.co/diamond/state"
	"xdao.co/diamond/state/sqlitestore/migrations"
)

func init() {
	state.MustRegister(state.Driver{
		Name:        "sqlite",
		Description: "SQLite file (modernc.org/sqlite, no cgo)",
		Usage:       state.UsageCLI | state.UsageDaemon,
		Open: func(dsn string) (state.Backend, func() error, error) {
			s, err := Open(dsn)
			if err != nil {
				return nil, nil, err
			}
			return s, s.Close, nil
		},
	})
}

// Store is a state.Backend over a single kv table. Each Apply runs in one
// SQL transaction.
type Store struct {
	db *sql.DB
}

var _ state.Backend = (*Store)(nil)

// Open opens (or creates) the database at path and applies migrations.
// The special path ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlitestore: path is required")
	}
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps ":memory:" a single database and serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) Get(key []byte) ([]byte, bool, error) {
	if s.db == nil {
		return nil, false, state.ErrClosed
	}
	var v []byte
	err := s.db.QueryRow(`SELECT v FROM kv WHERE k = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlitestore: get: %w", err)
	}
	if v == nil {
		v = []byte{}
	}
	return v, true, nil
}

// Iterate reads the whole matching range before calling fn, so fn may call
// back into the store.
func (s *Store) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	if s.db == nil {
		return state.ErrClosed
	}
	var (
		rows *sql.Rows
		err  error
	)
	lo := append([]byte{}, prefix...)
	if hi, ok := prefixEnd(prefix); ok {
		rows, err = s.db.Query(`SELECT k, v FROM kv WHERE k >= ? AND k < ? ORDER BY k`, lo, hi)
	} else {
		rows, err = s.db.Query(`SELECT k, v FROM kv WHERE k >= ? ORDER BY k`, lo)
	}
	if err != nil {
		return fmt.Errorf("sqlitestore: iterate: %w", err)
	}

	var batch []state.Write
	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			_ = rows.Close()
			return fmt.Errorf("sqlitestore: scan: %w", err)
		}
		if v == nil {
			v = []byte{}
		}
		batch = append(batch, state.Write{Key: k, Value: v})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("sqlitestore: iterate: %w", err)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, w := range batch {
		if err := fn(w.Key, w.Value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Apply(batch []state.Write) error {
	if s.db == nil {
		return state.ErrClosed
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlitestore: begin: %w", err)
	}
	for _, w := range batch {
		if w.Delete {
			_, err = tx.Exec(`DELETE FROM kv WHERE k = ?`, w.Key)
		} else {
			v := w.Value
			if v == nil {
				v = []byte{}
			}
			_, err = tx.Exec(`INSERT INTO kv (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`, w.Key, v)
		}
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlitestore: apply: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlitestore: commit: %w", err)
	}
	return nil
}

// prefixEnd returns the smallest key greater than every key with prefix p.
// ok is false when no such bound exists (empty or all-0xff prefix).
func prefixEnd(p []byte) ([]byte, bool) {
	end := append([]byte{}, p...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1], true
		}
	}
	return nil, false
}
