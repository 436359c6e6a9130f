// Package sqlite keeps cache records in a local SQLite file so the last good
// values survive a restart without a database server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Register sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("cache record not found")

type Record struct {
	Key      string
	Value    []byte
	StoredAt time.Time
	TTL      time.Duration
}

type Store struct{ db *sql.DB }

// Open opens (creating if needed) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// a single writer avoids SQLITE_BUSY between refresh goroutines
	db.SetMaxOpenConns(1)

	if err := InitSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS cache_record(
		key TEXT PRIMARY KEY, value BLOB NOT NULL, stored_at INTEGER NOT NULL, ttl_ms INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("init sqlite schema: %w", err)
	}
	return nil
}

func (s *Store) Put(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO cache_record(key,value,stored_at,ttl_ms) VALUES(?,?,?,?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, stored_at=excluded.stored_at, ttl_ms=excluded.ttl_ms`,
		r.Key, r.Value, r.StoredAt.UnixMilli(), r.TTL.Milliseconds())
	return err
}

func (s *Store) Get(ctx context.Context, key string) (Record, error) {
	var (
		r        = Record{Key: key}
		storedAt int64
		ttl      int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT value, stored_at, ttl_ms FROM cache_record WHERE key=?`, key).
		Scan(&r.Value, &storedAt, &ttl)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	r.StoredAt = time.UnixMilli(storedAt).UTC()
	r.TTL = time.Duration(ttl) * time.Millisecond
	return r, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_record WHERE key=?`, key)
	return err
}

func (s *Store) Close() error { return s.db.Close() }
