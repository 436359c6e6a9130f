// Package cache is the time-bounded key-value store consulted before any
// provider is called. Values are JSON encoded so every backend stores the
// same bytes.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned when a key has never been stored.
var ErrMiss = errors.New("cache miss")

// Record is the backend representation of an entry.
type Record struct {
	Key      string
	Value    []byte
	StoredAt time.Time
	TTL      time.Duration
}

// Backend persists records. Put replaces any record with the same key;
// Delete of an absent key is not an error.
type Backend interface {
	Get(ctx context.Context, key string) (Record, error)
	Put(ctx context.Context, r Record) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Entry is a decoded cache value.
type Entry[T any] struct {
	Value    T
	StoredAt time.Time
	TTL      time.Duration
}

// Fresh reports whether the entry is still valid at now. An entry whose age
// equals its TTL has expired.
func (e Entry[T]) Fresh(now time.Time) bool {
	return now.Sub(e.StoredAt) < e.TTL
}

// Store adds typed access and a clock on top of a Backend.
type Store struct {
	backend Backend
	now     func() time.Time
}

func NewStore(b Backend) *Store {
	return &Store{backend: b, now: time.Now}
}

// WithClock replaces the store's time source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Now() time.Time { return s.now() }

func (s *Store) Close() error { return s.backend.Close() }

// Delete drops key so the next load misses.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Load returns the entry stored under key, fresh or not. ErrMiss means
// nothing was stored.
func Load[T any](ctx context.Context, s *Store, key string) (Entry[T], error) {
	rec, err := s.backend.Get(ctx, key)
	if err != nil {
		return Entry[T]{}, err
	}
	var v T
	if err := json.Unmarshal(rec.Value, &v); err != nil {
		return Entry[T]{}, fmt.Errorf("decode cache entry %q: %w", key, err)
	}
	return Entry[T]{Value: v, StoredAt: rec.StoredAt, TTL: rec.TTL}, nil
}

// LoadFresh is Load that also treats an expired entry as a miss.
func LoadFresh[T any](ctx context.Context, s *Store, key string) (Entry[T], bool, error) {
	e, err := Load[T](ctx, s, key)
	if errors.Is(err, ErrMiss) {
		return Entry[T]{}, false, nil
	}
	if err != nil {
		return Entry[T]{}, false, err
	}
	return e, e.Fresh(s.now()), nil
}

// Save overwrites key with v, stamped with the store's clock.
func Save[T any](ctx context.Context, s *Store, key string, v T, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry %q: %w", key, err)
	}
	return s.backend.Put(ctx, Record{Key: key, Value: raw, StoredAt: s.now(), TTL: ttl})
}
