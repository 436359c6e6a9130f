package cache

import (
	"context"
	"errors"

	"pricetracker/pkg/storage/postgres"
	"pricetracker/pkg/storage/sqlite"
)

// SQLite adapts the sqlite store to Backend.
type SQLite struct{ S *sqlite.Store }

func (b SQLite) Get(ctx context.Context, key string) (Record, error) {
	r, err := b.S.Get(ctx, key)
	if errors.Is(err, sqlite.ErrNotFound) {
		return Record{}, ErrMiss
	}
	if err != nil {
		return Record{}, err
	}
	return Record{Key: r.Key, Value: r.Value, StoredAt: r.StoredAt, TTL: r.TTL}, nil
}

func (b SQLite) Put(ctx context.Context, r Record) error {
	return b.S.Put(ctx, sqlite.Record{Key: r.Key, Value: r.Value, StoredAt: r.StoredAt, TTL: r.TTL})
}

func (b SQLite) Delete(ctx context.Context, key string) error { return b.S.Delete(ctx, key) }

func (b SQLite) Close() error { return b.S.Close() }

// Postgres adapts the gorm cache table to Backend.
type Postgres struct{ C *postgres.PostgresClient }

func (b Postgres) Get(ctx context.Context, key string) (Record, error) {
	r, err := b.C.GetCacheRecord(ctx, key)
	if errors.Is(err, postgres.ErrNotFound) {
		return Record{}, ErrMiss
	}
	if err != nil {
		return Record{}, err
	}
	return Record{Key: r.Key, Value: r.Value, StoredAt: r.StoredAt, TTL: r.TTL}, nil
}

func (b Postgres) Put(ctx context.Context, r Record) error {
	return b.C.UpsertCacheRecord(ctx, &postgres.CacheRecord{
		Key:      r.Key,
		Value:    r.Value,
		StoredAt: r.StoredAt.UTC(),
		TTL:      r.TTL,
	})
}

func (b Postgres) Delete(ctx context.Context, key string) error {
	return b.C.DeleteCacheRecord(ctx, key)
}

func (b Postgres) Close() error { return b.C.Close() }
