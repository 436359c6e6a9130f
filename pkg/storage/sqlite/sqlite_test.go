package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	stored := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Put(ctx, Record{Key: "currentPrice", Value: []byte(`{"price":1}`), StoredAt: stored, TTL: 5 * time.Minute}))
	require.NoError(t, s.Put(ctx, Record{Key: "currentPrice", Value: []byte(`{"price":2}`), StoredAt: stored.Add(time.Minute), TTL: 5 * time.Minute}))

	got, err := s.Get(ctx, "currentPrice")
	require.NoError(t, err)
	assert.Equal(t, `{"price":2}`, string(got.Value))
	assert.Equal(t, stored.Add(time.Minute), got.StoredAt)
	assert.Equal(t, 5*time.Minute, got.TTL)
}

func TestGetMissingAndDelete(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	_, err = s.Get(ctx, "historicalData")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, Record{Key: "historicalData", Value: []byte(`[]`), StoredAt: time.Now(), TTL: time.Hour}))
	require.NoError(t, s.Delete(ctx, "historicalData"))
	_, err = s.Get(ctx, "historicalData")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, Record{Key: "k", Value: []byte(`1`), StoredAt: time.Now(), TTL: time.Hour}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "1", string(got.Value))
}
