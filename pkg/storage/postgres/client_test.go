package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"pricetracker/pkg/storage/postgres"
)

// testClient connects to POSTGRES_TEST_DSN or skips.
func testClient(t *testing.T) *postgres.PostgresClient {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	client, err := postgres.NewClient(dsn)
	if err != nil {
		t.Fatalf("failed to create Postgres client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if err := client.AutoMigrateCacheRecord(); err != nil {
		t.Fatalf("auto migration failed: %v", err)
	}
	return client
}

// go test -v --run ^TestPostgresInvalidDSN$
func TestPostgresInvalidDSN(t *testing.T) {
	invalidDSN := "host=invalid port=5432 user=fail password=fail dbname=fail sslmode=disable connect_timeout=1"

	_, err := postgres.NewClient(invalidDSN)
	if err == nil {
		t.Fatal("expected error for invalid DSN, got nil")
	}
}

// go test -v --run ^TestPostgresHealthy$
func TestPostgresHealthy(t *testing.T) {
	client := testClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if !client.IsHealthy(ctx) {
		t.Fatal("expected healthy DB connection")
	}
}

// go test -v --run TestCacheRecordCRUD
func TestCacheRecordCRUD(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	key := "test-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { _ = client.DeleteCacheRecord(ctx, key) })

	stored := time.Now().UTC().Truncate(time.Millisecond)
	if err := client.UpsertCacheRecord(ctx, &postgres.CacheRecord{
		Key: key, Value: []byte(`{"price":1}`), StoredAt: stored, TTL: time.Minute,
	}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	// Overwrite
	if err := client.UpsertCacheRecord(ctx, &postgres.CacheRecord{
		Key: key, Value: []byte(`{"price":2}`), StoredAt: stored.Add(time.Second), TTL: time.Minute,
	}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := client.GetCacheRecord(ctx, key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got.Value) != `{"price":2}` || !got.StoredAt.Equal(stored.Add(time.Second)) || got.TTL != time.Minute {
		t.Errorf("unexpected record: %+v", got)
	}

	if err := client.DeleteCacheRecord(ctx, key); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := client.GetCacheRecord(ctx, key); err != postgres.ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
