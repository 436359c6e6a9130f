package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned by GetCacheRecord when the key was never stored.
var ErrNotFound = errors.New("cache record not found")

// UpsertCacheRecord writes record, replacing any row with the same key.
func (p *PostgresClient) UpsertCacheRecord(ctx context.Context, record *CacheRecord) error {
	return p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "stored_at", "ttl", "updated_at"}),
	}).Create(record).Error
}

func (p *PostgresClient) GetCacheRecord(ctx context.Context, key string) (*CacheRecord, error) {
	var record CacheRecord
	err := p.DB.WithContext(ctx).
		Where("key = ?", key).
		First(&record).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (p *PostgresClient) DeleteCacheRecord(ctx context.Context, key string) error {
	return p.DB.WithContext(ctx).
		Where("key = ?", key).
		Delete(&CacheRecord{}).Error
}
