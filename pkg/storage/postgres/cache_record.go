package postgres

import "time"

// CacheRecord is one cached value. Key is unique; a refresh overwrites the row.
type CacheRecord struct {
	ID uint `gorm:"primaryKey"`

	Key string `gorm:"type:varchar(64);not null;uniqueIndex:idx_cache_key"`

	// JSON encoded payload
	Value []byte `gorm:"type:bytea;not null"`

	StoredAt time.Time     `gorm:"not null"`
	TTL      time.Duration `gorm:"not null"` // nanoseconds

	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName overrides the default table name for GORM.
func (CacheRecord) TableName() string {
	return "cache_record"
}
