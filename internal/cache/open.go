package cache

import (
	"fmt"

	"pricetracker/config"
	"pricetracker/pkg/storage/postgres"
	"pricetracker/pkg/storage/sqlite"
)

// Open builds the backend named in cfg.Cache.Backend.
func Open(cfg *config.Config) (*Store, error) {
	switch cfg.Cache.Backend {
	case "", "memory":
		return NewStore(NewMemory()), nil
	case "sqlite":
		s, err := sqlite.Open(cfg.Cache.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite cache: %w", err)
		}
		return NewStore(SQLite{S: s}), nil
	case "postgres":
		c, err := postgres.InitializeAndMigrateCacheRecord(cfg.Postgres, cfg.Log.Environment, cfg.Cache.CreateDB)
		if err != nil {
			return nil, fmt.Errorf("open postgres cache: %w", err)
		}
		return NewStore(Postgres{C: c}), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
