// internal/storage/factory.go
package storage

import (
	"fmt"

	"github.com/minesight/tilecore/internal/config"
	"github.com/minesight/tilecore/internal/database"
	gormstorage "github.com/minesight/tilecore/internal/storage/gorm"
	"github.com/minesight/tilecore/internal/storage/memory"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Opened is a KV backend plus the database behind it, if any. DB is nil for
// the memory backend.
type Opened struct {
	KV KV
	DB *gorm.DB
}

// Open creates a KV backend based on configuration.
func Open(cfg config.StorageConfig, log zerolog.Logger) (*Opened, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Type {
	case "memory", "":
		return &Opened{KV: memory.New()}, nil
	case "sqlite":
		db, err = database.GetSqliteDB(cfg.SqlitePath)
	case "postgres":
		db, err = database.GetPostgresDB()
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Type, err)
	}

	database.Describe(db, log)
	kv, err := gormstorage.New(db, log)
	if err != nil {
		return nil, err
	}
	return &Opened{KV: kv, DB: db}, nil
}
