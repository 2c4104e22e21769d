// Package gormstorage implements storage.KV on a gorm database and archives
// finalized measurements with their geometry.
package gormstorage

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is one stored key.
type Entry struct {
	Key       string `gorm:"primaryKey;column:entry_key;size:255"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// TableName keeps the table name stable across struct renames.
func (Entry) TableName() string { return "kv_entries" }

// Backend stores keys in the kv_entries table.
type Backend struct {
	db  *gorm.DB
	log zerolog.Logger
}

// New migrates the kv table and returns a backend over db.
func New(db *gorm.DB, log zerolog.Logger) (*Backend, error) {
	if db == nil {
		return nil, errors.New("gorm storage requires a database")
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate kv schema: %w", err)
	}
	return &Backend{db: db, log: log}, nil
}

// DB exposes the connection for components sharing it.
func (b *Backend) DB() *gorm.DB { return b.db }

// Get returns the value stored under key.
func (b *Backend) Get(key string) (string, bool, error) {
	var e Entry
	err := b.db.Where("entry_key = ?", key).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return e.Value, true, nil
}

// Set upserts key.
func (b *Backend) Set(key, value string) error {
	e := Entry{Key: key, Value: value, UpdatedAt: time.Now()}
	err := b.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	b.log.Trace().Str("key", key).Int("bytes", len(value)).Msg("Stored value")
	return nil
}

// Remove deletes key.
func (b *Backend) Remove(key string) error {
	if err := b.db.Where("entry_key = ?", key).Delete(&Entry{}).Error; err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (b *Backend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	return sqlDB.Close()
}
