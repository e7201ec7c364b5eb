package storage

import (
	"context"
	"fmt"
	"time"

	"bistro/internal/database"

	"github.com/jinzhu/gorm"
)

// DBStore is durable storage backed by a gorm table
type DBStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDBStore wraps an opened and migrated database
func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db, now: time.Now}
}

func (s *DBStore) Get(ctx context.Context, key string) (string, error) {
	var entry database.Entry
	err := s.db.Where("namespace = ?", key).First(&entry).Error
	if gorm.IsRecordNotFoundError(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return entry.Value, nil
}

func (s *DBStore) Set(ctx context.Context, key, value string) error {
	entry := database.Entry{Namespace: key, Value: value, StoredAt: s.now().Unix()}
	if err := s.db.Save(&entry).Error; err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *DBStore) Delete(ctx context.Context, key string) error {
	if err := s.db.Where("namespace = ?", key).Delete(&database.Entry{}).Error; err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
