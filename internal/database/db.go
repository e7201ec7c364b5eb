package database

import (
	"fmt"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"              // SQLite driver
)

// Entry is one namespaced value in durable client storage
type Entry struct {
	Namespace string `gorm:"primary_key;size:128"`
	Value     string `gorm:"type:text"`
	StoredAt  int64
}

// TableName keeps the table name stable across gorm pluralization rules
func (Entry) TableName() string {
	return "client_storage"
}

// Open connects to the durable client storage and migrates its schema
func Open(dialect, dsn string) (*gorm.DB, error) {
	switch dialect {
	case "sqlite3", "postgres":
	default:
		return nil, fmt.Errorf("unsupported database dialect: %s", dialect)
	}

	db, err := gorm.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the tables client storage needs
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Entry{}).Error; err != nil {
		return fmt.Errorf("failed to migrate client storage: %w", err)
	}
	return nil
}
