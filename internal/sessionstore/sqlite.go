package sessionstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const sqliteFileName = "session.db"

// sessionEntry is one persisted session key
type sessionEntry struct {
	ID        string    `gorm:"primaryKey;type:varchar(26)"`
	Name      string    `gorm:"uniqueIndex;not null"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (sessionEntry) TableName() string {
	return "session_entries"
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (e *sessionEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	return nil
}

// SQLiteBackend stores session keys in a local SQLite database
type SQLiteBackend struct {
	db *gorm.DB
}

// NewSQLiteBackend opens (and migrates) the database at path, or the default
// location when path is empty. ":memory:" is accepted for tests.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	if path == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, sqliteFileName)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec("PRAGMA busy_timeout=5000").Error; err != nil {
		return nil, fmt.Errorf("failed to apply pragma: %w", err)
	}

	if err := db.AutoMigrate(&sessionEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate session table: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

func (s *SQLiteBackend) Get(key string) (string, error) {
	var entry sessionEntry
	if err := s.db.Where("name = ?", key).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to load %s: %w", key, err)
	}
	return entry.Value, nil
}

func (s *SQLiteBackend) Set(key, value string) error {
	entry := &sessionEntry{Name: key, Value: value}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(entry).Error
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteBackend) Delete(key string) error {
	if err := s.db.Where("name = ?", key).Delete(&sessionEntry{}).Error; err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteBackend) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
