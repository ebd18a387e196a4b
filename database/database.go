package database

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"webbank/models"
)

// Open connects to the SQLite database at path and auto-migrates the schema.
// The caller owns the returned handle and must Close the Store built on it.
func Open(path string, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory '%s': %w", dir, err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database at %s: %w", path, err)
	}
	log.Info("Database connection established", zap.String("path", path))

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("Database schema migrated")
	return db, nil
}

// Migrate creates or updates the websites table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.ArchivedPage{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database schema: %w", err)
	}
	return nil
}
