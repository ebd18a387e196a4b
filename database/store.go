// Package database owns the SQLite connection and the websites table.
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"webbank/apperr"
	"webbank/models"
)

// Store is the metadata store adapter. Every method is a point operation on
// the websites table.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore wraps an open connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// WithClock replaces the timestamp source; used by tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return apperr.Wrap(apperr.StoreFailed, "database.Ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return apperr.Wrap(apperr.StoreFailed, "database.Ping", err)
	}
	return nil
}

// Upsert records an archived page keyed by url. An existing row keeps its id
// and gets the new title, path and a fresh timestamp.
func (s *Store) Upsert(ctx context.Context, url, title, path string) (*models.ArchivedPage, error) {
	const op = "database.Upsert"

	var page models.ArchivedPage
	err := s.db.WithContext(ctx).Where("web_url = ?", url).First(&page).Error
	switch {
	case err == nil:
		page.Title = title
		page.FilePath = path
		page.Created = s.now()
		if err := s.db.WithContext(ctx).Model(&page).Updates(map[string]any{
			"title":     page.Title,
			"file_path": page.FilePath,
			"created":   page.Created,
		}).Error; err != nil {
			return nil, apperr.Wrapf(apperr.StoreFailed, op, err, "update %q", url)
		}
		return &page, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		page = models.ArchivedPage{URL: url, Title: title, FilePath: path, Created: s.now()}
		if err := s.db.WithContext(ctx).Create(&page).Error; err != nil {
			return nil, apperr.Wrapf(apperr.StoreFailed, op, err, "insert %q", url)
		}
		return &page, nil
	default:
		return nil, apperr.Wrapf(apperr.StoreFailed, op, err, "select %q", url)
	}
}

// FindByURL returns the row for url, or nil when none exists.
func (s *Store) FindByURL(ctx context.Context, url string) (*models.ArchivedPage, error) {
	var page models.ArchivedPage
	err := s.db.WithContext(ctx).Where("web_url = ?", url).First(&page).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreFailed, "database.FindByURL", err)
	}
	return &page, nil
}

// GetByID returns the row with id or a NotFound error.
func (s *Store) GetByID(ctx context.Context, id uint) (*models.ArchivedPage, error) {
	const op = "database.GetByID"

	var page models.ArchivedPage
	err := s.db.WithContext(ctx).First(&page, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.NotFound, op, fmt.Sprintf("website %d not found", id))
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreFailed, op, err)
	}
	return &page, nil
}

// ListAll returns every row, newest first.
func (s *Store) ListAll(ctx context.Context) ([]models.ArchivedPage, error) {
	var pages []models.ArchivedPage
	if err := s.db.WithContext(ctx).Order("created desc").Order("id desc").Find(&pages).Error; err != nil {
		return nil, apperr.Wrap(apperr.StoreFailed, "database.ListAll", err)
	}
	return pages, nil
}

// DeleteByID removes the row with id or returns a NotFound error.
func (s *Store) DeleteByID(ctx context.Context, id uint) error {
	const op = "database.DeleteByID"

	res := s.db.WithContext(ctx).Delete(&models.ArchivedPage{}, id)
	if res.Error != nil {
		return apperr.Wrap(apperr.StoreFailed, op, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.NotFound, op, fmt.Sprintf("website %d not found", id))
	}
	return nil
}

// RenameTitle sets a new title on the row with id and returns the updated row.
func (s *Store) RenameTitle(ctx context.Context, id uint, title string) (*models.ArchivedPage, error) {
	const op = "database.RenameTitle"

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.New(apperr.InvalidInput, op, "Title is required")
	}
	res := s.db.WithContext(ctx).Model(&models.ArchivedPage{}).Where("id = ?", id).Update("title", title)
	if res.Error != nil {
		return nil, apperr.Wrap(apperr.StoreFailed, op, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.New(apperr.NotFound, op, fmt.Sprintf("website %d not found", id))
	}
	return s.GetByID(ctx, id)
}
