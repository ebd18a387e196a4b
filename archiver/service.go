// Package archiver composes capture, storage and the metadata store into the
// save, list, delete, rename and upload operations.
package archiver

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"webbank/apperr"
	"webbank/capture"
	"webbank/models"
	"webbank/storage"
)

// Capturer runs one capture of a link.
type Capturer interface {
	Capture(ctx context.Context, link, outputDir string) (capture.Result, error)
}

// Store is the metadata store contract the service depends on.
type Store interface {
	storage.URLLookup
	Upsert(ctx context.Context, url, title, path string) (*models.ArchivedPage, error)
	GetByID(ctx context.Context, id uint) (*models.ArchivedPage, error)
	ListAll(ctx context.Context) ([]models.ArchivedPage, error)
	DeleteByID(ctx context.Context, id uint) error
	RenameTitle(ctx context.Context, id uint, title string) (*models.ArchivedPage, error)
}

// Options tunes a Service.
type Options struct {
	TempKeep       string // capture directory entry the reaper keeps
	MaxUploadBytes int64
}

// Service is the archive orchestrator.
type Service struct {
	capturer Capturer
	files    *storage.Manager
	store    Store
	locks    *KeyedMutex
	opts     Options
	log      *zap.Logger
}

// New wires a Service. The store handle is owned by the caller.
func New(capturer Capturer, files *storage.Manager, store Store, opts Options, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 50 << 20
	}
	return &Service{
		capturer: capturer,
		files:    files,
		store:    store,
		locks:    NewKeyedMutex(),
		opts:     opts,
		log:      log,
	}
}

// List returns every record annotated with whether its artifact exists. A
// directory path is reported as the payload file inside it; the stored row is
// not changed.
func (s *Service) List(ctx context.Context) ([]models.PageListing, error) {
	pages, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.PageListing, 0, len(pages))
	for _, p := range pages {
		resolved, ok := storage.Probe(p.FilePath)
		listing := models.PageListing{ArchivedPage: p, Exists: ok}
		listing.FilePath = resolved
		out = append(out, listing)
	}
	return out, nil
}

// Delete removes the record with id and, independently, its artifact. Only a
// store failure fails the call.
func (s *Service) Delete(ctx context.Context, id uint) error {
	page, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.Go(func() error {
		return s.store.DeleteByID(ctx, id)
	})
	g.Go(func() error {
		s.removeArtifact(page)
		return nil
	})
	return g.Wait()
}

func (s *Service) removeArtifact(page *models.ArchivedPage) {
	path, ok := storage.Probe(page.FilePath)
	if !ok {
		s.log.Warn("Artifact already missing", zap.Uint("id", page.ID), zap.String("path", page.FilePath))
		return
	}
	if !s.owns(path) {
		s.log.Warn("Artifact outside storage roots, leaving it in place", zap.Uint("id", page.ID), zap.String("path", path))
		return
	}
	if err := s.files.Remove(path); err != nil {
		s.log.Warn("Could not remove artifact", zap.Uint("id", page.ID), zap.String("path", path), zap.Error(err))
		return
	}
	s.log.Info("Artifact removed", zap.Uint("id", page.ID), zap.String("path", path))
}

func (s *Service) owns(path string) bool {
	layout := s.files.Layout()
	return storage.Within(layout.StorageRoot, path) || storage.Within(layout.UploadsDir, path)
}

// RenameTitle sets a user-chosen title.
func (s *Service) RenameTitle(ctx context.Context, id uint, title string) (*models.ArchivedPage, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.New(apperr.InvalidInput, "archiver.RenameTitle", "Title is required")
	}
	return s.store.RenameTitle(ctx, id, title)
}

// Artifact resolves a path requested for serving. Anything outside the
// storage and upload roots is reported as missing.
func (s *Service) Artifact(path string) (string, bool) {
	resolved, ok := storage.Probe(path)
	if !ok || !s.owns(resolved) {
		return resolved, false
	}
	return resolved, true
}
