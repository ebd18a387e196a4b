package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"webbank/apperr"
	"webbank/models"
)

// URLLookup is the slice of the metadata store the collision check needs.
type URLLookup interface {
	FindByURL(ctx context.Context, url string) (*models.ArchivedPage, error)
}

// ResolveDestination returns paths with a DestinationPath that is free on
// disk. Candidates are tried as name.ext, name1.ext, name2.ext, ... and the
// first one that does not exist wins; freed lower slots are never reused out
// of order because the search always starts from the unsuffixed name.
// DestinationPath is only rewritten when a collision was found.
func (m *Manager) ResolveDestination(ctx context.Context, lookup URLLookup, paths models.CapturePaths, url string) (models.CapturePaths, error) {
	existing, err := lookup.FindByURL(ctx, url)
	if err != nil {
		return paths, apperr.Wrapf(apperr.StoreFailed, "storage.ResolveDestination", err, "look up %q", url)
	}

	dir := filepath.Dir(paths.DestinationPath)
	base := filepath.Base(paths.DestinationPath)
	candidate, counter := nextFreeName(dir, base)
	if counter == 0 {
		return paths, nil
	}

	reason := "name taken by another archive"
	if existing != nil {
		reason = "url archived before"
	}
	resolved := filepath.Join(dir, candidate)
	m.log.Info("Destination collision resolved",
		zap.String("url", url),
		zap.String("reason", reason),
		zap.String("from", paths.DestinationPath),
		zap.String("to", resolved),
	)
	paths.DestinationPath = resolved
	return paths, nil
}

func nextFreeName(dir, base string) (string, int) {
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	candidate := base
	counter := 0
	for exists(filepath.Join(dir, candidate)) {
		counter++
		candidate = fmt.Sprintf("%s%d%s", name, counter, ext)
	}
	return candidate, counter
}
