package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webbank/apperr"
	"webbank/models"
	"webbank/tests"
)

type lookupFunc func(ctx context.Context, url string) (*models.ArchivedPage, error)

func (f lookupFunc) FindByURL(ctx context.Context, url string) (*models.ArchivedPage, error) {
	return f(ctx, url)
}

func found(context.Context, string) (*models.ArchivedPage, error) {
	return &models.ArchivedPage{ID: 1}, nil
}

func notFound(context.Context, string) (*models.ArchivedPage, error) {
	return nil, nil
}

func TestResolveDestinationNoCollision(t *testing.T) {
	m, dirs := newTestManager(t)
	paths := models.CapturePaths{DestinationPath: filepath.Join(dirs.StorageRoot, "example.com", "a.html")}

	got, err := m.ResolveDestination(context.Background(), lookupFunc(found), paths, "example.com/a")
	require.NoError(t, err)
	assert.Equal(t, paths, got)
}

func TestResolveDestinationSuffixes(t *testing.T) {
	m, dirs := newTestManager(t)
	domainDir := filepath.Join(dirs.StorageRoot, "example.com")
	tests.WriteFile(t, filepath.Join(domainDir, "a.html"), "0")
	tests.WriteFile(t, filepath.Join(domainDir, "a1.html"), "1")
	tests.WriteFile(t, filepath.Join(domainDir, "a3.html"), "3")

	paths := models.CapturePaths{DestinationPath: filepath.Join(domainDir, "a.html")}
	got, err := m.ResolveDestination(context.Background(), lookupFunc(found), paths, "example.com/a")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(domainDir, "a2.html"), got.DestinationPath)
	assert.Equal(t, filepath.Join(domainDir, "a.html"), paths.DestinationPath, "input must not be mutated")
}

func TestResolveDestinationForeignFileWithoutRecord(t *testing.T) {
	m, dirs := newTestManager(t)
	domainDir := filepath.Join(dirs.StorageRoot, "example.com")
	tests.WriteFile(t, filepath.Join(domainDir, "report.pdf"), "other")

	paths := models.CapturePaths{DestinationPath: filepath.Join(domainDir, "report.pdf")}
	got, err := m.ResolveDestination(context.Background(), lookupFunc(notFound), paths, "example.com/x/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(domainDir, "report1.pdf"), got.DestinationPath)
}

func TestResolveDestinationStoreError(t *testing.T) {
	m, dirs := newTestManager(t)
	failing := lookupFunc(func(context.Context, string) (*models.ArchivedPage, error) {
		return nil, errors.New("db locked")
	})

	_, err := m.ResolveDestination(context.Background(), failing,
		models.CapturePaths{DestinationPath: filepath.Join(dirs.StorageRoot, "a.html")}, "a")
	assert.True(t, apperr.IsKind(err, apperr.StoreFailed))
}

func TestNextFreeNameIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	var names []string
	for i := 0; i < 4; i++ {
		name, _ := nextFreeName(dir, "page.html")
		tests.WriteFile(t, filepath.Join(dir, name), "x")
		names = append(names, name)
	}
	assert.Equal(t, []string{"page.html", "page1.html", "page2.html", "page3.html"}, names)
}
