package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"webbank/apperr"
	"webbank/models"
)

// Layout names the directories the archiver writes to.
type Layout struct {
	TempRoot    string // parent of the per-save capture directories
	StorageRoot string // permanent per-domain tree
	UploadsDir  string // user uploads
}

// Manager owns every filesystem operation of the capture pipeline.
type Manager struct {
	layout Layout
	log    *zap.Logger
}

// NewManager normalizes the layout to absolute paths.
func NewManager(layout Layout, log *zap.Logger) (*Manager, error) {
	if layout.TempRoot == "" || layout.StorageRoot == "" {
		return nil, errors.New("storage: temp root and storage root are required")
	}
	if layout.UploadsDir == "" {
		layout.UploadsDir = filepath.Join(layout.StorageRoot, "uploads")
	}
	for _, p := range []*string{&layout.TempRoot, &layout.StorageRoot, &layout.UploadsDir} {
		abs, err := filepath.Abs(*p)
		if err != nil {
			return nil, fmt.Errorf("storage: resolve %q: %w", *p, err)
		}
		*p = abs
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{layout: layout, log: log}, nil
}

// Layout returns the absolute directory layout.
func (m *Manager) Layout() Layout {
	return m.layout
}

// EnsureStorageDirs creates the necessary storage directories if they don't exist.
func (m *Manager) EnsureStorageDirs() error {
	dirs := []string{m.layout.TempRoot, m.layout.StorageRoot, m.layout.UploadsDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory '%s': %w", dir, err)
		}
	}
	return nil
}

// NewCaptureDir creates a fresh directory under the temp root for a single
// mirror run.
func (m *Manager) NewCaptureDir() (string, error) {
	dir := filepath.Join(m.layout.TempRoot, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create capture directory '%s': %w", dir, err)
	}
	return dir, nil
}

// ConstructPaths builds the initial capture paths for info captured into
// captureDir. SourcePath starts at the domain directory inside captureDir
// until the locator narrows it. A domain whose storage directory would land
// inside the uploads directory is rejected.
func (m *Manager) ConstructPaths(captureDir string, info models.URLInfo) (models.CapturePaths, error) {
	temp := filepath.Join(captureDir, info.Domain)
	paths := models.CapturePaths{
		TempPath:        temp,
		SourcePath:      temp,
		DestinationPath: filepath.Join(m.layout.StorageRoot, info.Domain, StoredFilename(info.Filename)),
		DownloadedRoot:  m.layout.StorageRoot,
	}
	if Within(m.layout.UploadsDir, paths.DestinationPath) {
		return paths, apperr.New(apperr.InvalidInput, "storage.ConstructPaths",
			fmt.Sprintf("domain %q collides with the uploads directory", info.Domain))
	}
	return paths, nil
}

// Within reports whether path lies strictly inside root.
func Within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// StoredFilename maps a URL filename onto the name used in the storage root.
// Binary files and .html/.htm keep their names; anything else is a rendered
// page and gets an .html extension.
func StoredFilename(name string) string {
	if name == "" {
		return "index.html"
	}
	if IsHTMLName(name) || IsBinaryName(name) {
		return name
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".html"
}

// Remove deletes a stored artifact.
func (m *Manager) Remove(path string) error {
	if path == "" {
		return errors.New("storage: empty path")
	}
	return os.Remove(filepath.Clean(path))
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}

// CheckWritable creates and removes a scratch file in every layout directory.
func (m *Manager) CheckWritable() error {
	for _, dir := range []string{m.layout.TempRoot, m.layout.StorageRoot, m.layout.UploadsDir} {
		f, err := os.CreateTemp(dir, ".writecheck-*")
		if err != nil {
			return fmt.Errorf("directory '%s' is not writable: %w", dir, err)
		}
		name := f.Name()
		f.Close()
		if err := os.Remove(name); err != nil {
			return fmt.Errorf("failed to remove scratch file '%s': %w", name, err)
		}
	}
	return nil
}
