package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// StoreUpload writes r into the uploads directory under a unique name built
// from originalName and returns the absolute path.
func (m *Manager) StoreUpload(originalName string, r io.Reader) (string, error) {
	if err := os.MkdirAll(m.layout.UploadsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create uploads dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s", uuid.NewString(), filepath.Base(originalName))
	dst := filepath.Join(m.layout.UploadsDir, name)

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create '%s': %w", dst, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("failed to write '%s': %w", dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to close '%s': %w", dst, err)
	}
	return dst, nil
}
