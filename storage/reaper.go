package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"webbank/metrics"
)

// Reap deletes every entry of the temp root except exclude and returns how
// many entries were removed. Failures are logged per entry and never stop
// the remaining deletions.
func (m *Manager) Reap(exclude string) int {
	return m.reapEntries(m.layout.TempRoot, exclude)
}

// ReapCapture empties one capture directory made by NewCaptureDir, keeping
// exclude, and removes the directory once nothing is left in it. Paths that
// are not a direct child of the temp root are left alone.
func (m *Manager) ReapCapture(dir, exclude string) int {
	dir = filepath.Clean(dir)
	if filepath.Dir(dir) != m.layout.TempRoot {
		m.log.Warn("Refusing to reap outside the temp root", zap.String("path", dir))
		return 0
	}
	removed := m.reapEntries(dir, exclude)
	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if err := os.Remove(dir); err != nil {
			m.log.Warn("Could not remove capture directory", zap.String("path", dir), zap.Error(err))
		}
	}
	return removed
}

func (m *Manager) reapEntries(root, exclude string) int {
	entries, err := os.ReadDir(root)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			m.log.Warn("Could not list temp directory", zap.String("path", root), zap.Error(err))
		}
		return 0
	}

	removed := 0
	for _, e := range entries {
		if exclude != "" && e.Name() == exclude {
			continue
		}
		p := filepath.Join(root, e.Name())
		if err := os.RemoveAll(p); err != nil {
			m.log.Warn("Could not remove temp entry", zap.String("path", p), zap.Error(err))
			metrics.ObserveReap("failed")
			continue
		}
		metrics.ObserveReap("removed")
		removed++
	}
	return removed
}
