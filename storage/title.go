package storage

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// ReadTitle returns the <title> of an HTML artifact. Binaries, unreadable
// files and pages without a title fall back to the file's base name.
func (m *Manager) ReadTitle(path string) string {
	fallback := FallbackTitle(path)
	if !IsHTMLName(path) {
		return fallback
	}

	f, err := os.Open(path)
	if err != nil {
		m.log.Warn("Could not read HTML title, using fallback", zap.String("path", path), zap.Error(err))
		return fallback
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		m.log.Warn("Could not parse HTML title, using fallback", zap.String("path", path), zap.Error(err))
		return fallback
	}
	title := strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
	if title == "" {
		return fallback
	}
	return title
}

// FallbackTitle is the base name of path without its extension.
func FallbackTitle(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
