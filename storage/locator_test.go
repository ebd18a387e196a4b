package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webbank/tests"
)

func TestLocateExactBinary(t *testing.T) {
	base := t.TempDir()
	pdf := tests.WriteFile(t, filepath.Join(base, "example.com", "docs", "report.pdf"), "%PDF")
	tests.WriteFile(t, filepath.Join(base, "example.com", "docs", "index.html"), "<html></html>")

	assert.Equal(t, pdf, Locate(base, "https://example.com/docs/report.pdf"))
}

func TestLocateIndexUnderPath(t *testing.T) {
	base := t.TempDir()
	want := tests.WriteFile(t, filepath.Join(base, "example.com", "a", "index.html"), "<title>A</title>")
	tests.WriteFile(t, filepath.Join(base, "example.com", "b.html"), "b")

	assert.Equal(t, want, Locate(base, "example.com/a"))
}

func TestLocateSearchPrefersLastSegment(t *testing.T) {
	base := t.TempDir()
	tests.WriteFile(t, filepath.Join(base, "example.com", "aaa.html"), "first in walk order")
	want := tests.WriteFile(t, filepath.Join(base, "example.com", "news", "story-2024.html"), "story")

	assert.Equal(t, want, Locate(base, "http://example.com/news/story-2024"))
}

func TestLocateSearchFallsBackToFirstHTML(t *testing.T) {
	base := t.TempDir()
	first := tests.WriteFile(t, filepath.Join(base, "example.com", "a", "one.html"), "1")
	tests.WriteFile(t, filepath.Join(base, "example.com", "b", "two.html"), "2")
	tests.WriteFile(t, filepath.Join(base, "example.com", "a", "style.css"), "css")

	assert.Equal(t, first, Locate(base, "example.com/unrelated"))
}

func TestLocateRootIndexWhenNoDomainTree(t *testing.T) {
	base := t.TempDir()
	want := tests.WriteFile(t, filepath.Join(base, "index.html"), "stub")

	assert.Equal(t, want, Locate(base, "example.com/a"))
}

func TestLocateMiss(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "example.com", "empty"), 0o755))

	assert.Equal(t, "", Locate(base, "example.com/a"))
	assert.Equal(t, "", Locate(filepath.Join(base, "missing"), "example.com"))
}

func TestLocateIgnoresTraversal(t *testing.T) {
	base := filepath.Join(t.TempDir(), "tmp")
	tests.WriteFile(t, filepath.Join(filepath.Dir(base), "secret.pdf"), "x")
	require.NoError(t, os.MkdirAll(base, 0o755))

	assert.Equal(t, "", Locate(base, "../secret.pdf"))
}

func TestFindPayload(t *testing.T) {
	dir := t.TempDir()
	tests.WriteFile(t, filepath.Join(dir, "a", "img.png"), "png")
	want := tests.WriteFile(t, filepath.Join(dir, "b", "doc.PDF"), "pdf")

	assert.Equal(t, want, FindPayload(dir))
	assert.Equal(t, "", FindPayload(filepath.Join(dir, "a")))
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()
	file := tests.WriteFile(t, filepath.Join(dir, "site", "page.html"), "p")

	got, ok := Probe(file)
	assert.True(t, ok)
	assert.Equal(t, file, got)

	got, ok = Probe(filepath.Join(dir, "site"))
	assert.True(t, ok)
	assert.Equal(t, file, got)

	missing := filepath.Join(dir, "gone.html")
	got, ok = Probe(missing)
	assert.False(t, ok)
	assert.Equal(t, missing, got)

	_, ok = Probe("")
	assert.False(t, ok)
}
