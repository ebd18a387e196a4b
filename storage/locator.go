package storage

import (
	"io/fs"
	"path/filepath"
	"strings"

	"webbank/urlinfo"
)

// Locate finds the captured payload for originalURL under baseDir. The
// mirror's layout is not predictable, so the rules are tried in order and the
// first existing file wins:
//
//  1. a binary last segment at its exact domain/path location
//  2. baseDir/<domain>/<path>/index.html
//  3. any .html under baseDir/<domain>, preferring one whose path contains
//     the last URL segment
//  4. baseDir/index.html
//
// Locate returns "" when nothing matches.
func Locate(baseDir, originalURL string) string {
	parts := safeSegments(urlinfo.Segments(urlinfo.StripScheme(originalURL)))
	if len(parts) > 0 {
		domainDir := filepath.Join(baseDir, parts[0])
		rest := parts[1:]
		last := parts[len(parts)-1]

		if p := locateExact(domainDir, rest); p != "" {
			return p
		}
		if p := locateIndex(domainDir, rest); p != "" {
			return p
		}
		if p := locateSearch(domainDir, rest, last); p != "" {
			return p
		}
	}
	return locateRootIndex(baseDir)
}

func locateExact(domainDir string, rest []string) string {
	if len(rest) == 0 || !IsBinaryName(rest[len(rest)-1]) {
		return ""
	}
	p := filepath.Join(append([]string{domainDir}, rest...)...)
	if isFile(p) {
		return p
	}
	return ""
}

func locateIndex(domainDir string, rest []string) string {
	p := filepath.Join(append(append([]string{domainDir}, rest...), "index.html")...)
	if isFile(p) {
		return p
	}
	return ""
}

func locateSearch(domainDir string, rest []string, last string) string {
	if !isDir(domainDir) {
		return ""
	}
	var first, preferred string
	_ = filepath.WalkDir(domainDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || !IsHTMLName(d.Name()) {
			return nil
		}
		if first == "" {
			first = p
		}
		rel, _ := filepath.Rel(domainDir, p)
		if len(rest) > 0 && strings.Contains(filepath.ToSlash(rel), last) {
			preferred = p
			return filepath.SkipAll
		}
		return nil
	})
	if preferred != "" {
		return preferred
	}
	return first
}

func locateRootIndex(baseDir string) string {
	p := filepath.Join(baseDir, "index.html")
	if isFile(p) {
		return p
	}
	return ""
}

// FindPayload returns the first .html, .htm or .pdf file under dir in lexical
// walk order, or "".
func FindPayload(dir string) string {
	var found string
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if IsHTMLName(d.Name()) || IsPDFName(d.Name()) {
			found = p
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

// Probe reports whether path exists. A directory resolves to the payload file
// inside it; the returned path is the resolved one.
func Probe(path string) (string, bool) {
	if path == "" {
		return path, false
	}
	clean := filepath.Clean(path)
	if isFile(clean) {
		return clean, true
	}
	if isDir(clean) {
		if p := FindPayload(clean); p != "" {
			return p, true
		}
	}
	return clean, false
}

func safeSegments(parts []string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		if p == "." || p == ".." {
			continue
		}
		out = append(out, p)
	}
	return out
}
