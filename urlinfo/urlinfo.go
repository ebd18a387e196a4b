// Package urlinfo splits a raw link into the domain, filename and relative
// path used to lay out captures on disk.
package urlinfo

import (
	"path"
	"strings"

	"webbank/apperr"
	"webbank/models"
)

// DefaultFilename is used when a link has no path or ends in a slash.
const DefaultFilename = "index.html"

var schemes = []string{"https://", "http://"}

// ParseDirect parses a link that is known to reference a literal resource,
// such as a PDF. The stored URL keeps any query string the user typed.
func ParseDirect(link string) (models.URLInfo, error) {
	trimmed := strings.TrimSpace(link)
	if trimmed == "" {
		return models.URLInfo{}, apperr.New(apperr.InvalidInput, "urlinfo.ParseDirect", "Link is required")
	}
	return parse("urlinfo.ParseDirect", StripScheme(trimmed))
}

// ParseWebpage parses the address recovered from the mirror's redirect stub.
// Query strings and fragments are dropped since the mirror files the page
// without them.
func ParseWebpage(rawURL string) (models.URLInfo, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return models.URLInfo{}, apperr.New(apperr.InvalidInput, "urlinfo.ParseWebpage", "URL is required")
	}
	return parse("urlinfo.ParseWebpage", stripQuery(StripScheme(trimmed)))
}

// StripScheme removes a leading http:// or https:// (any case).
func StripScheme(link string) string {
	lower := strings.ToLower(link)
	for _, s := range schemes {
		if strings.HasPrefix(lower, s) {
			return link[len(s):]
		}
	}
	return link
}

// Segments returns the non-empty slash-separated parts of a scheme-less link,
// ignoring any query string or fragment.
func Segments(link string) []string {
	var out []string
	for _, p := range strings.Split(stripQuery(link), "/") {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parse(op, u string) (models.URLInfo, error) {
	rel := stripQuery(u)
	parts := Segments(rel)
	if len(parts) == 0 {
		return models.URLInfo{}, apperr.New(apperr.InvalidInput, op, "link has no host")
	}
	for _, p := range parts {
		if p == "." || p == ".." {
			return models.URLInfo{}, apperr.New(apperr.InvalidInput, op, "link contains a relative path segment")
		}
	}

	info := models.URLInfo{
		URL:          u,
		RelativePath: rel,
		Filename:     DefaultFilename,
	}
	info.Domain = parts[0]
	if len(parts) > 1 && !strings.HasSuffix(rel, "/") {
		info.Filename = parts[len(parts)-1]
	}
	info.IsPDF = strings.EqualFold(path.Ext(info.Filename), ".pdf")
	return info, nil
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}
