package capture

import (
	"bytes"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// The mirror's own footer links back to its homepage; that is never the
// captured page.
var ignoredHosts = map[string]bool{
	"www.httrack.com": true,
	"httrack.com":     true,
}

var bareURL = regexp.MustCompile(`(?i)https?://[^\s"'<>)]+`)

// ExtractURL reads the stub at path and recovers the captured page's address.
func ExtractURL(path string) (string, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return ExtractURLFrom(content)
}

// ExtractURLFrom scans content for, in order: a meta refresh target, a base
// href, an anchor href and finally any bare http(s) URL.
func ExtractURLFrom(content []byte) (string, bool) {
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content)); err == nil {
		for _, find := range []func(*goquery.Document) []string{metaRefresh, baseHref, anchorHrefs} {
			for _, candidate := range find(doc) {
				if u, ok := accept(candidate); ok {
					return u, true
				}
			}
		}
	}
	for _, m := range bareURL.FindAll(content, -1) {
		if u, ok := accept(string(m)); ok {
			return u, true
		}
	}
	return "", false
}

func metaRefresh(doc *goquery.Document) []string {
	var out []string
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		equiv, _ := s.Attr("http-equiv")
		if !strings.EqualFold(strings.TrimSpace(equiv), "refresh") {
			return
		}
		content, _ := s.Attr("content")
		if u := refreshTarget(content); u != "" {
			out = append(out, u)
		}
	})
	return out
}

// refreshTarget extracts the URL from a refresh content such as "0; URL=...".
func refreshTarget(content string) string {
	i := strings.Index(strings.ToLower(content), "url=")
	if i < 0 {
		return ""
	}
	return strings.Trim(strings.TrimSpace(content[i+len("url="):]), `"'`)
}

func baseHref(doc *goquery.Document) []string {
	return attrs(doc.Find("base[href]"), "href")
}

func anchorHrefs(doc *goquery.Document) []string {
	return attrs(doc.Find("a[href]"), "href")
}

func attrs(sel *goquery.Selection, name string) []string {
	var out []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr(name); ok {
			out = append(out, strings.TrimSpace(v))
		}
	})
	return out
}

func accept(candidate string) (string, bool) {
	lower := strings.ToLower(candidate)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return "", false
	}
	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return "", false
	}
	if ignoredHosts[strings.ToLower(u.Hostname())] {
		return "", false
	}
	return candidate, true
}
