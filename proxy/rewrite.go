// Package proxy rewrites relative links in archived HTML so sub-resources are
// fetched back through the saved-page endpoint.
package proxy

import (
	"bytes"
	"errors"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// Endpoint is the route archived pages are served from.
const Endpoint = "/api/saved-page"

// ProxyURL is the same-origin URL that serves the file at path.
func ProxyURL(path string) string {
	return Endpoint + "?path=" + url.QueryEscape(path)
}

// Rewrite returns content with every relative src/href attribute pointed at
// ProxyURL of the file it refers to, resolved against baseDir. Tags without
// such attributes are copied byte for byte.
func Rewrite(content []byte, baseDir string) ([]byte, error) {
	var out bytes.Buffer
	out.Grow(len(content) + len(content)/8)

	z := html.NewTokenizer(bytes.NewReader(content))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				return out.Bytes(), nil
			}
			return nil, z.Err()
		}

		raw := z.Raw()
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			out.Write(raw)
			continue
		}

		// Raw is only valid until the next call into the tokenizer.
		original := append([]byte(nil), raw...)
		tok := z.Token()
		if !rewriteAttrs(&tok, baseDir) {
			out.Write(original)
			continue
		}
		out.WriteString(tok.String())
	}
}

func rewriteAttrs(tok *html.Token, baseDir string) bool {
	changed := false
	for i := range tok.Attr {
		a := &tok.Attr[i]
		if a.Namespace != "" || (a.Key != "src" && a.Key != "href") {
			continue
		}
		if !IsRewritable(a.Val) {
			continue
		}
		a.Val = ProxyURL(Resolve(baseDir, a.Val))
		changed = true
	}
	return changed
}

// IsRewritable reports whether an attribute value is a relative reference
// into the archive. javascript:, data:, absolute and protocol-relative URLs
// and bare fragments are left alone.
func IsRewritable(val string) bool {
	v := strings.TrimSpace(val)
	if v == "" || strings.HasPrefix(v, "#") || strings.HasPrefix(v, "//") {
		return false
	}
	lower := strings.ToLower(v)
	for _, prefix := range []string{"javascript:", "data:", "http:", "https:", "mailto:", "tel:", "file:", "about:", "blob:"} {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return !strings.HasPrefix(v, Endpoint)
}

// Resolve joins a relative reference onto baseDir, dropping any query string
// or fragment and percent-decoding the path.
func Resolve(baseDir, ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	if unescaped, err := url.PathUnescape(ref); err == nil {
		ref = unescaped
	}
	return filepath.Join(baseDir, filepath.FromSlash(ref))
}
