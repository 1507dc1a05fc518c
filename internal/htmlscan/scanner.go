// Package htmlscan extracts local stylesheet and script references from
// HTML documents so a registry can be seeded from an existing page.
package htmlscan

import (
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/lejeunerenard/file-assets/internal/errors"
)

// Reference is a local asset reference extracted from HTML content.
type Reference struct {
	URL       string // The path as written in the document
	Tag       string // HTML tag (link, script)
	Attribute string // Attribute containing the path (href, src)
	Media     string // media attribute for stylesheet links, if any
}

// ExtractRefs extracts local asset references from an HTML file.
// Absolute and protocol-relative URLs are skipped; no network fetch happens.
func ExtractRefs(htmlPath string) ([]*Reference, error) {
	file, err := os.Open(filepath.Clean(htmlPath))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to open HTML file").
			WithContext("html_path", htmlPath)
	}
	defer func() {
		_ = file.Close() // Ignore close errors on read-only operation
	}()

	return ExtractRefsFromReader(file)
}

// ExtractRefsFromReader extracts local asset references from an HTML reader.
func ExtractRefsFromReader(r io.Reader) ([]*Reference, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "failed to parse HTML")
	}

	var refs []*Reference

	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode {
			extractElementRefs(n, &refs)
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}

	extract(doc)
	return refs, nil
}

// extractElementRefs collects references from a single HTML element.
func extractElementRefs(n *html.Node, refs *[]*Reference) {
	switch n.Data {
	case "link":
		rel := getAttr(n, "rel")
		if !strings.Contains(strings.ToLower(rel), "stylesheet") {
			return
		}
		if href := getAttr(n, "href"); isLocalRef(href) {
			*refs = append(*refs, &Reference{
				URL:       href,
				Tag:       "link",
				Attribute: "href",
				Media:     getAttr(n, "media"),
			})
		}
	case "script":
		if src := getAttr(n, "src"); isLocalRef(src) {
			*refs = append(*refs, &Reference{
				URL:       src,
				Tag:       "script",
				Attribute: "src",
			})
		}
	}
}

// LocalPath resolves the reference to a filesystem path. Root-relative
// references resolve against webRoot, everything else against pageDir.
// Query strings and fragments are dropped.
func (r *Reference) LocalPath(pageDir, webRoot string) string {
	u, err := url.Parse(r.URL)
	if err != nil || u.Path == "" {
		return ""
	}

	if strings.HasPrefix(u.Path, "/") {
		return filepath.Join(webRoot, filepath.FromSlash(u.Path))
	}
	return filepath.Join(pageDir, filepath.FromSlash(u.Path))
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// isLocalRef reports whether a reference points at a local file rather
// than an external resource.
func isLocalRef(ref string) bool {
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "//") {
		return false
	}
	if strings.HasPrefix(ref, "data:") ||
		strings.HasPrefix(ref, "mailto:") ||
		strings.HasPrefix(ref, "javascript:") {
		return false
	}

	u, err := url.Parse(ref)
	if err != nil {
		return false
	}

	return u.Scheme == "" && u.Host == ""
}
