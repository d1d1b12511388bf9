// CLAUDE:SUMMARY Asset link canonicalizer: locally-rooted static asset src/href values become origin-absolute URLs.
// Package canon rewrites locally-rooted static asset references to absolute
// URLs on the canonical origin. Content links (entries, user listings),
// fragments, absolute URLs and non-HTTP schemes are never touched, and an
// already canonical document comes back unchanged.
package canon

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"slices"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/entrypage/contract"
	"github.com/hazyhaar/entrypage/htmldoc"
)

// ErrOrigin is returned when the origin base is not an absolute http(s) URL.
var ErrOrigin = errors.New("canon: origin must be an absolute http or https URL")

// URLAttrs are the attributes canonicalization looks at.
var URLAttrs = []string{"src", "href"}

// Canonicalize rewrites every static asset reference of a document to
// origin + cleaned path. Query strings and fragments are kept.
func Canonicalize(src, origin string) (string, error) {
	base, err := ParseOrigin(origin)
	if err != nil {
		return "", err
	}
	doc, err := htmldoc.Parse(src)
	if err != nil {
		return "", err
	}
	CanonicalizeDoc(doc, base, contract.Table)
	return htmldoc.Render(doc)
}

// ParseOrigin validates an origin base and strips its trailing slash.
func ParseOrigin(origin string) (string, error) {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrOrigin, origin)
	}
	return origin, nil
}

// CanonicalizeDoc is Canonicalize over a parsed document. It returns the
// number of rewritten attributes.
func CanonicalizeDoc(doc *html.Node, origin string, c contract.Contract) int {
	n := 0
	for _, el := range htmldoc.FindAll(doc, func(x *html.Node) bool { return x.Type == html.ElementNode }) {
		for i, a := range el.Attr {
			if a.Namespace != "" || !slices.Contains(URLAttrs, a.Key) {
				continue
			}
			if out, ok := CanonicalizeURL(a.Val, origin, c); ok && out != a.Val {
				el.Attr[i].Val = out
				n++
			}
		}
	}
	return n
}

// CanonicalizeURL returns the canonical form of a single reference. ok is
// false when raw is not a locally-rooted static asset path.
func CanonicalizeURL(raw, origin string, c contract.Contract) (string, bool) {
	p, rest, ok := localPath(strings.TrimSpace(raw))
	if !ok {
		return "", false
	}
	clean := path.Clean("/" + p)
	if !IsStaticPath(clean, c) {
		return "", false
	}
	return strings.TrimRight(origin, "/") + clean + rest, true
}

// localPath splits a locally-rooted reference into its path and the
// query/fragment suffix.
func localPath(raw string) (p, rest string, ok bool) {
	switch {
	case strings.HasPrefix(raw, "//"):
		return "", "", false
	case strings.HasPrefix(raw, "/"):
	case strings.HasPrefix(raw, "./"), strings.HasPrefix(raw, "../"):
	default:
		return "", "", false
	}
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return raw[:i], raw[i:], true
	}
	return raw, "", true
}

// IsStaticPath reports whether a cleaned, rooted path addresses a static
// asset rather than site content.
func IsStaticPath(p string, c contract.Contract) bool {
	first, _, _ := strings.Cut(strings.TrimPrefix(p, "/"), "/")
	if first == "" || slices.Contains(c.ContentPrefixes, first) {
		return false
	}
	if slices.Contains(c.StaticPrefixes, first) {
		return true
	}
	return slices.Contains(c.StaticExtensions, strings.ToLower(path.Ext(p)))
}
