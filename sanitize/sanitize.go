// CLAUDE:SUMMARY Total, idempotent sanitizer: ten ordered tree passes enforcing the page contract (legacy runtime removal, URL canonicalization, asset dedupe, ordering, layout markers).
// Package sanitize rewrites a generated entry page so that it satisfies the
// page contract. Sanitize is total: it never fails, and an input it cannot
// parse or render is returned unchanged. Every pass is idempotent on its
// own, so sanitizing twice yields the same document as sanitizing once.
//
// Passes, in order:
//
//  1. drop <base> overrides
//  2. drop legacy runtime attributes and elements
//  3. drop deny-listed script sources
//  4. drop inline scripts carrying legacy runtime tokens
//  5. normalize protocol-relative and first-party URLs
//  6. exactly one canonical copy of each contract asset and required ID
//  7. override stylesheet after base stylesheet
//  8. fresh layout patch stylesheet
//  9. announcement banner from site config
//  10. layout host markers
package sanitize

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/entrypage/canon"
	"github.com/hazyhaar/entrypage/contract"
	"github.com/hazyhaar/entrypage/htmldoc"
)

type options struct {
	contract contract.Contract
}

// Option customises Sanitize.
type Option func(*options)

// WithContract overrides the default contract table.
func WithContract(c contract.Contract) Option {
	return func(o *options) { o.contract = c }
}

// Sanitize applies every pass to src and returns the rendered document.
func Sanitize(src string, opts ...Option) string {
	o := options{contract: contract.Table}
	for _, fn := range opts {
		fn(&o)
	}
	doc, err := htmldoc.Parse(src)
	if err != nil {
		return src
	}
	Doc(doc, o.contract)
	out, err := htmldoc.Render(doc)
	if err != nil {
		return src
	}
	return out
}

// Doc applies every pass to a parsed document in place.
func Doc(doc *html.Node, c contract.Contract) {
	removeBase(doc)
	removeLegacyMarkup(doc, c)
	removeForbiddenScripts(doc, c)
	removeLegacyInlineScripts(doc, c)
	normalizeURLs(doc, c)
	dedupeAssets(doc, c)
	dedupeRequiredIDs(doc, c)
	orderStylesheets(doc, c)
	refreshLayoutPatch(doc)
	insertBanner(doc)
	markLayoutHosts(doc)
}

func elements(doc *html.Node) []*html.Node {
	return htmldoc.FindAll(doc, func(n *html.Node) bool { return n.Type == html.ElementNode })
}

func protected(n *html.Node, c contract.Contract) bool {
	return c.IsProtectedID(htmldoc.Attr(n, "id"))
}

// structural elements lose attributes, never their place in the tree.
func structural(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Html, atom.Head, atom.Body:
		return true
	}
	return false
}

func removeBase(doc *html.Node) {
	for _, n := range htmldoc.Elements(doc, atom.Base) {
		htmldoc.Remove(n)
	}
}

func removeLegacyMarkup(doc *html.Node, c contract.Contract) {
	for _, n := range elements(doc) {
		if n.Parent == nil || protected(n, c) {
			continue
		}
		marked := false
		for _, a := range n.Attr {
			if c.HasLegacyValueMarker(a.Val) {
				marked = true
				break
			}
		}
		if marked && !structural(n) {
			htmldoc.Remove(n)
			continue
		}
		htmldoc.RemoveAttrFunc(n, func(a html.Attribute) bool {
			return c.IsLegacyAttrName(a.Key) || (marked && c.HasLegacyValueMarker(a.Val))
		})
	}
}

func removeForbiddenScripts(doc *html.Node, c contract.Contract) {
	for _, s := range htmldoc.Elements(doc, atom.Script) {
		if protected(s, c) || !htmldoc.HasAttr(s, "src") {
			continue
		}
		if c.IsForbiddenScriptSrc(htmldoc.Attr(s, "src")) {
			htmldoc.Remove(s)
		}
	}
}

func removeLegacyInlineScripts(doc *html.Node, c contract.Contract) {
	for _, s := range htmldoc.Elements(doc, atom.Script) {
		if protected(s, c) || htmldoc.HasAttr(s, "src") || !htmldoc.IsExecutableScript(s) {
			continue
		}
		if _, found := c.LegacyInlineToken(htmldoc.Text(s)); found {
			htmldoc.Remove(s)
		}
	}
}

// normalizeURLs upgrades protocol-relative references to https, moves
// first-party absolute URLs onto the canonical origin and canonicalizes
// locally-rooted static asset paths.
func normalizeURLs(doc *html.Node, c contract.Contract) {
	for _, n := range elements(doc) {
		for i, a := range n.Attr {
			if a.Namespace != "" || (a.Key != "src" && a.Key != "href") {
				continue
			}
			n.Attr[i].Val = NormalizeURL(a.Val, c)
		}
	}
}

// NormalizeURL is the single-value form of pass 5.
func NormalizeURL(raw string, c contract.Contract) string {
	v := strings.TrimSpace(raw)
	if strings.HasPrefix(v, "//") {
		v = "https:" + v
	}
	if out, ok := canon.CanonicalizeURL(v, c.Origin, c); ok {
		return out
	}
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || !c.IsFirstPartyHost(u.Hostname()) {
		if v != strings.TrimSpace(raw) {
			return v
		}
		return raw
	}
	out := c.Origin + u.EscapedPath()
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		out += "#" + u.EscapedFragment()
	}
	return out
}
