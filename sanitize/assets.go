package sanitize

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/entrypage/contract"
	"github.com/hazyhaar/entrypage/htmldoc"
)

// assetElements returns the elements referencing a, in document order.
func assetElements(doc *html.Node, a contract.Asset, c contract.Contract) []*html.Node {
	tag := atom.Script
	if a.Kind == contract.AssetStylesheet {
		tag = atom.Link
	}
	var out []*html.Node
	for _, n := range htmldoc.Elements(doc, tag) {
		if !htmldoc.HasAttr(n, a.Attr()) {
			continue
		}
		if got, ok := c.AssetForURL(htmldoc.Attr(n, a.Attr())); ok && got.Path == a.Path {
			out = append(out, n)
		}
	}
	return out
}

// required reports whether the document must carry a.
func required(doc *html.Node, a contract.Asset) bool {
	return a.RequiredWhen == "" || len(htmldoc.ElementsByID(doc, a.RequiredWhen)) > 0
}

// dedupeAssets keeps the first reference to each contract asset, rewritten
// to its canonical form, and deletes the rest. Required assets that are
// absent are appended to <head>.
func dedupeAssets(doc *html.Node, c contract.Contract) {
	head := htmldoc.Head(doc)
	for _, a := range c.Assets {
		found := assetElements(doc, a, c)
		if len(found) == 0 {
			if !required(doc, a) || head == nil {
				continue
			}
			n := newAssetElement(a)
			if a.Kind == contract.AssetStylesheet {
				insertStylesheet(head, n)
			} else {
				head.AppendChild(n)
			}
			found = []*html.Node{n}
		}
		for _, dup := range found[1:] {
			htmldoc.Remove(dup)
		}
		canonicalAsset(found[0], a, c)
	}
}

func newAssetElement(a contract.Asset) *html.Node {
	if a.Kind == contract.AssetStylesheet {
		return htmldoc.NewElement(atom.Link)
	}
	return htmldoc.NewElement(atom.Script)
}

// insertStylesheet places a missing stylesheet after the last stylesheet
// link already in <head>, or at the end of <head>.
func insertStylesheet(head, n *html.Node) {
	var last *html.Node
	for ch := head.FirstChild; ch != nil; ch = ch.NextSibling {
		if ch.Type == html.ElementNode && ch.DataAtom == atom.Link && isStylesheetLink(ch) {
			last = ch
		}
	}
	if last == nil {
		head.AppendChild(n)
		return
	}
	htmldoc.InsertAfter(last, n)
}

func isStylesheetLink(n *html.Node) bool {
	for _, r := range strings.Fields(strings.ToLower(htmldoc.Attr(n, "rel"))) {
		if r == "stylesheet" {
			return true
		}
	}
	return false
}

func canonicalAsset(n *html.Node, a contract.Asset, c contract.Contract) {
	htmldoc.SetAttr(n, a.Attr(), c.CanonicalURL(a))
	switch a.Kind {
	case contract.AssetScript:
		if !htmldoc.HasAttr(n, "defer") {
			htmldoc.SetAttr(n, "defer", "")
		}
	case contract.AssetStylesheet:
		if !isStylesheetLink(n) {
			htmldoc.SetAttr(n, "rel", "stylesheet")
		}
	}
}

// dedupeRequiredIDs leaves one element per required ID: the first script
// carrying it, or the first element when no script does. Other scripts are
// removed; other elements only lose the ID, so their content survives.
func dedupeRequiredIDs(doc *html.Node, c contract.Contract) {
	for _, id := range c.RequiredIDs {
		found := htmldoc.ElementsByID(doc, id)
		if len(found) < 2 {
			continue
		}
		keep := found[0]
		for _, n := range found {
			if n.DataAtom == atom.Script {
				keep = n
				break
			}
		}
		for _, n := range found {
			switch {
			case n == keep:
			case n.DataAtom == atom.Script && !htmldoc.Contains(keep, n):
				htmldoc.Remove(n)
			default:
				htmldoc.RemoveAttr(n, "id")
			}
		}
	}
}

// orderStylesheets moves the override stylesheet directly after the base
// stylesheet when it precedes it.
func orderStylesheets(doc *html.Node, c contract.Contract) {
	base := assetElements(doc, contract.BaseStylesheet, c)
	override := assetElements(doc, contract.OverrideStylesheet, c)
	if len(base) == 0 || len(override) == 0 {
		return
	}
	if Precedes(doc, override[0], base[0]) {
		htmldoc.Remove(override[0])
		htmldoc.InsertAfter(base[0], override[0])
	}
}

// Precedes reports whether a comes before b in document order.
func Precedes(doc, a, b *html.Node) bool {
	found := htmldoc.FindAll(doc, func(x *html.Node) bool { return x == a || x == b })
	return len(found) > 0 && found[0] == a
}

// refreshLayoutPatch replaces a managed layout patch with a fresh copy at
// the end of <head>.
func refreshLayoutPatch(doc *html.Node) {
	var found bool
	for _, n := range htmldoc.ElementsByID(doc, contract.IDLayoutPatch) {
		if n.DataAtom == atom.Style {
			found = true
			htmldoc.Remove(n)
		}
	}
	head := htmldoc.Head(doc)
	if !found || head == nil {
		return
	}
	style := htmldoc.NewElement(atom.Style, html.Attribute{Key: "id", Val: contract.IDLayoutPatch})
	htmldoc.SetText(style, contract.LayoutPatchCSS)
	head.AppendChild(style)
}
