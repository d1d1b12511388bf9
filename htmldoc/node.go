// CLAUDE:SUMMARY Parse-once/render-once document helpers and node mutation primitives used by every pipeline stage.
// Package htmldoc wraps golang.org/x/net/html with the small set of tree
// operations the entry page pipeline needs: parse a whole document once,
// query it with simple selectors, mutate attributes and children, and render
// it once at the end.
package htmldoc

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Parse parses a full HTML document.
func Parse(src string) (*html.Node, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("htmldoc: parse: %w", err)
	}
	return doc, nil
}

// Render serialises a document or subtree.
func Render(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", fmt.Errorf("htmldoc: render: %w", err)
	}
	return buf.String(), nil
}

// RenderChildren serialises the children of n, without n itself.
func RenderChildren(n *html.Node) (string, error) {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", fmt.Errorf("htmldoc: render: %w", err)
		}
	}
	return buf.String(), nil
}

// ParseFragment parses markup in the context of parent.
func ParseFragment(parent *html.Node, markup string) ([]*html.Node, error) {
	ctx := parent
	if ctx == nil || ctx.Type != html.ElementNode {
		ctx = &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: parse fragment: %w", err)
	}
	return nodes, nil
}

// Attr returns the value of an attribute on a node.
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr checks if a node has a specific attribute.
func HasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return true
		}
	}
	return false
}

// SetAttr sets key to val, replacing the first existing occurrence in place
// and dropping any later duplicates.
func SetAttr(n *html.Node, key, val string) {
	found := false
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			if found {
				continue
			}
			a.Val = val
			found = true
		}
		out = append(out, a)
	}
	n.Attr = out
	if !found {
		n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	}
}

// RemoveAttr deletes every occurrence of key.
func RemoveAttr(n *html.Node, key string) {
	RemoveAttrFunc(n, func(a html.Attribute) bool { return a.Key == key })
}

// RemoveAttrFunc deletes the attributes for which drop returns true.
func RemoveAttrFunc(n *html.Node, drop func(html.Attribute) bool) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if !drop(a) {
			out = append(out, a)
		}
	}
	n.Attr = out
}

// HasClass reports whether the class attribute contains class.
func HasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(Attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// AddClass appends class to the class attribute if missing.
func AddClass(n *html.Node, class string) {
	if HasClass(n, class) {
		return
	}
	fields := strings.Fields(Attr(n, "class"))
	SetAttr(n, "class", strings.Join(append(fields, class), " "))
}

// Text returns the concatenated text of n's direct and nested text nodes.
// For script and style elements this is the raw body.
func Text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return sb.String()
}

// SetText replaces every child of n with a single text node.
func SetText(n *html.Node, text string) {
	RemoveChildren(n)
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// RemoveChildren detaches every child of n.
func RemoveChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// Remove detaches n from its parent. Detached nodes are ignored.
func Remove(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// InsertAfter inserts n as the next sibling of ref.
func InsertAfter(ref, n *html.Node) {
	if ref.NextSibling != nil {
		ref.Parent.InsertBefore(n, ref.NextSibling)
		return
	}
	ref.Parent.AppendChild(n)
}

// FindAll returns every node under root (root included) for which match
// returns true, in document order. The result is a snapshot, so callers may
// mutate the tree while iterating over it.
func FindAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

// Elements returns every element with the given tag under root.
func Elements(root *html.Node, tag atom.Atom) []*html.Node {
	return FindAll(root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == tag
	})
}

// ElementsByID returns every element whose id attribute equals id.
func ElementsByID(root *html.Node, id string) []*html.Node {
	return FindAll(root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && Attr(n, "id") == id
	})
}

// First returns the first element with the given tag, or nil.
func First(root *html.Node, tag atom.Atom) *html.Node {
	var found *html.Node
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == tag {
			found = n
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	if root != nil {
		walk(root)
	}
	return found
}

// Head returns the document's head element. html.Parse always synthesises one.
func Head(doc *html.Node) *html.Node { return First(doc, atom.Head) }

// Body returns the document's body element.
func Body(doc *html.Node) *html.Node { return First(doc, atom.Body) }

// NewElement builds a detached element with attributes in the given order.
func NewElement(tag atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag.String(),
		DataAtom: tag,
		Attr:     attrs,
	}
}

// Contains reports whether n is ancestor of (or equal to) d.
func Contains(n, d *html.Node) bool {
	for p := d; p != nil; p = p.Parent {
		if p == n {
			return true
		}
	}
	return false
}

// IsExecutableScript reports whether a script element runs as JavaScript.
// Data blocks (JSON, templates) are not executable.
func IsExecutableScript(n *html.Node) bool {
	if n.Type != html.ElementNode || n.DataAtom != atom.Script {
		return false
	}
	t := strings.ToLower(strings.TrimSpace(Attr(n, "type")))
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	switch t {
	case "", "module", "text/javascript", "application/javascript", "text/ecmascript",
		"application/ecmascript", "application/x-javascript", "text/jscript":
		return true
	}
	return false
}

// IsJSONScript reports whether n is a script element of type application/json.
func IsJSONScript(n *html.Node) bool {
	if n.Type != html.ElementNode || n.DataAtom != atom.Script {
		return false
	}
	t := strings.ToLower(strings.TrimSpace(Attr(n, "type")))
	return t == "application/json" || t == "application/ld+json"
}

// ScriptSafe escapes a JSON or JS body so it cannot terminate its script
// element early. "<\/" is a valid JSON escape for "</".
func ScriptSafe(body string) string {
	return strings.ReplaceAll(body, "</", `<\/`)
}
