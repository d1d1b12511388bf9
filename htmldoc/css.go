// CLAUDE:SUMMARY Simple CSS selector matching over parsed HTML trees (tag, .class, #id, [attr], [attr=val], descendant).
package htmldoc

import (
	"strings"

	"golang.org/x/net/html"
)

// QueryAll returns every element under root matching selector, in document
// order. Supported grammar is a deliberate subset of CSS:
//   - tag: "script", "div"
//   - .class: ".video-embed"
//   - #id: "#download-manifest"
//   - tag#id, tag.class: "script#sidebar-config", "div.video-embed"
//   - [attr], [attr=val]: "script[type=application/json]"
//   - combinations separated by space (descendant combinator)
func QueryAll(root *html.Node, selector string) []*html.Node {
	parts := strings.Fields(selector)
	if len(parts) == 0 || root == nil {
		return nil
	}

	matches := matchSimple(root, parts[0])
	for i := 1; i < len(parts); i++ {
		var next []*html.Node
		seen := make(map[*html.Node]bool)
		for _, parent := range matches {
			for _, n := range matchSimple(parent, parts[i]) {
				if n != parent && !seen[n] {
					seen[n] = true
					next = append(next, n)
				}
			}
		}
		matches = next
	}
	return matches
}

// Query returns the first element matching selector, or nil.
func Query(root *html.Node, selector string) *html.Node {
	all := QueryAll(root, selector)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// Matches reports whether n itself matches a single compound selector.
func Matches(n *html.Node, selector string) bool {
	return matchesSelector(n, parseSimpleSelector(selector))
}

func matchSimple(root *html.Node, sel string) []*html.Node {
	m := parseSimpleSelector(sel)
	var results []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if matchesSelector(n, m) {
			results = append(results, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return results
}

type simpleSelector struct {
	tag     string
	id      string
	classes []string
	attrs   []attrSelector
}

type attrSelector struct {
	key    string
	val    string
	hasVal bool
}

// parseSimpleSelector parses "tag#id.class[attr=val][attr2]".
func parseSimpleSelector(sel string) simpleSelector {
	var s simpleSelector

	for {
		idx := strings.IndexByte(sel, '[')
		if idx < 0 {
			break
		}
		var attrPart string
		if end := strings.IndexByte(sel[idx:], ']'); end >= 0 {
			attrPart = sel[idx+1 : idx+end]
			sel = sel[:idx] + sel[idx+end+1:]
		} else {
			attrPart = sel[idx+1:]
			sel = sel[:idx]
		}

		var a attrSelector
		if eq := strings.IndexByte(attrPart, '='); eq >= 0 {
			a.key = attrPart[:eq]
			a.val = strings.Trim(attrPart[eq+1:], `"'`)
			a.hasVal = true
		} else {
			a.key = attrPart
		}
		s.attrs = append(s.attrs, a)
	}

	if idx := strings.IndexByte(sel, '.'); idx >= 0 {
		for _, c := range strings.Split(sel[idx+1:], ".") {
			if c != "" {
				s.classes = append(s.classes, c)
			}
		}
		sel = sel[:idx]
	}

	if idx := strings.IndexByte(sel, '#'); idx >= 0 {
		s.id = sel[idx+1:]
		sel = sel[:idx]
	}

	s.tag = strings.ToLower(sel)
	return s
}

func matchesSelector(n *html.Node, s simpleSelector) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && s.tag != "*" && n.Data != s.tag {
		return false
	}
	if s.id != "" && Attr(n, "id") != s.id {
		return false
	}
	for _, c := range s.classes {
		if !HasClass(n, c) {
			return false
		}
	}
	for _, a := range s.attrs {
		if !HasAttr(n, a.key) {
			return false
		}
		if a.hasVal && !strings.EqualFold(strings.TrimSpace(Attr(n, a.key)), a.val) {
			return false
		}
	}
	return true
}
