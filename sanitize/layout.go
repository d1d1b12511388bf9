package sanitize

import (
	"encoding/json"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/entrypage/contract"
	"github.com/hazyhaar/entrypage/htmldoc"
)

type siteConfig struct {
	Announcement struct {
		Text  string `json:"text"`
		Level string `json:"level"`
	} `json:"announcement"`
}

// insertBanner adds the announcement banner on host pages whose site config
// carries an announcement. An existing banner is left alone.
func insertBanner(doc *html.Node) {
	body := htmldoc.Body(doc)
	if body == nil || !htmldoc.HasClass(body, contract.ClassHostPage) {
		return
	}
	if htmldoc.Query(doc, "."+contract.ClassBanner) != nil {
		return
	}
	var cfg siteConfig
	found := false
	for _, n := range htmldoc.ElementsByID(doc, contract.IDSiteConfig) {
		if htmldoc.IsJSONScript(n) && json.Unmarshal([]byte(strings.TrimSpace(htmldoc.Text(n))), &cfg) == nil {
			found = true
			break
		}
	}
	text := strings.TrimSpace(cfg.Announcement.Text)
	if !found || text == "" {
		return
	}
	level := strings.ToLower(strings.TrimSpace(cfg.Announcement.Level))
	switch level {
	case "info", "warning", "critical":
	default:
		level = "info"
	}
	banner := htmldoc.NewElement(atom.Div,
		html.Attribute{Key: "class", Val: contract.ClassBanner},
		html.Attribute{Key: "role", Val: "status"},
		html.Attribute{Key: "data-level", Val: level},
	)
	htmldoc.SetText(banner, text)
	body.InsertBefore(banner, body.FirstChild)
}

// markLayoutHosts tags the block hosting the video wrapper as a media
// layout and the block hosting the description as a text layout, marks
// <body> for the layout CSS and prunes empty decoration siblings.
func markLayoutHosts(doc *html.Node) {
	video := htmldoc.Query(doc, "."+contract.ClassVideoEmbed)
	desc := htmldoc.Query(doc, "."+contract.ClassDescription)

	var hosts []*html.Node
	if video != nil {
		h := layoutHost(video, desc)
		htmldoc.SetAttr(h, contract.AttrEntryLayout, contract.LayoutMedia)
		hosts = append(hosts, h)
	}
	if desc != nil {
		h := layoutHost(desc, video)
		if htmldoc.Attr(h, contract.AttrEntryLayout) != contract.LayoutMedia {
			htmldoc.SetAttr(h, contract.AttrEntryLayout, contract.LayoutText)
		}
		hosts = append(hosts, h)
	}
	if len(hosts) == 0 {
		return
	}
	if body := htmldoc.Body(doc); body != nil {
		htmldoc.AddClass(body, contract.ClassLayoutTracking)
	}
	for _, h := range hosts {
		pruneDecorations(h)
	}
}

// layoutHost returns the parent block of region unless that parent is a
// document-level element or also holds other.
func layoutHost(region, other *html.Node) *html.Node {
	p := region.Parent
	if p == nil || p.Type != html.ElementNode || structural(p) {
		return region
	}
	if other != nil && htmldoc.Contains(p, other) {
		return region
	}
	return p
}

func pruneDecorations(host *html.Node) {
	if host.Parent == nil {
		return
	}
	for sib := host.Parent.FirstChild; sib != nil; {
		next := sib.NextSibling
		if sib != host && sib.Type == html.ElementNode && htmldoc.HasClass(sib, contract.ClassDecoration) && empty(sib) {
			htmldoc.Remove(sib)
		}
		sib = next
	}
}

// empty reports whether n has no element children and only whitespace text.
func empty(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			return false
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				return false
			}
		}
	}
	return true
}
