// CLAUDE:SUMMARY Content injector: fills video, description, sidebar-config and manifest regions, title and the auth script trio.
// Package inject merges entry data into a template document.
//
// The template is parsed once, every region is replaced as a tree operation
// and the document is rendered once. Template defects and ambiguous regions
// are fatal: Inject returns an error and no HTML.
package inject

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/entrypage/contract"
	"github.com/hazyhaar/entrypage/entry"
	"github.com/hazyhaar/entrypage/htmldoc"
	"github.com/hazyhaar/entrypage/locate"
	"github.com/hazyhaar/entrypage/pagetmpl"
)

// ErrDescriptionAnchors is returned when the description region has no anchor
// pair. Description text is free-form, so no selector fallback is guessed.
var ErrDescriptionAnchors = errors.New("inject: description region requires anchor markers")

// ErrEmbedMissing is returned for embed mode without embed markup.
var ErrEmbedMissing = errors.New("inject: video mode embed requires embed html")

// TemplateError lists required targets absent from the template.
type TemplateError struct {
	Missing []string
}

func (e *TemplateError) Error() string {
	return "inject: template missing required targets: " + strings.Join(e.Missing, ", ")
}

// ShapeError reports a located region whose inner shape is not one the
// injector knows how to fill.
type ShapeError struct {
	Region contract.Region
	Detail string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("inject: region %q: %s", e.Region, e.Detail)
}

// Strategy records which locator strategy filled each region.
type Strategy struct {
	Video       locate.Strategy `json:"video"`
	Description locate.Strategy `json:"description"`
	Sidebar     locate.Strategy `json:"sidebar"`
	Manifest    locate.Strategy `json:"manifest"`
}

// Result is the injected document.
type Result struct {
	HTML     string   `json:"html"`
	Strategy Strategy `json:"strategy"`
	// Warnings lists degraded but non-fatal injections.
	Warnings []string `json:"warnings,omitempty"`
}

type options struct {
	contract contract.Contract
}

// Option customises Inject.
type Option func(*options)

// WithContract overrides the default contract table.
func WithContract(c contract.Contract) Option {
	return func(o *options) { o.contract = c }
}

// Inject merges data into tmpl.
func Inject(tmpl *pagetmpl.Template, data *entry.Data, opts ...Option) (*Result, error) {
	o := options{contract: contract.Table}
	for _, fn := range opts {
		fn(&o)
	}
	c := o.contract

	doc, err := htmldoc.Parse(tmpl.HTML)
	if err != nil {
		return nil, err
	}
	if missing := pagetmpl.ValidateDoc(doc, c); len(missing) > 0 {
		return nil, &TemplateError{Missing: missing}
	}

	var res Result
	var warn string
	if res.Strategy.Video, warn, err = injectVideo(doc, data.Video, c); err != nil {
		return nil, err
	}
	if warn != "" {
		res.Warnings = append(res.Warnings, warn)
	}
	if res.Strategy.Description, err = injectDescription(doc, data.DescriptionMarkup(), c); err != nil {
		return nil, err
	}
	sidebar, strategy, err := injectSidebar(doc, data, c)
	if err != nil {
		return nil, err
	}
	res.Strategy.Sidebar = strategy
	if err := upsertPageConfig(sidebar, data); err != nil {
		return nil, err
	}
	if err := injectManifest(doc, tmpl, data); err != nil {
		return nil, err
	}
	res.Strategy.Manifest = locate.StrategySelectors
	if data.Title != "" {
		setTitle(doc, data.Title)
	}
	InsertAuthTrio(doc, c)

	if res.HTML, err = htmldoc.Render(doc); err != nil {
		return nil, err
	}
	return &res, nil
}

func injectVideo(doc *html.Node, v entry.Video, c contract.Contract) (locate.Strategy, string, error) {
	loc, err := locate.Locate(doc, contract.RegionVideo, c)
	if err != nil {
		return "", "", err
	}

	var embed, warn string
	switch v.Mode {
	case entry.VideoEmbed:
		embed = normalizeEmbed(v.DataHTML)
		if embed == "" {
			return "", "", ErrEmbedMissing
		}
	case entry.VideoURL:
		embed = normalizeEmbed(v.DataHTML)
		if embed == "" {
			var ok bool
			if embed, ok = EmbedHTML(v.DataURL, c.EmbedBase); !ok {
				warn = fmt.Sprintf("video url %q has no recognizable video id; data-embed-html left out", strings.TrimSpace(v.DataURL))
			}
		}
	default:
		return "", "", fmt.Errorf("inject: unknown video mode %q", v.Mode)
	}

	var wrapper *html.Node
	if loc.Strategy == locate.StrategySelectors {
		wrapper = loc.Target
	} else {
		wrapper = htmldoc.NewElement(atom.Div, html.Attribute{Key: "class", Val: contract.ClassVideoEmbed})
		for _, n := range loc.Elements() {
			if htmldoc.HasClass(n, contract.ClassVideoEmbed) {
				wrapper.Attr = append([]html.Attribute(nil), n.Attr...)
				break
			}
		}
		replaceRegion(loc, wrapper)
	}

	if v.Mode == entry.VideoURL {
		htmldoc.SetAttr(wrapper, "data-url", strings.TrimSpace(v.DataURL))
	} else {
		htmldoc.RemoveAttr(wrapper, "data-url")
	}
	if embed != "" {
		htmldoc.SetAttr(wrapper, "data-embed-html", embed)
	} else {
		htmldoc.RemoveAttr(wrapper, "data-embed-html")
	}
	return loc.Strategy, warn, nil
}

func injectDescription(doc *html.Node, markup string, c contract.Contract) (locate.Strategy, error) {
	loc, err := locate.Anchors(doc, contract.RegionDescription, c)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDescriptionAnchors, err)
	}
	nodes, err := htmldoc.ParseFragment(loc.Parent(), markup)
	if err != nil {
		return "", err
	}
	for _, n := range nodes {
		dropReservedIDs(n, c)
	}
	replaceRegion(loc, nodes...)
	return loc.Strategy, nil
}

// dropReservedIDs strips contract IDs from description markup so the page's
// config and manifest scripts stay the only elements carrying them.
func dropReservedIDs(root *html.Node, c contract.Contract) {
	for _, n := range htmldoc.FindAll(root, func(n *html.Node) bool { return n.Type == html.ElementNode }) {
		if c.IsReservedID(htmldoc.Attr(n, "id")) {
			htmldoc.RemoveAttr(n, "id")
		}
	}
}

// replaceRegion swaps the nodes strictly between the anchors for repl.
func replaceRegion(loc *locate.Result, repl ...*html.Node) {
	for _, n := range loc.Nodes() {
		htmldoc.Remove(n)
	}
	for _, n := range repl {
		loc.Parent().InsertBefore(n, loc.End)
	}
}

func injectSidebar(doc *html.Node, data *entry.Data, c contract.Contract) (*html.Node, locate.Strategy, error) {
	loc, err := locate.Locate(doc, contract.RegionSidebar, c)
	if err != nil {
		return nil, "", err
	}

	var target *html.Node
	if loc.Strategy == locate.StrategySelectors {
		target = loc.Target
	} else {
		for _, n := range loc.Elements() {
			if htmldoc.IsJSONScript(n) || locate.IsSidebarAssignment(n) {
				target = n
				break
			}
		}
		if target == nil {
			return nil, "", &ShapeError{
				Region: contract.RegionSidebar,
				Detail: "anchors found but region holds neither a JSON script nor a " + contract.SidebarGlobal + " assignment",
			}
		}
	}

	sc := data.SidebarConfig
	sc.Buckets = data.SelectedBuckets()
	body, err := json.Marshal(sc)
	if err != nil {
		return nil, "", fmt.Errorf("inject: marshal sidebar config: %w", err)
	}
	if locate.IsSidebarAssignment(target) {
		htmldoc.SetText(target, contract.SidebarGlobal+" = "+htmldoc.ScriptSafe(string(body))+";")
	} else {
		htmldoc.SetText(target, htmldoc.ScriptSafe(string(body)))
	}

	for _, other := range htmldoc.ElementsByID(doc, contract.IDSidebarConfig) {
		if other != target {
			htmldoc.RemoveAttr(other, "id")
		}
	}
	htmldoc.SetAttr(target, "id", contract.IDSidebarConfig)
	return target, loc.Strategy, nil
}

// upsertPageConfig writes the page config block and its bridge script. New
// elements are placed right after the sidebar config element.
func upsertPageConfig(sidebar *html.Node, data *entry.Data) error {
	body, err := json.Marshal(data.PageConfig())
	if err != nil {
		return fmt.Errorf("inject: marshal page config: %w", err)
	}
	doc := sidebar
	for doc.Parent != nil {
		doc = doc.Parent
	}

	cfg := upsertScript(doc, sidebar, contract.IDSidebarPageConfig, contract.JSONScriptType)
	htmldoc.SetText(cfg, htmldoc.ScriptSafe(string(body)))

	bridge := upsertScript(doc, cfg, contract.IDSidebarPageBridge, "")
	htmldoc.SetText(bridge, contract.BridgeStatement)
	return nil
}

func upsertScript(doc, after *html.Node, id, typ string) *html.Node {
	var n *html.Node
	for _, e := range htmldoc.ElementsByID(doc, id) {
		switch {
		case e.DataAtom != atom.Script:
			htmldoc.RemoveAttr(e, "id")
		case n == nil:
			n = e
		default:
			htmldoc.Remove(e)
		}
	}
	if n == nil {
		n = htmldoc.NewElement(atom.Script, html.Attribute{Key: "id", Val: id})
		htmldoc.InsertAfter(after, n)
	}
	if typ != "" {
		htmldoc.SetAttr(n, "type", typ)
	} else {
		htmldoc.RemoveAttr(n, "type")
	}
	htmldoc.RemoveAttr(n, "src")
	return n
}

func injectManifest(doc *html.Node, tmpl *pagetmpl.Template, data *entry.Data) error {
	var target *html.Node
	for _, n := range htmldoc.ElementsByID(doc, contract.IDManifest) {
		if htmldoc.IsJSONScript(n) {
			target = n
			break
		}
	}
	if target == nil {
		return &locate.MissingError{Region: contract.RegionManifest}
	}
	normalized := data.Manifest.Normalize(tmpl.FormatKeys, data.SelectedBuckets())
	body, err := normalized.Encode()
	if err != nil {
		return err
	}
	htmldoc.SetText(target, htmldoc.ScriptSafe(string(body)))
	return nil
}

func setTitle(doc *html.Node, title string) {
	t := htmldoc.First(doc, atom.Title)
	if t == nil {
		head := htmldoc.Head(doc)
		t = htmldoc.NewElement(atom.Title)
		head.InsertBefore(t, head.FirstChild)
	}
	htmldoc.SetText(t, title)
}

// InsertAuthTrio removes every instance of the three auth runtime scripts,
// whether canonical or locally rooted, and appends exactly one canonical copy
// of each, in contract order, at the end of <head>. Running it twice leaves
// the document unchanged.
func InsertAuthTrio(doc *html.Node, c contract.Contract) {
	for _, s := range htmldoc.Elements(doc, atom.Script) {
		if !htmldoc.HasAttr(s, "src") {
			continue
		}
		p, ok := c.FirstPartyPath(htmldoc.Attr(s, "src"))
		if !ok {
			continue
		}
		for _, a := range c.AuthTrio {
			if p == a.Path {
				htmldoc.Remove(s)
				break
			}
		}
	}

	head := htmldoc.Head(doc)
	for _, a := range c.AuthTrio {
		head.AppendChild(htmldoc.NewElement(atom.Script,
			html.Attribute{Key: "src", Val: c.CanonicalURL(a)},
			html.Attribute{Key: "defer"},
		))
	}
}
