package sanitize

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/entrypage/contract"
	"github.com/hazyhaar/entrypage/htmldoc"
)

func parse(t *testing.T, src string) *html.Node {
	t.Helper()
	doc, err := htmldoc.Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func count(doc *html.Node, sel string) int { return len(htmldoc.QueryAll(doc, sel)) }

var corpus = []string{
	``,
	`not html at all <<<>>>`,
	`<html><head><base href="https://evil.example/"><title>x</title></head><body></body></html>`,
	`<html><head>
<link rel="stylesheet" href="/assets/css/entry-overrides.css">
<link rel="stylesheet" href="//catalog.hazyhaar.net/assets/css/theme.css">
<script src="https://cdn.sitekit-static.com/rt.js"></script>
<script>window.__SK_STATE__ = {}; SiteKit.boot();</script>
<script src="/assets/js/auth/client.js"></script>
<script src="https://www.catalog.hazyhaar.net/assets/js/auth/client.js?v=2"></script>
<style id="entry-layout-patch">.stale{}</style>
</head><body class="entry-host">
<script id="site-config" type="application/json">{"announcement":{"text":"Maintenance tonight","level":"warning"}}</script>
<div data-sk-widget="x" class="keep">kept</div>
<div class="sk-component-host" data-role="sitekit-runtime">gone</div>
<section><div class="entry-decoration"> </div><div class="video-embed"></div></section>
<article><div class="entry-description"><p>text</p></div><div class="entry-decoration"><span>keep</span></div></article>
<script id="sidebar-config" type="application/json">{}</script>
<script id="sidebar-config" type="application/json">{"dup":true}</script>
<img src="//images.example/a.png">
</body></html>`,
}

func TestSanitize_Idempotent(t *testing.T) {
	for i, in := range corpus {
		once := Sanitize(in)
		twice := Sanitize(once)
		if once != twice {
			t.Errorf("corpus[%d] not idempotent:\nonce  %s\ntwice %s", i, once, twice)
		}
	}
}

func TestSanitize_ExactlyOneContractScript(t *testing.T) {
	canonical := contract.Table.CanonicalURL(contract.AuthGate)
	for _, n := range []int{0, 1, 4} {
		var b strings.Builder
		b.WriteString("<html><head>")
		for i := range n {
			if i%2 == 0 {
				b.WriteString(`<script src="/assets/js/auth/gate.js"></script>`)
			} else {
				b.WriteString(`<script src="//static.catalog.hazyhaar.net/assets/js/auth/gate.js"></script>`)
			}
		}
		b.WriteString("</head><body></body></html>")

		doc := parse(t, Sanitize(b.String()))
		got := htmldoc.QueryAll(doc, "script[src="+canonical+"]")
		if len(got) != 1 {
			t.Fatalf("%d instances in: got %d out, want 1", n, len(got))
		}
		if !htmldoc.HasAttr(got[0], "defer") {
			t.Errorf("%d instances in: canonical script lacks defer", n)
		}
	}
}

func TestSanitize_SidebarRuntimeFollowsConfig(t *testing.T) {
	without := parse(t, Sanitize(`<html><head></head><body></body></html>`))
	if count(without, "script[src="+contract.Table.CanonicalURL(contract.SidebarRuntime)+"]") != 0 {
		t.Error("sidebar runtime must not be added without #sidebar-config")
	}
	with := parse(t, Sanitize(`<html><head></head><body><script id="sidebar-config" type="application/json">{}</script></body></html>`))
	if count(with, "script[src="+contract.Table.CanonicalURL(contract.SidebarRuntime)+"]") != 1 {
		t.Error("sidebar runtime must be present with #sidebar-config")
	}
}

func TestSanitize_StylesheetOrder(t *testing.T) {
	in := `<html><head>
<link rel="stylesheet" href="/assets/css/entry-overrides.css">
<meta charset="utf-8">
<link rel="stylesheet" href="/assets/css/theme.css">
</head><body></body></html>`
	doc := parse(t, Sanitize(in))
	links := htmldoc.QueryAll(doc, "link[rel=stylesheet]")
	if len(links) != 2 {
		t.Fatalf("stylesheets: got %d", len(links))
	}
	if htmldoc.Attr(links[0], "href") != contract.Table.CanonicalURL(contract.BaseStylesheet) ||
		htmldoc.Attr(links[1], "href") != contract.Table.CanonicalURL(contract.OverrideStylesheet) {
		t.Errorf("order: got %s then %s", htmldoc.Attr(links[0], "href"), htmldoc.Attr(links[1], "href"))
	}
	if links[0].NextSibling != links[1] {
		t.Error("override must directly follow base")
	}
}

func TestSanitize_LegacyRuntimeRemoved(t *testing.T) {
	doc := parse(t, Sanitize(corpus[3]))
	out, _ := htmldoc.Render(doc)
	for _, gone := range []string{"sitekit-static", "__SK_STATE__", "data-sk-widget", "sitekit-runtime", "<base", ".stale"} {
		if strings.Contains(out, gone) {
			t.Errorf("output still contains %q", gone)
		}
	}
	if htmldoc.Query(doc, "div.keep") == nil {
		t.Error("element with only a legacy attribute name must be kept")
	}
	if strings.Contains(out, `src="//`) || strings.Contains(out, `href="//`) {
		t.Error("protocol-relative URL left behind")
	}
	if count(doc, "#sidebar-config") != 1 {
		t.Error("required IDs must be deduplicated")
	}
}

func TestSanitize_ProtectedIDsExempt(t *testing.T) {
	in := `<html><head></head><body>
<script id="sidebar-page-bridge">skRuntime.ready(); window.SIDEBAR_PAGE_CONFIG = {};</script>
<script id="download-manifest" type="application/json" data-sk-x="1">{}</script>
</body></html>`
	doc := parse(t, Sanitize(in))
	if count(doc, "#sidebar-page-bridge") != 1 {
		t.Error("protected inline script must survive the token scan")
	}
	if m := htmldoc.Query(doc, "#download-manifest"); m == nil || !htmldoc.HasAttr(m, "data-sk-x") {
		t.Error("protected element must be left untouched by the legacy pass")
	}
}

func TestSanitize_LayoutPatchRefreshed(t *testing.T) {
	doc := parse(t, Sanitize(`<html><head><style id="entry-layout-patch">.old{}</style><title>t</title></head><body></body></html>`))
	styles := htmldoc.QueryAll(doc, "style#"+contract.IDLayoutPatch)
	if len(styles) != 1 || htmldoc.Text(styles[0]) != contract.LayoutPatchCSS {
		t.Fatalf("layout patch: got %d elements", len(styles))
	}
	if htmldoc.Head(doc).LastChild != styles[0] {
		t.Error("layout patch must be the last element of <head>")
	}

	none := parse(t, Sanitize(`<html><head></head><body></body></html>`))
	if count(none, "style#"+contract.IDLayoutPatch) != 0 {
		t.Error("layout patch must not be created when absent")
	}
}

func TestSanitize_Banner(t *testing.T) {
	doc := parse(t, Sanitize(corpus[3]))
	banners := htmldoc.QueryAll(doc, "div."+contract.ClassBanner)
	if len(banners) != 1 {
		t.Fatalf("banners: got %d", len(banners))
	}
	b := banners[0]
	if htmldoc.Body(doc).FirstChild != b || htmldoc.Attr(b, "data-level") != "warning" || htmldoc.Text(b) != "Maintenance tonight" {
		t.Errorf("banner: %+v", b.Attr)
	}

	plain := strings.Replace(corpus[3], `class="entry-host"`, "", 1)
	if count(parse(t, Sanitize(plain)), "div."+contract.ClassBanner) != 0 {
		t.Error("banner requires the host page class")
	}
}

func TestSanitize_LayoutHosts(t *testing.T) {
	doc := parse(t, Sanitize(corpus[3]))
	section := htmldoc.Query(doc, "section")
	article := htmldoc.Query(doc, "article")
	if htmldoc.Attr(section, contract.AttrEntryLayout) != contract.LayoutMedia {
		t.Error("video host must be marked media")
	}
	if htmldoc.Attr(article, contract.AttrEntryLayout) != contract.LayoutText {
		t.Error("description host must be marked text")
	}
	if !htmldoc.HasClass(htmldoc.Body(doc), contract.ClassLayoutTracking) {
		t.Error("body must carry the layout tracking class")
	}
	// The empty decoration sits inside the media host, not beside it, so
	// only sibling decorations of hosts are candidates for pruning.
	if count(section, "."+contract.ClassDecoration) != 1 {
		t.Error("decoration inside a host must be kept")
	}
	if count(article, "."+contract.ClassDecoration) != 1 {
		t.Error("non-empty decoration must be kept")
	}
}

func TestSanitize_PrunesEmptyDecorationSiblings(t *testing.T) {
	in := `<html><body><main>
<div class="entry-decoration"></div>
<div class="player"><div class="video-embed"></div></div>
<div class="entry-decoration">  </div>
<div class="entry-decoration"><img src="/img/x.png"></div>
</main></body></html>`
	doc := parse(t, Sanitize(in))
	if got := count(doc, "."+contract.ClassDecoration); got != 1 {
		t.Errorf("decorations: got %d, want 1", got)
	}
}

func TestSanitize_Total(t *testing.T) {
	for _, in := range []string{"", "\x00\x01", "<<<", strings.Repeat("<div>", 300)} {
		_ = Sanitize(in)
	}
}

func TestNormalizeURL(t *testing.T) {
	c := contract.Table
	tests := []struct{ in, want string }{
		{"//cdn.example/x.js", "https://cdn.example/x.js"},
		{"//www.catalog.hazyhaar.net/assets/js/sidebar.js", c.Origin + "/assets/js/sidebar.js"},
		{"http://static.catalog.hazyhaar.net/entries/a?x=1#y", c.Origin + "/entries/a?x=1#y"},
		{"/assets/css/theme.css", c.Origin + "/assets/css/theme.css"},
		{"/entries/a", "/entries/a"},
		{"https://elsewhere.example/a", "https://elsewhere.example/a"},
		{"#top", "#top"},
	}
	for _, tc := range tests {
		if got := NormalizeURL(tc.in, c); got != tc.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitize_RequiredIDPrefersScript(t *testing.T) {
	doc := parse(t, `<html><head></head><body>
<p id="download-manifest">Second paragraph.</p>
<script id="download-manifest" type="application/json">{"audio":{}}</script>
<script id="download-manifest" type="application/json">{"dup":true}</script>
</body></html>`)
	Doc(doc, contract.Table)

	els := htmldoc.ElementsByID(doc, contract.IDManifest)
	if len(els) != 1 || els[0].Data != "script" || htmldoc.Text(els[0]) != `{"audio":{}}` {
		t.Fatalf("manifest holder: got %d elements, first %v", len(els), els)
	}
	if p := htmldoc.Query(doc, "p"); p == nil || htmldoc.Text(p) != "Second paragraph." {
		t.Error("paragraph text must survive losing the id")
	}
}

func TestSanitize_KeepsLookalikeMarkers(t *testing.T) {
	out := Sanitize(`<html><head></head><body>
<div class="task-component-card">user card</div>
<a href="/entries/risk-components">risk</a>
<div class="sk-component">old widget</div>
</body></html>`)
	for _, want := range []string{"task-component-card", "user card", "/entries/risk-components"} {
		if !strings.Contains(out, want) {
			t.Errorf("sanitized output lost %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "old widget") {
		t.Errorf("real legacy component must be removed:\n%s", out)
	}
}
