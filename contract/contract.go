// CLAUDE:SUMMARY Fixed contract table for generated entry pages: required IDs, canonical origin, contract assets, deny-lists, anchor markers.
// Package contract holds the read-only rules every generated entry page must
// satisfy. The table is built once at package load; callers share it without
// locking and never mutate it.
//
// Usage:
//
//	c := contract.Default()
//	c = c.WithOrigin("https://staging.catalog.hazyhaar.net")
package contract

import (
	"net/url"
	"slices"
	"strings"
)

// Region names a replaceable content region of an entry template.
type Region string

const (
	RegionVideo       Region = "video"
	RegionDescription Region = "description"
	RegionSidebar     Region = "sidebar-config"
	RegionManifest    Region = "manifest"
)

// Regions lists every region in injection order.
var Regions = []Region{RegionVideo, RegionDescription, RegionSidebar, RegionManifest}

// Required element identifiers.
const (
	IDSidebarConfig     = "sidebar-config"
	IDSidebarPageConfig = "sidebar-page-config"
	IDSidebarPageBridge = "sidebar-page-bridge"
	IDManifest          = "download-manifest"
	IDDownloadFormats   = "download-formats"
	IDSiteConfig        = "site-config"
	IDLayoutPatch       = "entry-layout-patch"
)

// Class names and script shapes the pipeline recognises.
const (
	ClassVideoEmbed      = "video-embed"
	ClassDescription     = "entry-description"
	ClassDecoration      = "entry-decoration"
	ClassBanner          = "announcement-banner"
	ClassHostPage        = "entry-host"
	ClassLayoutTracking  = "has-entry-layout"
	AttrEntryLayout      = "data-entry-layout"
	LayoutMedia          = "media"
	LayoutText           = "text"
	SidebarGlobal        = "window.SIDEBAR_CONFIG"
	SidebarPageGlobal    = "window.SIDEBAR_PAGE_CONFIG"
	JSONScriptType       = "application/json"
	DefaultEmbedBase     = "https://www.youtube-nocookie.com/embed/"
	DefaultCanonicalHost = "catalog.hazyhaar.net"
)

// BridgeStatement exposes the page config globally. The verifier looks for it
// verbatim inside the bridge script.
const BridgeStatement = SidebarPageGlobal + ` = JSON.parse(document.getElementById("` + IDSidebarPageConfig + `").textContent);`

// LayoutPatchCSS is the managed ruleset of style#entry-layout-patch.
const LayoutPatchCSS = `body.has-entry-layout [data-entry-layout="media"]{position:relative;width:100%;max-width:1120px;margin:0 auto}` +
	`body.has-entry-layout [data-entry-layout="text"]{max-width:72ch;margin:1.5rem auto;line-height:1.6}` +
	`body.has-entry-layout .video-embed iframe{display:block;width:100%;aspect-ratio:16/9;border:0}` +
	`.announcement-banner{padding:.5rem 1rem;text-align:center}`

// AssetKind distinguishes script and stylesheet contract assets.
type AssetKind string

const (
	AssetScript     AssetKind = "script"
	AssetStylesheet AssetKind = "stylesheet"
)

// Asset is one contract element a generated page must carry exactly once.
type Asset struct {
	Name string
	Path string
	Kind AssetKind
	// RequiredWhen names an element ID whose presence makes the asset
	// mandatory. Empty means always required.
	RequiredWhen string
}

// Attr returns the URL-bearing attribute name for the asset's element.
func (a Asset) Attr() string {
	if a.Kind == AssetStylesheet {
		return "href"
	}
	return "src"
}

// Contract assets, by canonical path.
var (
	AuthClient  = Asset{Name: "auth-client", Path: "/assets/js/auth/client.js", Kind: AssetScript}
	AuthSession = Asset{Name: "auth-session", Path: "/assets/js/auth/session.js", Kind: AssetScript}
	AuthGate    = Asset{Name: "auth-gate", Path: "/assets/js/auth/gate.js", Kind: AssetScript}

	SidebarRuntime = Asset{Name: "sidebar-runtime", Path: "/assets/js/sidebar.js", Kind: AssetScript, RequiredWhen: IDSidebarConfig}

	BaseStylesheet     = Asset{Name: "theme-css", Path: "/assets/css/theme.css", Kind: AssetStylesheet}
	OverrideStylesheet = Asset{Name: "entry-overrides-css", Path: "/assets/css/entry-overrides.css", Kind: AssetStylesheet}
)

// Contract is the full rule table.
type Contract struct {
	Origin          string
	FirstPartyHosts []string
	EmbedBase       string

	RequiredIDs []string
	// AuthTrio is inserted by the injector in this exact order.
	AuthTrio []Asset
	Assets   []Asset

	Anchors map[Region][]MarkerPair

	LegacyAttrPrefixes  []string
	LegacyValueMarkers  []string
	ForbiddenScriptSrcs []string
	LegacyInlineTokens  []string

	StaticPrefixes   []string
	StaticExtensions []string
	ContentPrefixes  []string
}

// MarkerPair is one accepted spelling of a region's anchor comments.
type MarkerPair struct {
	Spelling string
	Start    string
	End      string
}

// Default returns a fresh copy of the production contract.
func Default() Contract {
	c := Contract{
		Origin: "https://" + DefaultCanonicalHost,
		FirstPartyHosts: []string{
			DefaultCanonicalHost,
			"www." + DefaultCanonicalHost,
			"static." + DefaultCanonicalHost,
		},
		EmbedBase:   DefaultEmbedBase,
		RequiredIDs: []string{IDSidebarConfig, IDSidebarPageConfig, IDSidebarPageBridge, IDManifest},
		AuthTrio:    []Asset{AuthClient, AuthSession, AuthGate},
		Assets: []Asset{
			AuthClient, AuthSession, AuthGate,
			SidebarRuntime,
			BaseStylesheet, OverrideStylesheet,
		},
		Anchors: make(map[Region][]MarkerPair, len(Regions)),

		LegacyAttrPrefixes: []string{"data-sk-", "sk-", "data-legacy-rt"},
		LegacyValueMarkers: []string{"sitekit-runtime", "sk-component", "legacy-rt-shell"},
		ForbiddenScriptSrcs: []string{
			"cdn.sitekit-static.com",
			"assets.sitekit.net",
			"legacy-rt.catalog-cdn.net",
			"/_sk/components/",
			"component-defs.bundle",
		},
		LegacyInlineTokens: []string{
			"__SK_STATE__",
			"SiteKit.boot(",
			"skRuntime.",
			"__SK_COMPONENTS__",
			"legacyRuntime.mount(",
		},

		StaticPrefixes:   []string{"assets", "static", "css", "js", "fonts", "images", "img", "media", "vendor"},
		StaticExtensions: []string{".js", ".mjs", ".css", ".woff", ".woff2", ".ttf", ".otf", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico", ".map"},
		ContentPrefixes:  []string{"entries", "entry", "users", "u", "catalog"},
	}
	for _, r := range Regions {
		upper := strings.ToUpper(strings.ReplaceAll(string(r), "-", "_"))
		c.Anchors[r] = []MarkerPair{
			{Spelling: "current", Start: "ENTRY:" + upper + ":START", End: "ENTRY:" + upper + ":END"},
			{Spelling: "legacy", Start: "[" + string(r) + "-start]", End: "[" + string(r) + "-end]"},
		}
	}
	return c
}

// Table is the process-wide default contract. Read-only.
var Table = Default()

// WithOrigin returns a copy of c whose canonical origin is origin. The origin
// host joins the first-party host list.
func (c Contract) WithOrigin(origin string) Contract {
	origin = strings.TrimRight(origin, "/")
	if origin == "" {
		return c
	}
	c.Origin = origin
	c.FirstPartyHosts = slices.Clone(c.FirstPartyHosts)
	if u, err := url.Parse(origin); err == nil && u.Hostname() != "" && !slices.Contains(c.FirstPartyHosts, u.Hostname()) {
		c.FirstPartyHosts = append(c.FirstPartyHosts, u.Hostname())
	}
	return c
}

// WithFirstPartyHosts returns a copy of c with extra first-party hosts.
func (c Contract) WithFirstPartyHosts(hosts ...string) Contract {
	c.FirstPartyHosts = slices.Clone(c.FirstPartyHosts)
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" && !slices.Contains(c.FirstPartyHosts, h) {
			c.FirstPartyHosts = append(c.FirstPartyHosts, h)
		}
	}
	return c
}

// CanonicalURL returns the absolute canonical URL of a contract asset.
func (c Contract) CanonicalURL(a Asset) string {
	return c.Origin + a.Path
}

// IsProtectedID reports whether id names a contract element the sanitizer
// must never remove.
func (c Contract) IsProtectedID(id string) bool {
	return id != "" && slices.Contains(c.RequiredIDs, id)
}

// IsReservedID reports whether id belongs to the page's own machinery: the
// required IDs plus the format table, site config and layout patch.
// Injected content must not carry these.
func (c Contract) IsReservedID(id string) bool {
	switch id {
	case IDDownloadFormats, IDSiteConfig, IDLayoutPatch:
		return true
	}
	return c.IsProtectedID(id)
}

// IsFirstPartyHost reports whether host (without port) is first-party.
func (c Contract) IsFirstPartyHost(host string) bool {
	return slices.Contains(c.FirstPartyHosts, strings.ToLower(host))
}

// AssetForURL matches a src/href value against the contract assets. Absolute
// first-party URLs, protocol-relative first-party URLs and locally-rooted paths
// all match; query strings and fragments are ignored.
func (c Contract) AssetForURL(raw string) (Asset, bool) {
	p, ok := c.FirstPartyPath(raw)
	if !ok {
		return Asset{}, false
	}
	for _, a := range c.Assets {
		if p == a.Path {
			return a, true
		}
	}
	return Asset{}, false
}

// FirstPartyPath extracts the path of raw when raw is locally rooted or points
// at a first-party host.
func (c Contract) FirstPartyPath(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	switch {
	case u.Scheme == "" && u.Host == "":
		if !strings.HasPrefix(u.Path, "/") {
			return "", false
		}
	case u.Scheme == "" || u.Scheme == "http" || u.Scheme == "https":
		if !c.IsFirstPartyHost(u.Hostname()) {
			return "", false
		}
	default:
		return "", false
	}
	return u.Path, u.Path != ""
}

// IsForbiddenScriptSrc reports whether src matches the legacy deny-list.
func (c Contract) IsForbiddenScriptSrc(src string) bool {
	s := strings.ToLower(src)
	for _, p := range c.ForbiddenScriptSrcs {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// LegacyInlineToken returns the first legacy runtime token found in body.
func (c Contract) LegacyInlineToken(body string) (string, bool) {
	for _, tok := range c.LegacyInlineTokens {
		if strings.Contains(body, tok) {
			return tok, true
		}
	}
	return "", false
}

// IsLegacyAttrName reports whether an attribute name carries a legacy prefix.
func (c Contract) IsLegacyAttrName(name string) bool {
	name = strings.ToLower(name)
	for _, p := range c.LegacyAttrPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// HasLegacyValueMarker reports whether an attribute value carries a legacy
// marker. A marker only counts at the start of the value or after a
// non-alphanumeric byte, so "task-component" does not match "sk-component".
func (c Contract) HasLegacyValueMarker(val string) bool {
	for _, m := range c.LegacyValueMarkers {
		for i := 0; i+len(m) <= len(val); {
			j := strings.Index(val[i:], m)
			if j < 0 {
				break
			}
			at := i + j
			if at == 0 || !isAlnum(val[at-1]) {
				return true
			}
			i = at + 1
		}
	}
	return false
}

func isAlnum(b byte) bool {
	return 'a' <= b && b <= 'z' || 'A' <= b && b <= 'Z' || '0' <= b && b <= '9'
}
