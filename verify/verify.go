// CLAUDE:SUMMARY Verifier: re-parses a finished page and reports every contract violation as a typed issue; the sole publish gate.
// Package verify checks a finished entry page against the page contract by
// inspecting the final document only. It shares no state with the
// sanitizer. An empty issue list is the only passing result.
package verify

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/entrypage/contract"
	"github.com/hazyhaar/entrypage/htmldoc"
	"github.com/hazyhaar/entrypage/locate"
	"github.com/hazyhaar/entrypage/manifest"
)

// IssueType classifies a contract violation.
type IssueType string

const (
	Missing               IssueType = "missing"
	Duplicate             IssueType = "duplicate"
	ForbiddenScript       IssueType = "forbidden-script"
	ForbiddenInlineScript IssueType = "forbidden-inline-script"
	ProtocolRelative      IssueType = "protocol-relative"
	Order                 IssueType = "order"
	Mismatch              IssueType = "mismatch"
	VerifyToken           IssueType = "verify-token"
)

// Issue is one violation. Token names the offending element ID, asset path,
// script source, inline token or URL.
type Issue struct {
	Type  IssueType `json:"type"`
	Token string    `json:"token"`
}

func (i Issue) String() string { return string(i.Type) + " " + i.Token }

// Result is the verdict for one document.
type Result struct {
	OK     bool    `json:"ok"`
	Issues []Issue `json:"issues"`
}

// Error formats the issue list. It returns "" for a passing result.
func (r Result) Error() string {
	if r.OK {
		return ""
	}
	parts := make([]string, len(r.Issues))
	for i, is := range r.Issues {
		parts[i] = is.String()
	}
	return fmt.Sprintf("verify: %d issue(s): %s", len(r.Issues), strings.Join(parts, "; "))
}

// Has reports whether the result carries an issue of type t.
func (r Result) Has(t IssueType) bool {
	for _, is := range r.Issues {
		if is.Type == t {
			return true
		}
	}
	return false
}

type options struct {
	contract contract.Contract
}

// Option customises Verify.
type Option func(*options)

// WithContract overrides the default contract table.
func WithContract(c contract.Contract) Option {
	return func(o *options) { o.contract = c }
}

// Verify parses src and checks it.
func Verify(src string, opts ...Option) Result {
	o := options{contract: contract.Table}
	for _, fn := range opts {
		fn(&o)
	}
	doc, err := htmldoc.Parse(src)
	if err != nil {
		return Result{Issues: []Issue{{Type: Mismatch, Token: "document"}}}
	}
	return Doc(doc, o.contract)
}

// Doc checks an already parsed document. Callers that mutated doc get a
// verdict on the tree as it stands, so publishing code should re-parse the
// rendered bytes instead.
func Doc(doc *html.Node, c contract.Contract) Result {
	v := &checker{doc: doc, c: c, seen: make(map[Issue]bool)}
	v.requiredIDs()
	v.assets()
	v.bodies()
	v.scripts()
	v.protocolRelative()
	v.order()
	return Result{OK: len(v.issues) == 0, Issues: v.issues}
}

type checker struct {
	doc    *html.Node
	c      contract.Contract
	issues []Issue
	seen   map[Issue]bool
}

func (v *checker) add(t IssueType, token string) {
	is := Issue{Type: t, Token: token}
	if v.seen[is] {
		return
	}
	v.seen[is] = true
	v.issues = append(v.issues, is)
}

func (v *checker) requiredIDs() {
	for _, id := range v.c.RequiredIDs {
		switch n := len(htmldoc.ElementsByID(v.doc, id)); {
		case n == 0:
			v.add(Missing, id)
		case n > 1:
			v.add(Duplicate, id)
		}
	}
}

// references returns the elements of the asset's tag that point at it.
func (v *checker) references(a contract.Asset) []*html.Node {
	tag := atom.Script
	if a.Kind == contract.AssetStylesheet {
		tag = atom.Link
	}
	var out []*html.Node
	for _, n := range htmldoc.Elements(v.doc, tag) {
		if !htmldoc.HasAttr(n, a.Attr()) {
			continue
		}
		if got, ok := v.c.AssetForURL(htmldoc.Attr(n, a.Attr())); ok && got.Path == a.Path {
			out = append(out, n)
		}
	}
	return out
}

func (v *checker) assets() {
	for _, a := range v.c.Assets {
		if a.RequiredWhen != "" && len(htmldoc.ElementsByID(v.doc, a.RequiredWhen)) == 0 {
			continue
		}
		refs := v.references(a)
		switch {
		case len(refs) == 0:
			v.add(Missing, a.Path)
		case len(refs) > 1:
			v.add(Duplicate, a.Path)
		case strings.TrimSpace(htmldoc.Attr(refs[0], a.Attr())) != v.c.CanonicalURL(a):
			v.add(Mismatch, a.Path)
		}
	}
}

// bodies checks the data blocks and the bridge statement.
func (v *checker) bodies() {
	if n := v.only(contract.IDManifest); n != nil {
		if !htmldoc.IsJSONScript(n) {
			v.add(Mismatch, contract.IDManifest)
		} else if _, err := manifest.Decode([]byte(strings.TrimSpace(htmldoc.Text(n)))); err != nil {
			v.add(Mismatch, contract.IDManifest)
		}
	}
	if n := v.only(contract.IDSidebarPageConfig); n != nil {
		if !htmldoc.IsJSONScript(n) || !json.Valid([]byte(strings.TrimSpace(htmldoc.Text(n)))) {
			v.add(Mismatch, contract.IDSidebarPageConfig)
		}
	}
	if n := v.only(contract.IDSidebarConfig); n != nil {
		ok := locate.IsSidebarAssignment(n) ||
			(htmldoc.IsJSONScript(n) && json.Valid([]byte(strings.TrimSpace(htmldoc.Text(n)))))
		if !ok {
			v.add(Mismatch, contract.IDSidebarConfig)
		}
	}
	if n := v.only(contract.IDSidebarPageBridge); n != nil {
		if !htmldoc.IsExecutableScript(n) || !strings.Contains(htmldoc.Text(n), contract.BridgeStatement) {
			v.add(VerifyToken, contract.IDSidebarPageBridge)
		}
	}
}

// only returns the element with id when exactly one exists. Counts are
// reported by requiredIDs.
func (v *checker) only(id string) *html.Node {
	found := htmldoc.ElementsByID(v.doc, id)
	if len(found) != 1 {
		return nil
	}
	return found[0]
}

func (v *checker) scripts() {
	for _, s := range htmldoc.Elements(v.doc, atom.Script) {
		if htmldoc.HasAttr(s, "src") {
			if src := htmldoc.Attr(s, "src"); v.c.IsForbiddenScriptSrc(src) {
				v.add(ForbiddenScript, src)
			}
			continue
		}
		if !htmldoc.IsExecutableScript(s) {
			continue
		}
		if tok, found := v.c.LegacyInlineToken(htmldoc.Text(s)); found {
			v.add(ForbiddenInlineScript, tok)
		}
	}
}

func (v *checker) protocolRelative() {
	for _, n := range htmldoc.FindAll(v.doc, func(x *html.Node) bool { return x.Type == html.ElementNode }) {
		for _, a := range n.Attr {
			if a.Namespace == "" && (a.Key == "src" || a.Key == "href") && strings.HasPrefix(strings.TrimSpace(a.Val), "//") {
				v.add(ProtocolRelative, a.Val)
			}
		}
	}
}

func (v *checker) order() {
	base := v.references(contract.BaseStylesheet)
	override := v.references(contract.OverrideStylesheet)
	if len(base) == 0 || len(override) == 0 {
		return
	}
	first := htmldoc.FindAll(v.doc, func(x *html.Node) bool { return x == base[0] || x == override[0] })
	if len(first) > 0 && first[0] == override[0] {
		v.add(Order, contract.OverrideStylesheet.Path)
	}
}
