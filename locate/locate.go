// CLAUDE:SUMMARY Region locator: ordered strategy chain (current anchors, legacy anchors, selector fallback) per content region.
// Package locate finds the replaceable regions of an entry template.
//
// Each region is resolved by an ordered list of named strategies. The first
// strategy that produces a result wins; an exhausted chain yields a
// *MissingError naming the region, never a silent default.
package locate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/entrypage/contract"
	"github.com/hazyhaar/entrypage/htmldoc"
)

// Strategy tags how a region was found.
type Strategy string

const (
	StrategyAnchors   Strategy = "anchors"
	StrategySelectors Strategy = "selectors"
)

// ErrNotFound is the sentinel every strategy returns when it has no match.
var ErrNotFound = errors.New("locate: region not found")

// MissingError reports an exhausted strategy chain.
type MissingError struct {
	Region contract.Region
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("locate: no anchors or fallback target for region %q", e.Region)
}

func (e *MissingError) Unwrap() error { return ErrNotFound }

// Result addresses a located region. For anchors, Start and End are the marker
// comments and the region is the siblings strictly between them. For
// selectors, Target is the matched element.
type Result struct {
	Region   contract.Region
	Strategy Strategy
	// Spelling is the marker spelling ("current", "legacy") or the selector.
	Spelling string
	Start    *html.Node
	End      *html.Node
	Target   *html.Node
}

// Nodes returns the nodes strictly between the anchors, or the target alone.
func (r *Result) Nodes() []*html.Node {
	if r.Strategy == StrategySelectors {
		return []*html.Node{r.Target}
	}
	var out []*html.Node
	for n := r.Start.NextSibling; n != nil && n != r.End; n = n.NextSibling {
		out = append(out, n)
	}
	return out
}

// Parent returns the element that holds the region.
func (r *Result) Parent() *html.Node {
	if r.Strategy == StrategySelectors {
		return r.Target.Parent
	}
	return r.Start.Parent
}

// Elements returns every element inside the region, in document order.
func (r *Result) Elements() []*html.Node {
	var out []*html.Node
	for _, n := range r.Nodes() {
		out = append(out, htmldoc.FindAll(n, func(x *html.Node) bool {
			return x.Type == html.ElementNode
		})...)
	}
	return out
}

type strategy struct {
	name string
	find func(doc *html.Node) (*Result, error)
}

// Locate resolves one region of doc.
func Locate(doc *html.Node, region contract.Region, c contract.Contract) (*Result, error) {
	for _, s := range chain(region, c) {
		res, err := s.find(doc)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("locate %s via %s: %w", region, s.name, err)
		}
		res.Region = region
		return res, nil
	}
	return nil, &MissingError{Region: region}
}

// Anchors resolves a region by anchor markers only.
func Anchors(doc *html.Node, region contract.Region, c contract.Contract) (*Result, error) {
	for _, pair := range c.Anchors[region] {
		if res, err := findAnchors(doc, pair); err == nil {
			res.Region = region
			return res, nil
		}
	}
	return nil, &MissingError{Region: region}
}

func chain(region contract.Region, c contract.Contract) []strategy {
	var out []strategy
	for _, pair := range c.Anchors[region] {
		out = append(out, strategy{
			name: "anchors/" + pair.Spelling,
			find: func(doc *html.Node) (*Result, error) { return findAnchors(doc, pair) },
		})
	}
	switch region {
	case contract.RegionVideo:
		out = append(out, selectorStrategy("."+contract.ClassVideoEmbed, nil))
	case contract.RegionSidebar:
		out = append(out,
			selectorStrategy("script#"+contract.IDSidebarConfig+"[type="+contract.JSONScriptType+"]", nil),
			selectorStrategy("script", IsSidebarAssignment),
		)
	case contract.RegionManifest:
		out = append(out, selectorStrategy("script#"+contract.IDManifest+"[type="+contract.JSONScriptType+"]", nil))
	case contract.RegionDescription:
		// Free-form text: no selector fallback.
	}
	return out
}

func selectorStrategy(sel string, accept func(*html.Node) bool) strategy {
	return strategy{
		name: "selector/" + sel,
		find: func(doc *html.Node) (*Result, error) {
			for _, n := range htmldoc.QueryAll(doc, sel) {
				if accept == nil || accept(n) {
					return &Result{Strategy: StrategySelectors, Spelling: sel, Target: n}, nil
				}
			}
			return nil, ErrNotFound
		},
	}
}

func findAnchors(doc *html.Node, pair contract.MarkerPair) (*Result, error) {
	starts := htmldoc.FindAll(doc, func(n *html.Node) bool {
		return isMarker(n, pair.Start)
	})
	for _, start := range starts {
		for n := start.NextSibling; n != nil; n = n.NextSibling {
			if isMarker(n, pair.End) {
				return &Result{Strategy: StrategyAnchors, Spelling: pair.Spelling, Start: start, End: n}, nil
			}
		}
	}
	return nil, ErrNotFound
}

func isMarker(n *html.Node, marker string) bool {
	return n.Type == html.CommentNode && strings.TrimSpace(n.Data) == marker
}

var sidebarAssignment = regexp.MustCompile(`^\s*` + regexp.QuoteMeta(contract.SidebarGlobal) + `\s*=`)

// IsSidebarAssignment reports whether n is an executable script whose body is
// the global sidebar-config assignment statement.
func IsSidebarAssignment(n *html.Node) bool {
	return htmldoc.IsExecutableScript(n) && !htmldoc.HasAttr(n, "src") &&
		sidebarAssignment.MatchString(htmldoc.Text(n))
}
