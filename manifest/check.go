package manifest

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
)

// Advisory flags a manifest cell whose identifier looks wrong. Advisories are
// warnings: the caller decides whether they reject the input.
type Advisory struct {
	Kind   Kind   `json:"kind"`
	Bucket Bucket `json:"bucket"`
	Key    string `json:"key"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

func (a Advisory) String() string {
	return fmt.Sprintf("%s/%s/%s: %s (%q)", a.Kind, a.Bucket, a.Key, a.Reason, a.Value)
}

// Advisory reasons.
const (
	ReasonURL   = "looks like a URL"
	ReasonPath  = "looks like a path"
	ReasonShape = "implausible identifier shape"
)

var idShape = regexp.MustCompile(`^[A-Za-z0-9_-]{10,128}$`)

// Check inspects every non-empty cell and returns advisories in stable
// (kind, bucket, key) order.
func Check(m Manifest) []Advisory {
	var out []Advisory
	for _, kind := range Kinds {
		for _, b := range Buckets {
			cells, ok := m[kind][b]
			if !ok {
				continue
			}
			for _, key := range sortedKeys(cells) {
				v := strings.TrimSpace(cells[key])
				if v == "" {
					continue
				}
				if reason := cellReason(v); reason != "" {
					out = append(out, Advisory{Kind: kind, Bucket: b, Key: key, Value: v, Reason: reason})
				}
			}
		}
	}
	return out
}

func cellReason(v string) string {
	lower := strings.ToLower(v)
	switch {
	case strings.Contains(lower, "://") || strings.HasPrefix(lower, "www."):
		return ReasonURL
	case strings.ContainsAny(v, `/\`) || strings.HasPrefix(v, "."):
		return ReasonPath
	case !idShape.MatchString(v):
		return ReasonShape
	}
	return ""
}

func sortedKeys(cells map[string]string) []string {
	return slices.Sorted(maps.Keys(cells))
}
