// CLAUDE:SUMMARY Template source adapter and validator: required injection targets, derived format keys.
// Package pagetmpl loads entry page templates and checks that they carry
// every injection target before any injection is attempted.
package pagetmpl

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/entrypage/contract"
	"github.com/hazyhaar/entrypage/htmldoc"
	"github.com/hazyhaar/entrypage/locate"
	"github.com/hazyhaar/entrypage/manifest"
)

// Target names reported by Validate.
const (
	TargetManifest = "manifest-script"
	TargetSidebar  = "sidebar-config"
	TargetVideo    = "video"
)

// Template is an immutable template document plus its derived format keys.
type Template struct {
	HTML       string
	FormatKeys manifest.FormatKeys
}

// Source supplies raw template HTML.
type Source interface {
	Template() (string, error)
}

// FileSource reads a template from disk.
type FileSource string

// Template implements Source.
func (f FileSource) Template() (string, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return "", fmt.Errorf("pagetmpl: read %s: %w", string(f), err)
	}
	return string(data), nil
}

// StringSource serves an in-memory template.
type StringSource string

// Template implements Source.
func (s StringSource) Template() (string, error) { return string(s), nil }

// Load reads a template from src and derives its format keys.
func Load(src Source) (*Template, error) {
	raw, err := src.Template()
	if err != nil {
		return nil, err
	}
	return New(raw)
}

// New wraps raw template HTML.
func New(raw string) (*Template, error) {
	doc, err := htmldoc.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &Template{HTML: raw, FormatKeys: formatKeys(doc)}, nil
}

// Validate reports which required targets are missing from a template. An
// empty result means injection may proceed.
func Validate(raw string) []string {
	doc, err := htmldoc.Parse(raw)
	if err != nil {
		return []string{TargetManifest, TargetSidebar, TargetVideo}
	}
	return ValidateDoc(doc, contract.Table)
}

// ValidateDoc is Validate over an already parsed document.
func ValidateDoc(doc *html.Node, c contract.Contract) []string {
	var missing []string
	if manifestScript(doc) == nil {
		missing = append(missing, TargetManifest)
	}
	if _, err := locate.Locate(doc, contract.RegionSidebar, c); err != nil {
		missing = append(missing, TargetSidebar)
	}
	if _, err := locate.Locate(doc, contract.RegionVideo, c); err != nil {
		missing = append(missing, TargetVideo)
	}
	return missing
}

func manifestScript(doc *html.Node) *html.Node {
	for _, n := range htmldoc.ElementsByID(doc, contract.IDManifest) {
		if htmldoc.IsJSONScript(n) {
			return n
		}
	}
	return nil
}

// formatKeys derives the template's format keys: an explicit
// script#download-formats block first, then the keys of the manifest
// skeleton, then the contract defaults.
func formatKeys(doc *html.Node) manifest.FormatKeys {
	if n := htmldoc.Query(doc, "script#"+contract.IDDownloadFormats); n != nil {
		var keys manifest.FormatKeys
		if err := json.Unmarshal([]byte(strings.TrimSpace(htmldoc.Text(n))), &keys); err == nil && !keys.Empty() {
			return keys
		}
	}
	if n := manifestScript(doc); n != nil {
		if m, err := manifest.Decode([]byte(strings.TrimSpace(htmldoc.Text(n)))); err == nil {
			if keys := manifest.KeysFrom(m); !keys.Empty() {
				return keys
			}
		}
	}
	return DefaultFormatKeys()
}

// DefaultFormatKeys returns the format keys used when a template declares none.
func DefaultFormatKeys() manifest.FormatKeys {
	return manifest.FormatKeys{
		Audio: []string{"mp3-320", "flac", "wav"},
		Video: []string{"1080p", "720p", "480p"},
	}
}
