// CLAUDE:SUMMARY Entry data model (title, slug, video, description, sidebar config, manifest) and its validation.
// Package entry defines the per-entry value object the injector consumes and
// the on-disk entry record (entry.json + description.txt + manifest.json).
package entry

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/hazyhaar/entrypage/manifest"
)

// VideoMode selects how the video region is filled.
type VideoMode string

const (
	VideoURL   VideoMode = "url"
	VideoEmbed VideoMode = "embed"
)

// Video references the entry's embedded video.
type Video struct {
	Mode     VideoMode `json:"mode"`
	DataURL  string    `json:"dataUrl,omitempty"`
	DataHTML string    `json:"dataHtml,omitempty"`
}

// Credit is one line of the credits block.
type Credit struct {
	Role string `json:"role"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// SidebarConfig is serialised into the sidebar-config region.
type SidebarConfig struct {
	LookupNumber        string            `json:"lookupNumber,omitempty"`
	Buckets             []manifest.Bucket `json:"buckets"`
	AttributionSentence string            `json:"attributionSentence,omitempty"`
	Credits             []Credit          `json:"credits,omitempty"`
	FileSpecs           map[string]string `json:"fileSpecs,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

// Data is one entry's content. The pipeline treats it as read-only.
type Data struct {
	Title           string            `json:"title"`
	Slug            string            `json:"slug"`
	Video           Video             `json:"video"`
	DescriptionText string            `json:"descriptionText,omitempty"`
	DescriptionHTML string            `json:"descriptionHtml,omitempty"`
	SidebarConfig   SidebarConfig     `json:"sidebarConfig"`
	Manifest        manifest.Manifest `json:"manifest,omitempty"`
}

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("entry: invalid data")

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Validate checks the invariants the pipeline relies on.
func (d *Data) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if !slugPattern.MatchString(d.Slug) {
		return fmt.Errorf("%w: slug %q must be lower-case words joined by hyphens", ErrInvalid, d.Slug)
	}
	switch d.Video.Mode {
	case VideoURL:
		if strings.TrimSpace(d.Video.DataURL) == "" {
			return fmt.Errorf("%w: video mode url requires dataUrl", ErrInvalid)
		}
	case VideoEmbed:
		if strings.TrimSpace(d.Video.DataHTML) == "" {
			return fmt.Errorf("%w: video mode embed requires dataHtml", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown video mode %q", ErrInvalid, d.Video.Mode)
	}
	for _, b := range d.SidebarConfig.Buckets {
		if _, err := manifest.ParseBucket(string(b)); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}
	return nil
}

// SelectedBuckets returns the sidebar buckets, upper-cased and deduplicated.
func (d *Data) SelectedBuckets() []manifest.Bucket {
	var out []manifest.Bucket
	seen := make(map[manifest.Bucket]bool)
	for _, b := range d.SidebarConfig.Buckets {
		pb, err := manifest.ParseBucket(string(b))
		if err != nil || seen[pb] {
			continue
		}
		seen[pb] = true
		out = append(out, pb)
	}
	return out
}

// PageConfig is the page-specific block exposed through the bridge script.
type PageConfig struct {
	Slug         string            `json:"slug"`
	Title        string            `json:"title"`
	LookupNumber string            `json:"lookupNumber,omitempty"`
	Buckets      []manifest.Bucket `json:"buckets"`
}

// PageConfig derives the page config block.
func (d *Data) PageConfig() PageConfig {
	buckets := d.SelectedBuckets()
	if buckets == nil {
		buckets = []manifest.Bucket{}
	}
	return PageConfig{
		Slug:         d.Slug,
		Title:        d.Title,
		LookupNumber: d.SidebarConfig.LookupNumber,
		Buckets:      buckets,
	}
}
