// CLAUDE:SUMMARY Download manifest model (kind x bucket x format key -> opaque id), normalization and canonical JSON encoding.
// Package manifest models an entry's download manifest: a lookup table from
// asset kind (audio, video) and bucket letter to format key to an opaque
// asset identifier. An empty identifier means "unset".
//
// The manifest is always normalized before injection and before validation:
// every selected bucket carries every format key the template knows about.
// Encode produces RFC 8785 canonical JSON, so injecting the same manifest twice
// yields byte-identical script bodies.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/gowebpki/jcs"
)

// Kind is an asset kind.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Kinds lists every asset kind.
var Kinds = []Kind{KindAudio, KindVideo}

// Bucket is one of the six fixed content-grouping letters.
type Bucket string

// Buckets lists every bucket in display order.
var Buckets = []Bucket{"A", "B", "C", "D", "E", "X"}

// ErrUnknownBucket is returned for a bucket letter outside Buckets.
var ErrUnknownBucket = errors.New("manifest: unknown bucket")

// ErrUnknownKind is returned for a kind other than audio or video.
var ErrUnknownKind = errors.New("manifest: unknown asset kind")

// ParseBucket validates a bucket letter. Lower-case letters are accepted.
func ParseBucket(s string) (Bucket, error) {
	b := Bucket(strings.ToUpper(strings.TrimSpace(s)))
	if !slices.Contains(Buckets, b) {
		return "", fmt.Errorf("%w: %q", ErrUnknownBucket, s)
	}
	return b, nil
}

// FormatKeys lists the format keys a template knows, per kind.
type FormatKeys struct {
	Audio []string `json:"audio"`
	Video []string `json:"video"`
}

// For returns the keys of one kind.
func (k FormatKeys) For(kind Kind) []string {
	if kind == KindAudio {
		return k.Audio
	}
	return k.Video
}

// Empty reports whether no key is known for any kind.
func (k FormatKeys) Empty() bool { return len(k.Audio) == 0 && len(k.Video) == 0 }

// Manifest maps kind -> bucket -> format key -> identifier.
type Manifest map[Kind]map[Bucket]map[string]string

// Get returns one cell.
func (m Manifest) Get(kind Kind, b Bucket, key string) string {
	return m[kind][b][key]
}

// Set writes one cell, allocating intermediate maps.
func (m Manifest) Set(kind Kind, b Bucket, key, id string) {
	if m[kind] == nil {
		m[kind] = make(map[Bucket]map[string]string)
	}
	if m[kind][b] == nil {
		m[kind][b] = make(map[string]string)
	}
	m[kind][b][key] = id
}

// PresentBuckets returns the buckets present under any kind, in display order.
func (m Manifest) PresentBuckets() []Bucket {
	var out []Bucket
	for _, b := range Buckets {
		for _, k := range Kinds {
			if _, ok := m[k][b]; ok {
				out = append(out, b)
				break
			}
		}
	}
	return out
}

// Normalize returns a deep copy of m in which every selected bucket, and every
// bucket already present, holds every known format key for both kinds.
// Missing cells are filled with "". Unknown extra keys are preserved.
func (m Manifest) Normalize(keys FormatKeys, selected []Bucket) Manifest {
	out := make(Manifest, len(Kinds))
	buckets := slices.Clone(selected)
	for _, b := range m.PresentBuckets() {
		if !slices.Contains(buckets, b) {
			buckets = append(buckets, b)
		}
	}

	for _, kind := range Kinds {
		out[kind] = make(map[Bucket]map[string]string, len(buckets))
		for _, b := range buckets {
			cells := make(map[string]string)
			maps.Copy(cells, m[kind][b])
			for _, key := range keys.For(kind) {
				if _, ok := cells[key]; !ok {
					cells[key] = ""
				}
			}
			out[kind][b] = cells
		}
	}
	return out
}

// Encode returns the canonical JSON form of m.
func (m Manifest) Encode() ([]byte, error) {
	if m == nil {
		m = Manifest{}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("manifest: marshal: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("manifest: canonicalize: %w", err)
	}
	return canonical, nil
}

// Decode parses a manifest and rejects unknown kinds or buckets.
func Decode(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}
	if m == nil {
		m = Manifest{}
	}
	for kind, buckets := range m {
		if !slices.Contains(Kinds, kind) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
		}
		for b := range buckets {
			if !slices.Contains(Buckets, b) {
				return nil, fmt.Errorf("%w: %q", ErrUnknownBucket, b)
			}
		}
	}
	return m, nil
}

// KeysFrom collects the format keys used by m, sorted per kind. Used to derive
// template format keys from an existing manifest skeleton.
func KeysFrom(m Manifest) FormatKeys {
	collect := func(kind Kind) []string {
		set := make(map[string]struct{})
		for _, cells := range m[kind] {
			for k := range cells {
				set[k] = struct{}{}
			}
		}
		return slices.Sorted(maps.Keys(set))
	}
	return FormatKeys{Audio: collect(KindAudio), Video: collect(KindVideo)}
}
