package entry

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hazyhaar/entrypage/internal/schemacheck"
	"github.com/hazyhaar/entrypage/manifest"
)

// Record file names inside an entry directory.
const (
	FileEntry       = "entry.json"
	FileDescription = "description.txt"
	FileManifest    = "manifest.json"
)

//go:embed entry.schema.json
var schemaSrc []byte

var fileSchema = schemacheck.MustCompile(FileEntry, schemaSrc)

// Decode validates entry.json bytes against the entry schema and decodes them.
func Decode(data []byte) (*Data, error) {
	if err := fileSchema.Validate(data); err != nil {
		return nil, fmt.Errorf("entry: %w", err)
	}
	var d Data
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("entry: decode: %w", err)
	}
	return &d, nil
}

// Load reads an entry record directory. description.txt and manifest.json
// are optional and, when present, take precedence over inline fields.
func Load(dir string) (*Data, error) {
	raw, err := os.ReadFile(filepath.Join(dir, FileEntry))
	if err != nil {
		return nil, fmt.Errorf("entry: read %s: %w", FileEntry, err)
	}
	d, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}

	desc, err := os.ReadFile(filepath.Join(dir, FileDescription))
	switch {
	case err == nil:
		d.DescriptionText = string(desc)
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("entry: read %s: %w", FileDescription, err)
	}

	mraw, err := os.ReadFile(filepath.Join(dir, FileManifest))
	switch {
	case err == nil:
		m, err := manifest.ValidateFile(mraw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", dir, err)
		}
		d.Manifest = m
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("entry: read %s: %w", FileManifest, err)
	}
	if d.Manifest == nil {
		d.Manifest = manifest.Manifest{}
	}

	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}
	return d, nil
}

// EncodeRecord returns the entry.json bytes for d: the record without the
// manifest and description, which live in their own files.
func EncodeRecord(d *Data) ([]byte, error) {
	rec := *d
	rec.Manifest = nil
	rec.DescriptionText = ""
	if rec.SidebarConfig.Buckets == nil {
		rec.SidebarConfig.Buckets = []manifest.Bucket{}
	}
	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("entry: encode: %w", err)
	}
	return append(out, '\n'), nil
}
