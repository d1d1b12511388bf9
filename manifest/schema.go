package manifest

import (
	_ "embed"
	"fmt"

	"github.com/hazyhaar/entrypage/internal/schemacheck"
)

//go:embed manifest.schema.json
var schemaSrc []byte

var fileSchema = schemacheck.MustCompile("manifest.json", schemaSrc)

// ValidateFile checks the raw bytes of a manifest file against the manifest
// file schema, then decodes it.
func ValidateFile(data []byte) (Manifest, error) {
	if err := fileSchema.Validate(data); err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	return Decode(data)
}
