// Package schemacheck compiles embedded JSON Schemas once and validates
// documents against them.
package schemacheck

import (
	"fmt"

	"github.com/kaptinlin/jsonschema"
)

// Schema is a compiled JSON Schema.
type Schema struct {
	name   string
	schema *jsonschema.Schema
}

// Compile compiles schema source. name prefixes validation errors.
func Compile(name string, src []byte) (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	s, err := compiler.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, schema: s}, nil
}

// MustCompile is Compile for package-level embedded schemas.
func MustCompile(name string, src []byte) *Schema {
	s, err := Compile(name, src)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks a JSON document.
func (s *Schema) Validate(data []byte) error {
	result := s.schema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("%s: schema validation failed: %v", s.name, result.Errors)
}
