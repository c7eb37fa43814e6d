package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema validates catalog responses before they are decoded.
type Schema struct {
	name   string
	schema *jsonschema.Schema
}

// MustCompileSchema compiles a JSON Schema document and panics on error.
// Schemas are package-level constants, so a failure is a programming error.
func MustCompileSchema(name, doc string) *Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(doc)); err != nil {
		panic(fmt.Sprintf("load schema %s: %v", name, err))
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return &Schema{name: name, schema: compiled}
}

// Decode validates data against the schema and unmarshals it into v.
// Any mismatch is ErrSchemaViolation.
func (s *Schema) Decode(data []byte, v any) error {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%w: %s: invalid json: %v", ErrSchemaViolation, s.name, err)
	}
	if err := s.schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSchemaViolation, s.name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSchemaViolation, s.name, err)
	}
	return nil
}
