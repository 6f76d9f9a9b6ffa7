// Package schema validates YAML catalogs and JSON import documents against
// JSON Schemas before they are decoded into typed structs.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Schema is a compiled document schema.
type Schema struct {
	name string
	s    *jsonschema.Schema
}

// Compile parses a JSON Schema document. name identifies it in error
// messages and must be unique per process only for readability.
func Compile(name, source string) (*Schema, error) {
	c := jsonschema.NewCompiler()
	url := "mem://" + name + ".json"
	if err := c.AddResource(url, strings.NewReader(source)); err != nil {
		return nil, fmt.Errorf("schema: add %s: %w", name, err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema: compile %s: %w", name, err)
	}
	return &Schema{name: name, s: s}, nil
}

// MustCompile is Compile for package-level schemas embedded at build time.
func MustCompile(name, source string) *Schema {
	s, err := Compile(name, source)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidateJSON checks a JSON document.
func (s *Schema) ValidateJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%s: decode: %w", s.name, err)
	}
	if dec.More() {
		return fmt.Errorf("%s: trailing data after document", s.name)
	}
	return s.validate(doc)
}

// ValidateYAML checks a YAML document. The YAML tree is normalized to its
// JSON equivalent first so numbers and maps have the shapes the validator
// expects.
func (s *Schema) ValidateYAML(data []byte) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%s: parse yaml: %w", s.name, err)
	}
	asJSON, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%s: normalize yaml: %w", s.name, err)
	}
	return s.ValidateJSON(asJSON)
}

func (s *Schema) validate(doc any) error {
	if err := s.s.Validate(doc); err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	return nil
}
