// Package persona holds the read-only deity catalog.
package persona

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bdobrica/pantheon/internal/pantheon/schema"
)

// ErrUnknownPersona is returned when an id or name is not in the catalog.
var ErrUnknownPersona = errors.New("persona: unknown persona")

// Persona is one deity. Values are immutable once loaded.
type Persona struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Domain      string      `json:"domain" yaml:"domain"`
	Temperament Temperament `json:"temperament" yaml:"-"`
	Description string      `json:"description" yaml:"description"`
	Personality string      `json:"personality" yaml:"personality"`
	Voice       string      `json:"voice" yaml:"voice"`
	Rules       []string    `json:"rules" yaml:"rules"`
	Avatar      string      `json:"avatar" yaml:"avatar"`
}

// Matches reports whether ref names this persona by id or display name,
// case-insensitively.
func (p Persona) Matches(ref string) bool {
	ref = strings.TrimSpace(ref)
	return strings.EqualFold(ref, p.ID) || strings.EqualFold(ref, p.Name)
}

//go:embed catalog.yaml
var builtinCatalog []byte

const catalogSchema = `{
	"type": "object",
	"required": ["personas"],
	"properties": {
		"personas": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["id", "name", "domain", "temperament"],
				"properties": {
					"id":          {"type": "string", "pattern": "^[a-z0-9][a-z0-9_-]*$"},
					"name":        {"type": "string", "minLength": 1},
					"domain":      {"type": "string", "minLength": 1},
					"temperament": {"enum": ["Orderly", "Mystical", "Radiant", "Corrupt", "Glitched"]},
					"description": {"type": "string"},
					"personality": {"type": "string"},
					"voice":       {"type": "string"},
					"avatar":      {"type": "string"},
					"rules":       {"type": "array", "items": {"type": "string"}}
				}
			}
		}
	}
}`

var catalogValidator = schema.MustCompile("persona-catalog", catalogSchema)

// Catalog is an ordered, id-indexed set of personas.
type Catalog struct {
	personas []Persona
	byID     map[string]int
}

type catalogFile struct {
	Personas []struct {
		Persona     `yaml:",inline"`
		Temperament string `yaml:"temperament"`
	} `yaml:"personas"`
}

// Parse validates and decodes a catalog YAML document.
func Parse(data []byte) (*Catalog, error) {
	if err := catalogValidator.ValidateYAML(data); err != nil {
		return nil, fmt.Errorf("persona: invalid catalog: %w", err)
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("persona: parse catalog: %w", err)
	}

	c := &Catalog{byID: make(map[string]int, len(f.Personas))}
	for i, raw := range f.Personas {
		p := raw.Persona
		t, err := ParseTemperament(raw.Temperament)
		if err != nil {
			return nil, fmt.Errorf("persona: personas[%d] (%q): %w", i, p.ID, err)
		}
		p.Temperament = t
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("persona: duplicate id %q", p.ID)
		}
		c.byID[p.ID] = len(c.personas)
		c.personas = append(c.personas, p)
	}
	return c, nil
}

// Builtin returns the embedded five-deity pantheon.
func Builtin() *Catalog {
	c, err := Parse(builtinCatalog)
	if err != nil {
		panic(fmt.Sprintf("persona: embedded catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog from path, or returns Builtin when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Builtin(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("persona: read catalog: %w", err)
	}
	return Parse(data)
}

// All returns the personas in catalog order. The slice is a copy.
func (c *Catalog) All() []Persona {
	out := make([]Persona, len(c.personas))
	copy(out, c.personas)
	return out
}

// Get looks a persona up by id.
func (c *Catalog) Get(id string) (Persona, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Persona{}, false
	}
	return c.personas[i], true
}

// Find resolves an id or display name, case-insensitively.
func (c *Catalog) Find(ref string) (Persona, error) {
	if p, ok := c.Get(ref); ok {
		return p, nil
	}
	for _, p := range c.personas {
		if p.Matches(ref) {
			return p, nil
		}
	}
	return Persona{}, fmt.Errorf("%w: %q", ErrUnknownPersona, ref)
}

// Resolve maps a list of references to personas, failing on the first
// unknown one.
func (c *Catalog) Resolve(refs []string) ([]Persona, error) {
	out := make([]Persona, 0, len(refs))
	for _, ref := range refs {
		p, err := c.Find(ref)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ByTemperament returns the personas with temperament t.
func (c *Catalog) ByTemperament(t Temperament) []Persona {
	var out []Persona
	for _, p := range c.personas {
		if p.Temperament == t {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of personas.
func (c *Catalog) Len() int { return len(c.personas) }
