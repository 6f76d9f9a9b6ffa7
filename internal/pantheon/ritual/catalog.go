// Package ritual resolves rituals: a persona, a ritual definition and a set
// of offerings go in, a stochastic outcome and a relationship delta come out.
package ritual

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bdobrica/pantheon/internal/pantheon/persona"
	"github.com/bdobrica/pantheon/internal/pantheon/schema"
)

var (
	ErrUnknownRitual   = errors.New("ritual: unknown ritual")
	ErrUnknownOffering = errors.New("ritual: unknown offering")
)

// Type is the ritual family. It keys the divine response lines and the
// preferred offering types.
type Type string

const (
	TypeOffering     Type = "offering"
	TypeSummoning    Type = "summoning"
	TypeDivineQuest  Type = "divine-quest"
	TypePurification Type = "purification"
	TypeCorruption   Type = "corruption"
	TypeGlitch       Type = "glitch"
)

// OfferingType groups offerings.
type OfferingType string

const (
	OfferingMaterial  OfferingType = "material"
	OfferingSpiritual OfferingType = "spiritual"
	OfferingDigital   OfferingType = "digital"
	OfferingSacred    OfferingType = "sacred"
	OfferingCorrupt   OfferingType = "corrupt"
)

// Rarity is informational only.
type Rarity string

// AffinityAll in a ritual's affinity list matches every persona.
const AffinityAll = "all"

// Ritual is one catalog entry.
type Ritual struct {
	ID           string        `json:"id" yaml:"id"`
	Type         Type          `json:"type" yaml:"type"`
	Name         string        `json:"name" yaml:"name"`
	Description  string        `json:"description" yaml:"description"`
	Requirements []string      `json:"requirements" yaml:"requirements"`
	Duration     time.Duration `json:"duration" yaml:"duration"`
	Difficulty   int           `json:"difficulty" yaml:"difficulty"`
	Rewards      []string      `json:"rewards" yaml:"rewards"`
	Risks        []string      `json:"risks" yaml:"risks"`
	Affinity     []string      `json:"affinity" yaml:"affinity"`
	Icon         string        `json:"icon" yaml:"icon"`
}

// Favors reports whether the ritual's affinity list names p or "all".
func (r Ritual) Favors(p persona.Persona) bool {
	return slices.ContainsFunc(r.Affinity, func(ref string) bool {
		return ref == AffinityAll || p.Matches(ref)
	})
}

// Offering is an item presented during a ritual. Value is on a 1..100 scale.
type Offering struct {
	ID          string       `json:"id" yaml:"id"`
	Type        OfferingType `json:"type" yaml:"type"`
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description" yaml:"description"`
	Value       int          `json:"value" yaml:"value"`
	Rarity      Rarity       `json:"rarity" yaml:"rarity"`
	Effects     []string     `json:"effects" yaml:"effects"`
	Icon        string       `json:"icon" yaml:"icon"`
}

//go:embed catalog.yaml
var builtinCatalog []byte

const catalogSchema = `{
	"type": "object",
	"required": ["rituals", "offerings"],
	"properties": {
		"rituals": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["id", "type", "name", "duration", "difficulty"],
				"properties": {
					"id":           {"type": "string", "pattern": "^[a-z0-9][a-z0-9_-]*$"},
					"type":         {"enum": ["offering", "summoning", "divine-quest", "purification", "corruption", "glitch"]},
					"name":         {"type": "string", "minLength": 1},
					"description":  {"type": "string"},
					"duration":     {"type": "string", "pattern": "^([0-9]+(ns|us|ms|s|m|h))+$"},
					"difficulty":   {"type": "integer", "minimum": 1, "maximum": 5},
					"requirements": {"type": "array", "items": {"type": "string"}},
					"rewards":      {"type": "array", "items": {"type": "string"}},
					"risks":        {"type": "array", "items": {"type": "string"}},
					"affinity":     {"type": "array", "items": {"type": "string"}},
					"icon":         {"type": "string"}
				}
			}
		},
		"offerings": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["id", "type", "name", "value"],
				"properties": {
					"id":          {"type": "string", "pattern": "^[a-z0-9][a-z0-9_-]*$"},
					"type":        {"enum": ["material", "spiritual", "digital", "sacred", "corrupt"]},
					"name":        {"type": "string", "minLength": 1},
					"description": {"type": "string"},
					"value":       {"type": "integer", "minimum": 0, "maximum": 100},
					"rarity":      {"enum": ["common", "uncommon", "rare", "epic", "legendary"]},
					"effects":     {"type": "array", "items": {"type": "string"}},
					"icon":        {"type": "string"}
				}
			}
		}
	}
}`

var catalogValidator = schema.MustCompile("ritual-catalog", catalogSchema)

// Catalog holds the known rituals and offerings in file order.
type Catalog struct {
	rituals   []Ritual
	offerings []Offering
}

type catalogFile struct {
	Rituals   []Ritual   `yaml:"rituals"`
	Offerings []Offering `yaml:"offerings"`
}

// Parse validates and decodes a ritual catalog document.
func Parse(data []byte) (*Catalog, error) {
	if err := catalogValidator.ValidateYAML(data); err != nil {
		return nil, fmt.Errorf("ritual: invalid catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ritual: parse catalog: %w", err)
	}

	seen := make(map[string]bool)
	for _, r := range f.Rituals {
		if seen["r/"+r.ID] {
			return nil, fmt.Errorf("ritual: duplicate ritual id %q", r.ID)
		}
		seen["r/"+r.ID] = true
	}
	for _, o := range f.Offerings {
		if seen["o/"+o.ID] {
			return nil, fmt.Errorf("ritual: duplicate offering id %q", o.ID)
		}
		seen["o/"+o.ID] = true
	}
	return &Catalog{rituals: f.Rituals, offerings: f.Offerings}, nil
}

// Builtin returns the embedded catalog of six rituals and eleven offerings.
func Builtin() *Catalog {
	c, err := Parse(builtinCatalog)
	if err != nil {
		panic(fmt.Sprintf("ritual: embedded catalog is invalid: %v", err))
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
		return nil, fmt.Errorf("ritual: read catalog: %w", err)
	}
	return Parse(data)
}

// Rituals returns every ritual. The slice is a copy.
func (c *Catalog) Rituals() []Ritual { return slices.Clone(c.rituals) }

// Offerings returns every offering. The slice is a copy.
func (c *Catalog) Offerings() []Offering { return slices.Clone(c.offerings) }

// Ritual looks a ritual up by id.
func (c *Catalog) Ritual(id string) (Ritual, error) {
	for _, r := range c.rituals {
		if r.ID == id {
			return r, nil
		}
	}
	return Ritual{}, fmt.Errorf("%w: %q", ErrUnknownRitual, id)
}

// Resolve maps offering ids to offerings, failing on the first unknown id.
func (c *Catalog) Resolve(ids []string) ([]Offering, error) {
	out := make([]Offering, 0, len(ids))
	for _, id := range ids {
		i := slices.IndexFunc(c.offerings, func(o Offering) bool { return o.ID == id })
		if i < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownOffering, id)
		}
		out = append(out, c.offerings[i])
	}
	return out, nil
}

// OfferingsOfType filters offerings by type.
func (c *Catalog) OfferingsOfType(t OfferingType) []Offering {
	var out []Offering
	for _, o := range c.offerings {
		if o.Type == t {
			out = append(out, o)
		}
	}
	return out
}

// OfferingsOfRarity filters offerings by rarity.
func (c *Catalog) OfferingsOfRarity(r Rarity) []Offering {
	var out []Offering
	for _, o := range c.offerings {
		if o.Rarity == r {
			out = append(out, o)
		}
	}
	return out
}

// Recommendations returns the rituals that favor p.
func (c *Catalog) Recommendations(p persona.Persona) []Ritual {
	var out []Ritual
	for _, r := range c.rituals {
		if r.Favors(p) {
			out = append(out, r)
		}
	}
	return out
}

// PreferredOfferingTypes returns the offering types suited to t.
func PreferredOfferingTypes(t Type) []OfferingType {
	switch t {
	case TypeOffering:
		return []OfferingType{OfferingMaterial, OfferingSacred}
	case TypeSummoning, TypePurification:
		return []OfferingType{OfferingSpiritual, OfferingSacred}
	case TypeDivineQuest:
		return []OfferingType{OfferingSacred, OfferingMaterial}
	case TypeCorruption:
		return []OfferingType{OfferingCorrupt, OfferingDigital}
	case TypeGlitch:
		return []OfferingType{OfferingDigital, OfferingCorrupt}
	}
	return []OfferingType{OfferingMaterial, OfferingSpiritual}
}

// OfferingRecommendations returns the offerings whose type suits a ritual
// of type t, in catalog order.
func (c *Catalog) OfferingRecommendations(t Type) []Offering {
	preferred := PreferredOfferingTypes(t)
	var out []Offering
	for _, o := range c.offerings {
		if slices.Contains(preferred, o.Type) {
			out = append(out, o)
		}
	}
	return out
}
