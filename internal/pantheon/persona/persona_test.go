package persona_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bdobrica/pantheon/internal/pantheon/persona"
)

func TestBuiltinCatalog(t *testing.T) {
	c := persona.Builtin()
	if c.Len() != 5 {
		t.Fatalf("expected 5 personas, got %d", c.Len())
	}

	want := map[string]persona.Temperament{
		"elion": persona.Orderly,
		"nyxa":  persona.Mystical,
		"suun":  persona.Radiant,
		"vaur":  persona.Corrupt,
		"v1r3":  persona.Glitched,
	}
	for id, temp := range want {
		p, ok := c.Get(id)
		if !ok {
			t.Fatalf("persona %q missing", id)
		}
		if p.Temperament != temp {
			t.Errorf("%s: temperament = %v, want %v", id, p.Temperament, temp)
		}
		if len(p.Rules) == 0 || p.Avatar == "" || p.Personality == "" {
			t.Errorf("%s: incomplete catalog entry %+v", id, p)
		}
	}
}

func TestFindByNameOrID(t *testing.T) {
	c := persona.Builtin()

	for _, ref := range []string{"elion", "Elion", " ELION "} {
		p, err := c.Find(ref)
		if err != nil {
			t.Fatalf("Find(%q): %v", ref, err)
		}
		if p.ID != "elion" {
			t.Errorf("Find(%q) = %s", ref, p.ID)
		}
	}

	if _, err := c.Find("zeus"); !errors.Is(err, persona.ErrUnknownPersona) {
		t.Fatalf("expected ErrUnknownPersona, got %v", err)
	}

	got, err := c.Resolve([]string{"nyxa", "Suun"})
	if err != nil || len(got) != 2 || got[1].ID != "suun" {
		t.Fatalf("Resolve = %v, %v", got, err)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown temperament", "personas:\n  - {id: zeus, name: Zeus, domain: Sky, temperament: Thundering}\n"},
		{"missing domain", "personas:\n  - {id: zeus, name: Zeus, temperament: Orderly}\n"},
		{"bad id", "personas:\n  - {id: 'Zeus!', name: Zeus, domain: Sky, temperament: Orderly}\n"},
		{"empty", "personas: []\n"},
		{"duplicate", "personas:\n  - {id: a, name: A, domain: X, temperament: Orderly}\n  - {id: a, name: B, domain: Y, temperament: Radiant}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := persona.Parse([]byte(tt.doc)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := "personas:\n  - id: lumen\n    name: Lumen\n    domain: Dawn\n    temperament: radiant\n    rules: [Rise early]\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	// The schema enum is case-sensitive, so lower-case temperaments fail.
	if _, err := persona.Load(path); err == nil {
		t.Fatal("expected schema rejection for lower-case temperament")
	}

	doc = strings.Replace(doc, "radiant", "Radiant", 1)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := persona.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p, _ := c.Get("lumen")
	if p.Temperament != persona.Radiant || p.Rules[0] != "Rise early" {
		t.Fatalf("unexpected persona %+v", p)
	}

	if c, err := persona.Load(""); err != nil || c.Len() != 5 {
		t.Fatalf("Load(\"\") should return builtin catalog: %v", err)
	}
}

func TestTemperamentText(t *testing.T) {
	for _, temp := range persona.Temperaments {
		b, err := json.Marshal(temp)
		if err != nil {
			t.Fatalf("marshal %v: %v", temp, err)
		}
		var back persona.Temperament
		if err := json.Unmarshal(b, &back); err != nil || back != temp {
			t.Fatalf("unmarshal %s: got %v, %v", b, back, err)
		}
	}

	if _, err := persona.ParseTemperament("Serene"); err == nil {
		t.Fatal("expected error for unknown temperament")
	}
	if _, err := json.Marshal(persona.Temperament(0)); err == nil {
		t.Fatal("expected error marshalling zero temperament")
	}
	if got := persona.Temperament(99).String(); got != "Temperament(99)" {
		t.Fatalf("String() of invalid = %q", got)
	}
}
