package persona

import (
	"fmt"
	"strings"
)

// Temperament is the closed set of persona dispositions. Tables keyed by
// temperament are switches over these values, never string maps.
type Temperament int

const (
	Orderly Temperament = iota + 1
	Mystical
	Radiant
	Corrupt
	Glitched
)

// Temperaments lists every valid value in declaration order.
var Temperaments = []Temperament{Orderly, Mystical, Radiant, Corrupt, Glitched}

func (t Temperament) String() string {
	switch t {
	case Orderly:
		return "Orderly"
	case Mystical:
		return "Mystical"
	case Radiant:
		return "Radiant"
	case Corrupt:
		return "Corrupt"
	case Glitched:
		return "Glitched"
	}
	return fmt.Sprintf("Temperament(%d)", int(t))
}

// Valid reports whether t is one of the declared temperaments.
func (t Temperament) Valid() bool {
	return t >= Orderly && t <= Glitched
}

// ParseTemperament accepts the canonical names case-insensitively.
func ParseTemperament(s string) (Temperament, error) {
	for _, t := range Temperaments {
		if strings.EqualFold(strings.TrimSpace(s), t.String()) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("persona: unknown temperament %q", s)
}

func (t Temperament) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("persona: cannot marshal invalid temperament %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *Temperament) UnmarshalText(b []byte) error {
	v, err := ParseTemperament(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
