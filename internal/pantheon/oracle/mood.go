package oracle

import (
	"strings"

	"github.com/bdobrica/pantheon/common/chance"
	"github.com/bdobrica/pantheon/internal/pantheon/persona"
)

// MoodFor picks the mood a persona settles into after hearing message. Each
// temperament has two keywords that shift it away from its resting mood.
func MoodFor(t persona.Temperament, message string) string {
	msg := strings.ToLower(message)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(msg, w) {
				return true
			}
		}
		return false
	}
	switch t {
	case persona.Orderly:
		if has("help", "guide") {
			return "Focused"
		}
		return "Contemplative"
	case persona.Mystical:
		if has("dream", "mystery") {
			return "Intrigued"
		}
		return "Mysterious"
	case persona.Radiant:
		if has("hope", "light") {
			return "Inspired"
		}
		return "Hopeful"
	case persona.Corrupt:
		if has("dark", "corrupt") {
			return "Amused"
		}
		return "Intrigued"
	case persona.Glitched:
		if has("error", "glitch") {
			return "Excited"
		}
		return "Chaotic"
	}
	return "Neutral"
}

// RelationshipPolicy decides how much a chat turn moves the relationship
// score. The result is added to the current score and clamped.
type RelationshipPolicy interface {
	Delta(p persona.Persona, message string, reply Reply) int
}

// RelationshipFunc adapts a function to RelationshipPolicy.
type RelationshipFunc func(p persona.Persona, message string, reply Reply) int

func (f RelationshipFunc) Delta(p persona.Persona, message string, reply Reply) int {
	return f(p, message, reply)
}

// RandomNudge moves the relationship by +1 or -1 with equal odds.
func RandomNudge(src chance.Source) RelationshipPolicy {
	return RelationshipFunc(func(persona.Persona, string, Reply) int {
		if src.Float64() > 0.5 {
			return 1
		}
		return -1
	})
}
