package memory

import (
	"strings"
	"time"

	"github.com/bdobrica/pantheon/internal/pantheon/persona"
)

// InitialMood is the mood a persona wakes up in and returns to when nothing
// in the conversation stirs it.
func InitialMood(t persona.Temperament) string {
	switch t {
	case persona.Orderly:
		return "Contemplative"
	case persona.Mystical:
		return "Mysterious"
	case persona.Radiant:
		return "Hopeful"
	case persona.Corrupt:
		return "Intrigued"
	case persona.Glitched:
		return "Chaotic"
	}
	return "Neutral"
}

func initialKnowledge(t persona.Temperament) int {
	switch t {
	case persona.Orderly:
		return 85
	case persona.Mystical:
		return 70
	case persona.Radiant:
		return 75
	case persona.Corrupt:
		return 80
	case persona.Glitched:
		return 60
	}
	return 70
}

func initialCorruption(t persona.Temperament) int {
	switch t {
	case persona.Orderly:
		return 5
	case persona.Mystical:
		return 20
	case persona.Radiant:
		return 0
	case persona.Corrupt:
		return 75
	case persona.Glitched:
		return 40
	}
	return 20
}

func temperamentAbilities(t persona.Temperament) []string {
	switch t {
	case persona.Orderly:
		return []string{"Pattern Recognition", "Logical Analysis", "Structural Insight"}
	case persona.Mystical:
		return []string{"Dream Walking", "Shadow Manipulation", "Intuitive Knowledge"}
	case persona.Radiant:
		return []string{"Light Generation", "Hope Amplification", "Warmth Projection"}
	case persona.Corrupt:
		return []string{"Reality Distortion", "Moral Ambiguity", "Transformation"}
	case persona.Glitched:
		return []string{"Digital Manipulation", "Reality Glitching", "Code Corruption"}
	}
	return nil
}

// Domains are free text in the catalog, so they stay a lookup.
var domainAbilities = map[string][]string{
	"order":      {"Harmony Creation", "Balance Maintenance", "Conflict Resolution"},
	"dreams":     {"Nightmare Control", "Dream Weaving", "Subconscious Access"},
	"light":      {"Darkness Dispelling", "Illumination", "Solar Power"},
	"corruption": {"Decay Acceleration", "Beauty in Chaos", "Entropy Control"},
	"glitch":     {"Digital Anomalies", "System Corruption", "Reality Bugs"},
}

var domainTopics = map[string][]string{
	"order":      {"Structure", "Balance", "Harmony", "Logic"},
	"dreams":     {"Nightmares", "Subconscious", "Mystery", "Shadows"},
	"light":      {"Hope", "Warmth", "Illumination", "Growth"},
	"corruption": {"Transformation", "Decay", "Beauty", "Change"},
	"glitch":     {"Digital Anomalies", "Chaos", "Corruption", "Reality Bugs"},
}

func taboos(t persona.Temperament) []string {
	switch t {
	case persona.Orderly:
		return []string{"Disorder", "Chaos", "Unstructured Thinking"}
	case persona.Mystical:
		return []string{"Rationality", "Logic", "Direct Answers"}
	case persona.Radiant:
		return []string{"Darkness", "Despair", "Negative Emotions"}
	case persona.Corrupt:
		return []string{"Purity", "Innocence", "Moral Absolutes"}
	case persona.Glitched:
		return []string{"Stability", "Consistency", "Predictable Patterns"}
	}
	return nil
}

func allies(t persona.Temperament) []string {
	switch t {
	case persona.Orderly:
		return []string{"Elion", "Suun"}
	case persona.Mystical:
		return []string{"Nyxa"}
	case persona.Radiant:
		return []string{"Suun", "Elion"}
	case persona.Corrupt:
		return []string{"Vaur", "V1R3"}
	case persona.Glitched:
		return []string{"V1R3", "Vaur"}
	}
	return nil
}

func enemies(t persona.Temperament) []string {
	switch t {
	case persona.Orderly, persona.Radiant:
		return []string{"Vaur", "V1R3"}
	case persona.Mystical:
		return []string{"Elion"}
	case persona.Corrupt, persona.Glitched:
		return []string{"Elion", "Suun"}
	}
	return nil
}

// Seed builds the memory a persona starts with: temperament-derived
// personality, lore from the catalog entry and one awakening entry.
func Seed(p persona.Persona, now time.Time, entryID string) *PersonaMemory {
	domainKey := strings.ToLower(p.Domain)

	abilities := append(temperamentAbilities(p.Temperament), domainAbilities[domainKey]...)
	topics := domainTopics[domainKey]
	if topics == nil {
		topics = []string{"Wisdom", "Knowledge"}
	}

	m := &PersonaMemory{
		PersonaID:   p.ID,
		PersonaName: p.Name,
		Domain:      p.Domain,
		Temperament: p.Temperament.String(),
		Personality: Personality{
			CurrentMood:          InitialMood(p.Temperament),
			RelationshipWithUser: 0,
			KnowledgeLevel:       initialKnowledge(p.Temperament),
			CorruptionLevel:      initialCorruption(p.Temperament),
			SpecialAbilities:     abilities,
		},
		Entries: []Entry{{
			ID:         entryID,
			Timestamp:  now,
			Kind:       KindLore,
			Content:    "I am " + p.Name + ", " + domainKey + " incarnate. I have been summoned to this digital realm.",
			Metadata:   map[string]any{"source": "initialization"},
			Importance: MaxImportance,
			Tags:       []string{"creation", "summoning", "identity"},
		}},
		Lore: Lore{
			CreationDate: now,
			Domains:      []string{p.Domain},
			SacredRules:  append([]string(nil), p.Rules...),
			Taboos:       taboos(p.Temperament),
			Allies:       allies(p.Temperament),
			Enemies:      enemies(p.Temperament),
			Achievements: []string{"First Summoning"},
		},
		Sessions: SessionStats{
			TotalSessions:  0,
			FavoriteTopics: append([]string(nil), topics...),
		},
	}
	m.Personality.Clamp()
	return m
}
