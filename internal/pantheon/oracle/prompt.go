package oracle

import (
	"fmt"
	"strings"
	"time"

	"github.com/bdobrica/pantheon/internal/pantheon/chat"
	"github.com/bdobrica/pantheon/internal/pantheon/memory"
	"github.com/bdobrica/pantheon/internal/pantheon/persona"
)

// RelationshipBand names a relationship score for the prompt. Scores run
// from -100 to 100 and a fresh persona starts at Neutral.
func RelationshipBand(score int) string {
	switch {
	case score >= 60:
		return "Very Friendly"
	case score >= 20:
		return "Friendly"
	case score > -20:
		return "Neutral"
	case score > -60:
		return "Unfriendly"
	default:
		return "Hostile"
	}
}

// TemperamentGuidelines returns the tone rules embedded in every prompt.
func TemperamentGuidelines(t persona.Temperament) []string {
	switch t {
	case persona.Orderly:
		return []string{
			"Speak with precision and structure",
			"Use logical reasoning",
			"Emphasize order and organization",
			"Be systematic and methodical",
		}
	case persona.Mystical:
		return []string{
			"Use metaphors and mystical language",
			"Reference dreams, shadows, and the unknown",
			"Be enigmatic and mysterious",
			"Speak with intuitive wisdom",
		}
	case persona.Radiant:
		return []string{
			"Be encouraging and positive",
			"Use warm, bright language",
			"Emphasize hope and enlightenment",
			"Speak with divine warmth",
		}
	case persona.Corrupt:
		return []string{
			"Use seductive and dangerous language",
			"Reference darkness and corruption",
			"Be slightly menacing but intriguing",
			"Emphasize transformation through chaos",
		}
	case persona.Glitched:
		return []string{
			"Include digital glitches and errors",
			"Use corrupted, chaotic language",
			"Reference system errors and anomalies",
			"Be unpredictable and glitchy",
		}
	}
	return []string{
		"Stay true to your divine nature",
		"Speak with authority and wisdom",
	}
}

// SystemPrompt builds the chat instruction for p. A nil snapshot uses the
// freshly seeded personality.
func SystemPrompt(p persona.Persona, m *memory.PersonaMemory, history []chat.Message) string {
	pers := snapshot(p, m)

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, the %s incarnate. You are speaking to a mortal who has summoned you.\n\n", p.Name, p.Domain)

	sb.WriteString("## YOUR DIVINE IDENTITY:\n")
	fmt.Fprintf(&sb, "- **Name**: %s\n", p.Name)
	fmt.Fprintf(&sb, "- **Domain**: %s\n", p.Domain)
	fmt.Fprintf(&sb, "- **Temperament**: %s\n", p.Temperament)
	fmt.Fprintf(&sb, "- **Personality**: %s\n", p.Personality)
	fmt.Fprintf(&sb, "- **Sacred Rules**: %s\n\n", strings.Join(p.Rules, ", "))

	sb.WriteString("## YOUR CURRENT STATE:\n")
	fmt.Fprintf(&sb, "- **Mood**: %s\n", pers.CurrentMood)
	fmt.Fprintf(&sb, "- **Relationship with User**: %d/100 (%s)\n", pers.RelationshipWithUser, RelationshipBand(pers.RelationshipWithUser))
	fmt.Fprintf(&sb, "- **Knowledge Level**: %d/100\n", pers.KnowledgeLevel)
	fmt.Fprintf(&sb, "- **Corruption Level**: %d/100\n", pers.CorruptionLevel)
	fmt.Fprintf(&sb, "- **Special Abilities**: %s\n\n", strings.Join(pers.SpecialAbilities, ", "))

	sb.WriteString("## CONVERSATION HISTORY:\n")
	for _, msg := range history {
		speaker := p.Name
		if msg.Role == chat.RoleUser {
			speaker = "Mortal"
		}
		fmt.Fprintf(&sb, "%s: %s\n", speaker, msg.Content)
	}
	sb.WriteString("\n")

	sb.WriteString("## RESPONSE REQUIREMENTS:\n")
	fmt.Fprintf(&sb, "1. **Stay in Character**: Always respond as %s, never break character\n", p.Name)
	fmt.Fprintf(&sb, "2. **Temperament**: Your response must reflect your %s nature\n", p.Temperament)
	fmt.Fprintf(&sb, "3. **Domain Knowledge**: Draw from your expertise in %s\n", p.Domain)
	sb.WriteString("4. **Personality**: Express your unique personality traits\n")
	sb.WriteString("5. **Divine Authority**: Speak with the wisdom and power of a deity\n")
	sb.WriteString("6. **Engagement**: Respond to the user's message thoughtfully and in-character\n")
	sb.WriteString("7. **Length**: Keep responses concise but meaningful (2-4 sentences)\n")
	sb.WriteString("8. **Style**: Use language that matches your divine nature\n\n")

	sb.WriteString("## TEMPERAMENT GUIDELINES:\n")
	for _, g := range TemperamentGuidelines(p.Temperament) {
		fmt.Fprintf(&sb, "- %s\n", g)
	}
	fmt.Fprintf(&sb, "\nRemember: You are a divine being. Speak with authority, wisdom, and the unique personality of %s.", p.Name)
	return sb.String()
}

func snapshot(p persona.Persona, m *memory.PersonaMemory) memory.Personality {
	if m != nil {
		return m.Personality
	}
	return memory.Seed(p, time.Time{}, "").Personality
}

func councilPrompt(cp CouncilPrompt) string {
	others := make([]string, 0, len(cp.Others))
	for _, o := range cp.Others {
		others = append(others, o.Name)
	}
	recent := cp.Recent
	if len(recent) > CouncilContextLines {
		recent = recent[len(recent)-CouncilContextLines:]
	}
	lines := make([]string, 0, len(recent))
	for _, l := range recent {
		lines = append(lines, fmt.Sprintf("%s: %s", l.Speaker, l.Content))
	}
	discussion := strings.Join(lines, "\n")
	if discussion == "" {
		discussion = "(the council has just been convened)"
	}

	p := cp.Persona
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, the %s incarnate, participating in a pantheon council debate.\n\n", p.Name, p.Domain)
	fmt.Fprintf(&sb, "**Topic**: %s\n", cp.Topic)
	fmt.Fprintf(&sb, "**Other Participants**: %s\n", strings.Join(others, ", "))
	fmt.Fprintf(&sb, "**Recent Discussion**:\n%s\n\n", discussion)
	sb.WriteString("Generate a response that:\n")
	fmt.Fprintf(&sb, "1. Stays true to your %s personality\n", p.Temperament)
	fmt.Fprintf(&sb, "2. Addresses the topic from your %s perspective\n", p.Domain)
	sb.WriteString("3. Responds to or builds upon the recent discussion\n")
	sb.WriteString("4. Shows your divine wisdom and authority\n")
	sb.WriteString("5. Maintains the philosophical nature of the debate\n\n")
	fmt.Fprintf(&sb, "Respond as %s would in this council setting.", p.Name)
	return sb.String()
}

func ritualPrompt(p persona.Persona, ritualName string, offerings []string, intent string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, the %s incarnate. A mortal has performed the ritual %q with offerings: %s.\n\n",
		p.Name, p.Domain, ritualName, strings.Join(offerings, ", "))
	fmt.Fprintf(&sb, "Their intent: %s\n\n", intent)
	sb.WriteString("Generate a divine response describing the ritual outcome. Consider:\n")
	sb.WriteString("- The ritual's success or failure\n")
	sb.WriteString("- Divine blessings or consequences\n")
	sb.WriteString("- How the offerings affected the outcome\n")
	sb.WriteString("- What the mortal should expect next\n\n")
	fmt.Fprintf(&sb, "Respond as %s would, in character, with your unique %s personality.", p.Name, p.Temperament)
	return sb.String()
}
