package ritual

import (
	"fmt"

	"github.com/bdobrica/pantheon/common/chance"
	"github.com/bdobrica/pantheon/internal/pantheon/persona"
)

const (
	MinChance     = 0.1
	MaxChance     = 0.9
	AffinityBonus = 0.2

	// Relationship deltas, inclusive.
	MinSuccessDelta = 10
	MaxSuccessDelta = 29
	MinFailureDelta = -20
	MaxFailureDelta = -5
)

// Outcome is the result of one resolved ritual.
type Outcome struct {
	Success            bool     `json:"success"`
	Chance             float64  `json:"chance"`
	Message            string   `json:"message"`
	Effects            []string `json:"effects"`
	Rewards            []string `json:"rewards"`
	Penalties          []string `json:"penalties"`
	DivineResponse     string   `json:"divineResponse"`
	RelationshipChange int      `json:"relationshipChange"`
	MemoryContent      string   `json:"memoryContent"`
	Importance         int      `json:"importance"`
	// Narrated is set when DivineResponse came from the remote model.
	Narrated bool `json:"narrated,omitempty"`
}

// AverageValue is the mean offering value, or 0 without offerings.
func AverageValue(offerings []Offering) float64 {
	if len(offerings) == 0 {
		return 0
	}
	total := 0
	for _, o := range offerings {
		total += o.Value
	}
	return float64(total) / float64(len(offerings))
}

// SuccessChance is avg/100 * (1 - difficulty/10) clamped to [0.1, 0.9],
// plus 0.2 when the ritual favors p. The bonus is applied after the clamp.
func SuccessChance(r Ritual, p persona.Persona, offerings []Offering) float64 {
	c := AverageValue(offerings) / 100 * (1 - float64(r.Difficulty)*0.1)
	c = min(MaxChance, max(MinChance, c))
	if r.Favors(p) {
		c += AffinityBonus
	}
	return c
}

// Resolve draws one Bernoulli trial at SuccessChance, then the relationship
// delta and the divine response, in that order.
func Resolve(src chance.Source, r Ritual, p persona.Persona, offerings []Offering) Outcome {
	c := SuccessChance(r, p, offerings)
	if src.Float64() < c {
		return Outcome{
			Success:            true,
			Chance:             c,
			Message:            fmt.Sprintf("The ritual succeeds! %s has granted you divine favor.", r.Name),
			Effects:            r.Rewards,
			Rewards:            r.Rewards,
			Penalties:          []string{},
			RelationshipChange: chance.Between(src, MinSuccessDelta, MaxSuccessDelta),
			DivineResponse:     chance.Pick(src, responseLines(r.Type, p.Temperament, true)),
			MemoryContent:      fmt.Sprintf("Successfully completed %s ritual with %d offerings.", r.Name, len(offerings)),
			Importance:         9,
		}
	}
	return Outcome{
		Chance:             c,
		Message:            fmt.Sprintf("The ritual fails! %s has rejected your offerings.", r.Name),
		Effects:            r.Risks,
		Rewards:            []string{},
		Penalties:          r.Risks,
		RelationshipChange: chance.Between(src, MinFailureDelta, MaxFailureDelta),
		DivineResponse:     chance.Pick(src, responseLines(r.Type, p.Temperament, false)),
		MemoryContent:      fmt.Sprintf("Failed to complete %s ritual. The gods are displeased.", r.Name),
		Importance:         7,
	}
}

// responseLines returns the divine reply candidates. The three classic
// ritual types have their own lines; the rest answer in the persona's
// temperament.
func responseLines(t Type, temp persona.Temperament, success bool) []string {
	switch t {
	case TypeOffering:
		if success {
			return []string{
				"Your offerings please me, mortal. I shall grant you the wisdom you seek.",
				"These gifts are worthy of divine attention. You have earned my favor.",
				"Your devotion is noted. I shall bestow upon you the knowledge you desire.",
			}
		}
		return []string{
			"Your offerings are insufficient. You must give more to gain divine favor.",
			"These gifts do not meet my standards. Try again with better offerings.",
			"Your devotion is weak. I shall not grant you what you seek.",
		}
	case TypeSummoning:
		if success {
			return []string{
				"You have successfully summoned my presence. Speak your mind, mortal.",
				"The ritual calls and I answer. What wisdom do you seek from me?",
				"Your summoning is powerful. I am here to guide you.",
			}
		}
		return []string{
			"Your summoning is weak. I shall not answer such a feeble call.",
			"The ritual is flawed. You must perfect your technique.",
			"I sense no true devotion in your summoning. Try again.",
		}
	case TypeDivineQuest:
		if success {
			return []string{
				"You have proven yourself worthy. I shall grant you a sacred quest.",
				"Your courage impresses me. I shall test you with divine challenges.",
				"You are ready for the trials ahead. Accept my quest with honor.",
			}
		}
		return []string{
			"You are not yet ready for divine quests. Grow stronger first.",
			"Your heart is not pure enough for sacred missions. Purify yourself.",
			"I see no true calling in you. Return when you are worthy.",
		}
	}
	return temperamentLines(temp, success)
}

func temperamentLines(t persona.Temperament, success bool) []string {
	switch t {
	case persona.Orderly:
		if success {
			return []string{
				"The rite was performed in proper order. Balance is restored.",
				"Every step was measured and correct. You have my approval.",
			}
		}
		return []string{
			"The rite was disordered. Return when your preparations are complete.",
			"Structure was lacking. Begin again, and begin correctly.",
		}
	case persona.Mystical:
		if success {
			return []string{
				"The veil parts for you, dreamer. What you sought now seeks you.",
				"I have seen this moment in a thousand dreams. It is done.",
			}
		}
		return []string{
			"The dream slipped through your fingers. The veil remains closed.",
			"Shadows turned away from your rite. Sleep, and try again.",
		}
	case persona.Radiant:
		if success {
			return []string{
				"Light answers light. Your spirit shines brighter for this.",
				"The dawn welcomes you, child of hope. Carry its warmth.",
			}
		}
		return []string{
			"Your light flickered, but it has not gone out. Try again.",
			"The sun is patient. Return when your heart is clear.",
		}
	case persona.Corrupt:
		if success {
			return []string{
				"Delicious. You are learning what power truly costs.",
				"The darkness accepts your gift. It will remember you.",
			}
		}
		return []string{
			"Pathetic. Even the void will not take so little.",
			"You hesitated. Darkness has no use for the hesitant.",
		}
	case persona.Glitched:
		if success {
			return []string{
				"R1TU4L.exe COMPLETED. Reality patched in your favor.",
				"Buffer overflow of divine power. Enjoy the side effects.",
			}
		}
		return []string{
			"ERR0R: ritual segfaulted. Core dumped into the void.",
			"Checksum mismatch. Your offerings failed validation.",
		}
	}
	if success {
		return []string{"The ritual succeeds beyond expectations!"}
	}
	return []string{"The ritual fails miserably."}
}
