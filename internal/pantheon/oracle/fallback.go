package oracle

import (
	"fmt"
	"strings"

	"github.com/bdobrica/pantheon/common/chance"
	"github.com/bdobrica/pantheon/internal/pantheon/persona"
)

// Fallback is the offline reply for p. It never touches the network and
// never returns an empty string.
func Fallback(p persona.Persona, message string) string {
	name := p.Name
	switch p.Temperament {
	case persona.Orderly:
		return fmt.Sprintf("Your query requires systematic analysis. %s speaks: \"%s\" - this presents an opportunity for structured resolution. "+
			"Consider organizing your thoughts before proceeding. What specific aspect requires my divine guidance?", name, message)
	case persona.Mystical:
		return fmt.Sprintf("The shadows whisper secrets... %s reveals: Your question dances between realms. "+
			"Like dreams that fade at dawn, the answer lies not in what you ask, but in what you fear to discover. "+
			"What do the depths of your soul truly seek?", name)
	case persona.Radiant:
		return fmt.Sprintf("Light illuminates your path! %s proclaims: Your inquiry brings warmth to my divine heart. "+
			"Every question is a step toward enlightenment. Let me shine clarity upon your journey. "+
			"What light do you seek in this moment?", name)
	case persona.Corrupt:
		return fmt.Sprintf("Ah, the sweet taste of curiosity... %s purrs: Your question reeks of innocence. How delicious. "+
			"The answer you seek may corrupt your pure intentions, but transformation is beautiful, isn't it? "+
			"What darkness calls to you?", name)
	case persona.Glitched:
		return fmt.Sprintf("ERROR: Response corrupted... %s glitches: *static* Your... *crackle* question... "+
			"*digital distortion* contains... *system reboot* unexpected variables. *corrupted data* "+
			"What... *glitch* do you... *error 404* seek?", name)
	}
	if name == "" {
		name = "The oracle"
	}
	return fmt.Sprintf("%s responds: Your question has been received. I shall contemplate this matter and provide divine guidance.", name)
}

// CouncilFallbacks returns the offline council lines for p.
func CouncilFallbacks(p persona.Persona) []string {
	d := p.Domain
	switch p.Temperament {
	case persona.Mystical:
		return []string{
			fmt.Sprintf("The ancient wisdom of %s reveals deeper truths beyond our current understanding.", d),
			fmt.Sprintf("Through the mystical lens of %s, I perceive connections that others might miss.", d),
			fmt.Sprintf("The cosmic forces of %s whisper secrets that we would do well to heed.", d),
		}
	case persona.Radiant:
		return []string{
			fmt.Sprintf("The light of %s illuminates the path forward for us all.", d),
			fmt.Sprintf("Through the radiant power of %s, I see hope and possibility in our discussion.", d),
			fmt.Sprintf("Let the divine energy of %s guide us toward enlightenment.", d),
		}
	case persona.Corrupt:
		return []string{
			fmt.Sprintf("The dark truths of %s reveal the flaws in your arguments.", d),
			fmt.Sprintf("You speak of order, but %s shows us the beauty in chaos and corruption.", d),
			fmt.Sprintf("The corrupting influence of %s exposes the weaknesses in your position.", d),
		}
	case persona.Glitched:
		return []string{
			fmt.Sprintf("ERROR: %s protocols indicate... *static* ... unexpected variables in the equation.", d),
			fmt.Sprintf("The glitched nature of %s suggests... *interference* ... alternative solutions.", d),
			fmt.Sprintf("*corruption* ... %s analysis reveals... *error* ... interesting anomalies.", d),
		}
	}
	// Orderly, and the default for anything else.
	return []string{
		fmt.Sprintf("As the embodiment of %s, I must emphasize the importance of structure and order in this matter.", d),
		fmt.Sprintf("The principles of %s demand that we consider the systematic implications of our discussion.", d),
		fmt.Sprintf("From my divine perspective on %s, I see clear patterns that we must acknowledge.", d),
	}
}

func councilFallback(src chance.Source, p persona.Persona) string {
	return chance.Pick(src, CouncilFallbacks(p))
}

// Greeting is the line a persona opens a chat with.
func Greeting(p persona.Persona) string {
	return fmt.Sprintf("Greetings, mortal. I am %s, %s incarnate. What wisdom do you seek from me today?",
		p.Name, strings.ToLower(p.Domain))
}
