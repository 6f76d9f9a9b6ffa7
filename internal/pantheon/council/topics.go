package council

import (
	"slices"

	"github.com/bdobrica/pantheon/internal/pantheon/persona"
)

// Topic is a debate subject. Temperaments lists the dispositions drawn to it.
type Topic struct {
	ID           string                `json:"id"`
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	Category     string                `json:"category"`
	Complexity   string                `json:"complexity"`
	Temperaments []persona.Temperament `json:"temperaments"`
	Prompts      []string              `json:"prompts"`
}

// CustomTopic wraps a free-form title.
func CustomTopic(title string) Topic {
	return Topic{Title: title}
}

func builtinTopics() []Topic {
	return []Topic{
		{
			ID:           "creation-vs-destruction",
			Title:        "The Balance of Creation and Destruction",
			Description:  "A philosophical debate about the necessity of both creation and destruction in the cosmic order.",
			Category:     "philosophy",
			Complexity:   "complex",
			Temperaments: []persona.Temperament{persona.Orderly, persona.Corrupt, persona.Radiant},
			Prompts: []string{
				"What is the true purpose of creation?",
				"Is destruction always necessary for new creation?",
				"How do we maintain balance between order and chaos?",
			},
		},
		{
			ID:           "mortality-divinity",
			Title:        "The Nature of Mortality and Divinity",
			Description:  "Exploring the relationship between mortal existence and divine nature.",
			Category:     "divinity",
			Complexity:   "moderate",
			Temperaments: []persona.Temperament{persona.Mystical, persona.Radiant, persona.Glitched},
			Prompts: []string{
				"What makes a being truly divine?",
				"Is mortality a curse or a blessing?",
				"Can mortals achieve divinity?",
			},
		},
		{
			ID:           "cosmic-order",
			Title:        "The Structure of Cosmic Order",
			Description:  "Debating the fundamental laws that govern reality itself.",
			Category:     "order",
			Complexity:   "complex",
			Temperaments: []persona.Temperament{persona.Orderly, persona.Mystical, persona.Glitched},
			Prompts: []string{
				"What are the fundamental laws of reality?",
				"Is chaos necessary for order to exist?",
				"How do we define cosmic justice?",
			},
		},
		{
			ID:           "divine-intervention",
			Title:        "The Ethics of Divine Intervention",
			Description:  "When should gods interfere in mortal affairs?",
			Category:     "politics",
			Complexity:   "moderate",
			Temperaments: []persona.Temperament{persona.Radiant, persona.Corrupt, persona.Orderly},
			Prompts: []string{
				"When is divine intervention justified?",
				"What are the consequences of godly interference?",
				"Should gods remain distant or actively guide mortals?",
			},
		},
		{
			ID:           "reality-nature",
			Title:        "The True Nature of Reality",
			Description:  "A deep philosophical exploration of what reality truly is.",
			Category:     "philosophy",
			Complexity:   "complex",
			Temperaments: []persona.Temperament{persona.Mystical, persona.Glitched, persona.Radiant},
			Prompts: []string{
				"What is the fundamental nature of existence?",
				"Are we all part of a greater consciousness?",
				"Is reality objective or subjective?",
			},
		},
	}
}

// Topics returns every known topic.
func (s *Scheduler) Topics() []Topic {
	return slices.Clone(s.topics)
}

// Topic looks a topic up by id.
func (s *Scheduler) Topic(id string) (Topic, bool) {
	for _, t := range s.topics {
		if t.ID == id {
			return t, true
		}
	}
	return Topic{}, false
}

// TopicsFor returns the topics that draw at least one of participants.
func (s *Scheduler) TopicsFor(participants []persona.Persona) []Topic {
	var out []Topic
	for _, t := range s.topics {
		if slices.ContainsFunc(participants, func(p persona.Persona) bool {
			return slices.Contains(t.Temperaments, p.Temperament)
		}) {
			out = append(out, t)
		}
	}
	return out
}
