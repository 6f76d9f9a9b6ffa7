package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bdobrica/pantheon/internal/pantheon/persona"
)

// Action is what a recognized phrase asks for.
type Action string

const (
	ActionSummon   Action = "summon"
	ActionRitual   Action = "ritual"
	ActionOffering Action = "offering"
	ActionQuestion Action = "question"
	ActionCouncil  Action = "council"
	ActionDismiss  Action = "dismiss"
)

// Command is a recognized voice command.
type Command struct {
	TriggerID  string  `json:"triggerId"`
	Action     Action  `json:"action"`
	PersonaID  string  `json:"personaId,omitempty"`
	Confidence float64 `json:"confidence"`
	Transcript string  `json:"transcript"`
}

// Trigger maps spoken phrases to an action. A transcript matches when its
// similarity to one of Phrases reaches Threshold.
type Trigger struct {
	ID        string
	Phrases   []string
	Action    Action
	PersonaID string
	Threshold float64
}

// DefaultTriggers returns a summon trigger per persona in c plus the fixed
// ritual, offering, council, question and dismissal phrases.
func DefaultTriggers(c *persona.Catalog) []Trigger {
	var out []Trigger
	for _, p := range c.All() {
		name := strings.ToLower(p.Name)
		out = append(out, Trigger{
			ID:        "summon-" + p.ID,
			Phrases:   []string{"summon " + name, "call " + name, "invoke " + name, name + " appear"},
			Action:    ActionSummon,
			PersonaID: p.ID,
			Threshold: 0.7,
		})
	}
	return append(out,
		Trigger{ID: "start-ritual", Action: ActionRitual, Threshold: 0.8,
			Phrases: []string{"start ritual", "begin ritual", "perform ritual", "initiate ceremony"}},
		Trigger{ID: "make-offering", Action: ActionOffering, Threshold: 0.8,
			Phrases: []string{"make offering", "present offering", "give offering", "offer tribute"}},
		Trigger{ID: "convene-council", Action: ActionCouncil, Threshold: 0.8,
			Phrases: []string{"convene council", "start council", "begin council", "gather pantheon"}},
		Trigger{ID: "ask-question", Action: ActionQuestion, Threshold: 0.6,
			Phrases: []string{"i have a question", "answer me", "tell me", "explain"}},
		Trigger{ID: "dismiss-god", Action: ActionDismiss, Threshold: 0.7,
			Phrases: []string{"dismiss", "go away", "leave me", "farewell", "until next time"}},
	)
}

// Matcher finds the best trigger for a transcript.
type Matcher struct {
	triggers []Trigger
}

// NewMatcher returns a matcher over triggers.
func NewMatcher(triggers []Trigger) *Matcher {
	return &Matcher{triggers: triggers}
}

// Match returns the highest-scoring trigger whose threshold is met. Earlier
// triggers win ties.
func (m *Matcher) Match(transcript string) (Command, bool) {
	text := strings.ToLower(strings.TrimSpace(transcript))
	var (
		best  Command
		score float64
		found bool
	)
	for _, tr := range m.triggers {
		for _, phrase := range tr.Phrases {
			s := Similarity(text, phrase)
			if s > score && s >= tr.Threshold {
				best = Command{TriggerID: tr.ID, Action: tr.Action, PersonaID: tr.PersonaID, Confidence: s, Transcript: transcript}
				score = s
				found = true
			}
		}
	}
	return best, found
}

// Similarity scores how well transcript covers phrase in [0, 1]: the share
// of phrase words that overlap a transcript word, plus 0.2 when one text
// contains the other. Identical texts score 1.
func Similarity(transcript, phrase string) float64 {
	if transcript == phrase {
		return 1
	}
	tw := strings.Fields(transcript)
	pw := strings.Fields(phrase)
	if len(pw) == 0 {
		return 0
	}
	matched := 0
	for _, p := range pw {
		for _, t := range tw {
			if strings.Contains(t, p) || strings.Contains(p, t) {
				matched++
				break
			}
		}
	}
	s := float64(matched) / float64(len(pw))
	if transcript != "" && (strings.Contains(transcript, phrase) || strings.Contains(phrase, transcript)) {
		s = min(s+0.2, 1)
	}
	return s
}

// Handler carries out the commands the core reacts to.
type Handler interface {
	Summon(ctx context.Context, personaID string) error
	BeginRitual(ctx context.Context, personaID string) error
	ConveneCouncil(ctx context.Context) error
	Dismiss(ctx context.Context, personaID string) error
}

// ErrIgnored is returned by Dispatch for actions the core does not handle
// and for commands below the confidence floor.
var ErrIgnored = errors.New("voice: command ignored")

// DefaultMinConfidence is the recognizer confidence below which commands are
// ignored.
const DefaultMinConfidence = 0.6

// Dispatcher routes commands to a Handler. Only summon, ritual, council and
// dismiss are acted on.
type Dispatcher struct {
	handler       Handler
	minConfidence float64
	log           *slog.Logger
}

// NewDispatcher returns a dispatcher. A non-positive minConfidence selects
// DefaultMinConfidence.
func NewDispatcher(h Handler, minConfidence float64, log *slog.Logger) *Dispatcher {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{handler: h, minConfidence: minConfidence, log: log}
}

// Dispatch performs cmd. activePersona is used when the command does not
// name one (a bare "dismiss" dismisses whoever is summoned).
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command, activePersona string) error {
	if cmd.Confidence < d.minConfidence {
		d.log.Debug("voice: low-confidence command ignored", "trigger", cmd.TriggerID, "confidence", cmd.Confidence)
		return ErrIgnored
	}
	target := cmd.PersonaID
	if target == "" {
		target = activePersona
	}

	var err error
	switch cmd.Action {
	case ActionSummon:
		err = d.handler.Summon(ctx, target)
	case ActionRitual:
		err = d.handler.BeginRitual(ctx, target)
	case ActionCouncil:
		err = d.handler.ConveneCouncil(ctx)
	case ActionDismiss:
		err = d.handler.Dismiss(ctx, target)
	default:
		return ErrIgnored
	}
	if err != nil {
		return fmt.Errorf("voice: %s: %w", cmd.Action, err)
	}
	d.log.Info("voice: command dispatched", "action", cmd.Action, "persona_id", target, "confidence", cmd.Confidence)
	return nil
}
