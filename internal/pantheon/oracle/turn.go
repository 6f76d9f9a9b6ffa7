package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bdobrica/pantheon/common/trace"
	"github.com/bdobrica/pantheon/internal/pantheon/chat"
	"github.com/bdobrica/pantheon/internal/pantheon/memory"
	"github.com/bdobrica/pantheon/internal/pantheon/persona"
	"github.com/bdobrica/pantheon/internal/pantheon/voice"
)

// ErrEmptyMessage is returned by Converse for blank input.
var ErrEmptyMessage = errors.New("oracle: empty message")

// Turn is the outcome of one chat exchange. The reply is always present;
// PersistErrors lists the storage steps that failed along the way.
type Turn struct {
	User        chat.Message        `json:"user"`
	Assistant   chat.Message        `json:"assistant"`
	Reply       Reply               `json:"reply"`
	Entry       *memory.Entry       `json:"entry,omitempty"`
	Personality *memory.Personality `json:"personality,omitempty"`

	PersistErrors []error `json:"-"`
}

// Err joins PersistErrors, or returns nil.
func (t *Turn) Err() error { return errors.Join(t.PersistErrors...) }

func (t *Turn) fail(err error) {
	if err != nil {
		t.PersistErrors = append(t.PersistErrors, err)
	}
}

// Converse runs one chat turn with p: the user message and the reply are
// appended to p's current session, one memory entry is recorded, mood and
// relationship are updated and the reply is handed to the speaker. Storage
// failures never cost the user the reply.
func (e *Engine) Converse(ctx context.Context, p persona.Persona, text string) (*Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	log := trace.Logger(ctx, e.log).With("persona_id", p.ID)
	start := e.now()
	turn := &Turn{}

	if e.memory != nil {
		if _, err := e.memory.Initialize(ctx, p); err != nil {
			turn.fail(fmt.Errorf("oracle: initialize memory: %w", err))
		}
	}

	history := e.history(ctx, p.ID, turn)

	if e.chat != nil {
		msg, err := e.chat.Append(ctx, p.ID, chat.RoleUser, text)
		turn.fail(err)
		turn.User = msg
	}

	var snap *memory.PersonaMemory
	if e.memory != nil {
		m, err := e.memory.Get(ctx, p.ID)
		switch {
		case errors.Is(err, memory.ErrNotFound):
			log.Debug("oracle: no memory snapshot, prompting with seed state")
		case err != nil:
			turn.fail(err)
		default:
			snap = m
		}
	}

	turn.Reply = e.Generate(ctx, Request{Persona: p, Message: text, History: history, Memory: snap})

	if e.chat != nil {
		msg, err := e.chat.Append(ctx, p.ID, chat.RoleAssistant, turn.Reply.Text)
		turn.fail(err)
		turn.Assistant = msg
	}

	if e.memory != nil {
		e.remember(ctx, p, text, turn)
	}

	voice.SpeakAsync(e.speaker, turn.Reply.Text, p.Temperament, e.log)

	e.metrics.RecordTurn(p.ID, string(turn.Reply.Source), e.now().Sub(start))
	if len(turn.PersistErrors) > 0 {
		log.Warn("oracle: chat turn persisted partially", "source", turn.Reply.Source, "err", turn.Err())
	} else {
		log.Debug("oracle: chat turn", "source", turn.Reply.Source)
	}
	return turn, nil
}

// history returns the tail of the current session before this turn.
func (e *Engine) history(ctx context.Context, personaID string, turn *Turn) []chat.Message {
	if e.chat == nil {
		return nil
	}
	sess, ok, err := e.chat.Current(ctx, personaID)
	if err != nil {
		turn.fail(err)
		return nil
	}
	if !ok {
		return nil
	}
	msgs := sess.Messages
	if len(msgs) > e.historyLimit {
		msgs = msgs[len(msgs)-e.historyLimit:]
	}
	return msgs
}

// remember records the exchange and nudges the personality.
func (e *Engine) remember(ctx context.Context, p persona.Persona, text string, turn *Turn) {
	reply := turn.Reply
	var in memory.NewEntry
	if reply.Source == SourceRemote {
		in = memory.NewEntry{
			Kind:       memory.KindInteraction,
			Content:    fmt.Sprintf("User asked: \"%s\" | %s responded: \"%s\"", text, p.Name, reply.Text),
			Importance: 8,
			Tags:       []string{"chat", "ai-response", "divine-wisdom"},
			Metadata: map[string]any{
				"source":      "chat",
				"userMessage": text,
				"aiResponse":  reply.Text,
				"model":       reply.Model,
			},
		}
	} else {
		in = memory.NewEntry{
			Kind:       memory.KindConversation,
			Content:    fmt.Sprintf("User: %s | %s: %s", text, p.Name, reply.Text),
			Importance: 5,
			Tags:       []string{"conversation", "divine-guidance", "user-interaction"},
			Metadata:   map[string]any{"source": "fallback"},
		}
	}

	entry, err := e.memory.AddEntry(ctx, p.ID, in)
	switch {
	case errors.Is(err, memory.ErrNotFound):
	case err != nil:
		turn.fail(err)
	default:
		turn.Entry = &entry
	}

	mood := MoodFor(p.Temperament, text)
	pers, err := e.memory.UpdatePersonality(ctx, p.ID, memory.PersonalityPatch{
		Mood:              &mood,
		RelationshipDelta: e.relationship.Delta(p, text, reply),
	})
	switch {
	case errors.Is(err, memory.ErrNotFound):
	case err != nil:
		turn.fail(err)
	default:
		turn.Personality = &pers
	}
}

// Summon opens an audience with p: memory is created on first contact, the
// session counter advances and the greeting is returned.
func (e *Engine) Summon(ctx context.Context, p persona.Persona) (string, error) {
	if e.memory != nil {
		if _, err := e.memory.Initialize(ctx, p); err != nil {
			return Greeting(p), fmt.Errorf("oracle: summon %s: %w", p.ID, err)
		}
		if err := e.memory.RecordSession(ctx, p.ID); err != nil {
			return Greeting(p), fmt.Errorf("oracle: summon %s: %w", p.ID, err)
		}
	}
	trace.Logger(ctx, e.log).Info("oracle: persona summoned", "persona_id", p.ID)
	return Greeting(p), nil
}
