// Package council runs the pantheon debate: several personas take turns
// speaking on a topic, one every TurnLength, until the session is ended or
// its duration runs out.
package council

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bdobrica/pantheon/internal/pantheon/oracle"
	"github.com/bdobrica/pantheon/internal/pantheon/persona"
)

const (
	MinParticipants = 2
	MaxParticipants = 6

	DefaultSessionDuration = 30 * time.Minute
	DefaultTurnLength      = 15 * time.Second

	// HeraldID authors the opening and closing lines.
	HeraldID   = "system"
	HeraldName = "Council Herald"

	// recentSpeakerWindow is how many trailing messages a persona must be
	// absent from to be preferred as the next speaker.
	recentSpeakerWindow = 3
)

var (
	ErrTooFewParticipants   = errors.New("council: at least 2 participants are required")
	ErrTooManyParticipants  = errors.New("council: too many participants")
	ErrDuplicateParticipant = errors.New("council: duplicate participant")
	ErrMissingTopic         = errors.New("council: topic is required")
	ErrSessionActive        = errors.New("council: a council session is already active")

	ErrNoSession          = errors.New("council: no council session")
	ErrInvalidState       = errors.New("council: operation not allowed in the current state")
	ErrUnknownParticipant = errors.New("council: persona is not a participant")
	ErrEmptyMessage       = errors.New("council: empty message")
	ErrClosed             = errors.New("council: scheduler closed")
)

// Status is the session lifecycle: preparing, then active and paused in
// any order, then concluded for good.
type Status string

const (
	StatusPreparing Status = "preparing"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusConcluded Status = "concluded"
)

// Kind classifies a council message.
type Kind string

const (
	KindSpeech       Kind = "speech"
	KindReaction     Kind = "reaction"
	KindRitual       Kind = "ritual"
	KindInterruption Kind = "interruption"
)

// Emotion is the tone detected in a message.
type Emotion string

const (
	EmotionNeutral     Emotion = "neutral"
	EmotionAmused      Emotion = "amused"
	EmotionAngry       Emotion = "angry"
	EmotionCurious     Emotion = "curious"
	EmotionDismissive  Emotion = "dismissive"
	EmotionRespectful  Emotion = "respectful"
	EmotionThreatening Emotion = "threatening"
)

var emotionKeywords = []struct {
	emotion Emotion
	words   []string
}{
	{EmotionAmused, []string{"laugh", "amuse"}},
	{EmotionAngry, []string{"anger", "rage", "fury"}},
	{EmotionCurious, []string{"curious", "wonder", "question"}},
	{EmotionDismissive, []string{"dismiss", "ignore", "trivial"}},
	{EmotionRespectful, []string{"respect", "honor", "revere"}},
	{EmotionThreatening, []string{"threat", "warning", "danger"}},
}

// ClassifyEmotion returns the first emotion whose keywords appear in text,
// or neutral.
func ClassifyEmotion(text string) Emotion {
	lower := strings.ToLower(text)
	for _, k := range emotionKeywords {
		for _, w := range k.words {
			if strings.Contains(lower, w) {
				return k.emotion
			}
		}
	}
	return EmotionNeutral
}

// Settings tune a session. Zero fields take the defaults.
type Settings struct {
	MaxParticipants int           `json:"maxParticipants"`
	SessionDuration time.Duration `json:"sessionDuration"`
	TurnLength      time.Duration `json:"turnLength"`
}

// DefaultSettings returns six seats, thirty minutes and fifteen-second turns.
func DefaultSettings() Settings {
	return Settings{
		MaxParticipants: MaxParticipants,
		SessionDuration: DefaultSessionDuration,
		TurnLength:      DefaultTurnLength,
	}
}

func (s Settings) withDefaults() Settings {
	if s.MaxParticipants <= 0 || s.MaxParticipants > MaxParticipants {
		s.MaxParticipants = MaxParticipants
	}
	if s.SessionDuration <= 0 {
		s.SessionDuration = DefaultSessionDuration
	}
	if s.TurnLength <= 0 {
		s.TurnLength = DefaultTurnLength
	}
	return s
}

// Message is one line of the council transcript.
type Message struct {
	ID          string        `json:"id"`
	PersonaID   string        `json:"personaId"`
	PersonaName string        `json:"personaName"`
	Temperament string        `json:"temperament"`
	Content     string        `json:"content"`
	Timestamp   time.Time     `json:"timestamp"`
	Kind        Kind          `json:"kind"`
	Emotion     Emotion       `json:"emotion"`
	Source      oracle.Source `json:"source,omitempty"`
}

// Herald reports whether m was written by the council herald.
func (m Message) Herald() bool { return m.PersonaID == HeraldID }

// Session is a council in progress or just finished.
type Session struct {
	ID           string            `json:"id"`
	Participants []persona.Persona `json:"participants"`
	Topic        string            `json:"topic"`
	TopicID      string            `json:"topicId,omitempty"`
	Messages     []Message         `json:"messages"`
	Status       Status            `json:"status"`
	StartTime    time.Time         `json:"startTime"`
	EndTime      *time.Time        `json:"endTime,omitempty"`
	Settings     Settings          `json:"settings"`
}

func (s *Session) clone() Session {
	out := *s
	out.Participants = slices.Clone(s.Participants)
	out.Messages = slices.Clone(s.Messages)
	if s.EndTime != nil {
		t := *s.EndTime
		out.EndTime = &t
	}
	return out
}

func (s *Session) participant(id string) (persona.Persona, bool) {
	for _, p := range s.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return persona.Persona{}, false
}

func validate(participants []persona.Persona, topic Topic, settings Settings) error {
	if len(participants) < MinParticipants {
		return ErrTooFewParticipants
	}
	if len(participants) > settings.MaxParticipants {
		return fmt.Errorf("%w: %d, at most %d", ErrTooManyParticipants, len(participants), settings.MaxParticipants)
	}
	seen := make(map[string]bool, len(participants))
	for _, p := range participants {
		if seen[p.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateParticipant, p.ID)
		}
		seen[p.ID] = true
	}
	if strings.TrimSpace(topic.Title) == "" {
		return ErrMissingTopic
	}
	return nil
}
