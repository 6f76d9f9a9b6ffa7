// Package voice connects personas to speech: a text-to-speech sink that
// never blocks a reply, and a phrase matcher that turns recognized
// transcripts into commands.
package voice

import (
	"context"
	"log/slog"
	"time"

	"github.com/bdobrica/pantheon/internal/pantheon/persona"
)

// Speaker renders text as speech in a temperament's voice.
type Speaker interface {
	Speak(ctx context.Context, text string, t persona.Temperament) error
}

// Profile is the synthesis setting for one temperament.
type Profile struct {
	Name        string  `json:"name"`
	Pitch       float64 `json:"pitch"`
	Rate        float64 `json:"rate"`
	Volume      float64 `json:"volume"`
	Description string  `json:"description"`
}

// ProfileFor returns the voice of temperament t.
func ProfileFor(t persona.Temperament) Profile {
	switch t {
	case persona.Orderly:
		return Profile{Name: "The Architect", Pitch: 0.8, Rate: 0.9, Volume: 1.0,
			Description: "Structured, measured, and authoritative"}
	case persona.Mystical:
		return Profile{Name: "The Enigma", Pitch: 1.2, Rate: 0.8, Volume: 0.9,
			Description: "Whispery, ethereal, and mysterious"}
	case persona.Radiant:
		return Profile{Name: "The Beacon", Pitch: 1.1, Rate: 1.0, Volume: 1.0,
			Description: "Warm, bright, and encouraging"}
	case persona.Corrupt:
		return Profile{Name: "The Harbinger", Pitch: 0.7, Rate: 1.1, Volume: 0.8,
			Description: "Dark, seductive, and dangerous"}
	case persona.Glitched:
		return Profile{Name: "The Anomaly", Pitch: 1.3, Rate: 1.2, Volume: 0.7,
			Description: "Chaotic, digital, and glitchy"}
	}
	return Profile{Name: "Neutral", Pitch: 1.0, Rate: 1.0, Volume: 1.0}
}

// LogSpeaker "speaks" by writing a log line. It is the sink used when no
// audio device is attached.
type LogSpeaker struct {
	Logger *slog.Logger
}

var _ Speaker = LogSpeaker{}

func (s LogSpeaker) Speak(ctx context.Context, text string, t persona.Temperament) error {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	p := ProfileFor(t)
	log.DebugContext(ctx, "voice: speak", "voice", p.Name, "pitch", p.Pitch, "rate", p.Rate, "chars", len(text))
	return nil
}

// speakTimeout bounds one background utterance.
const speakTimeout = 30 * time.Second

// SpeakAsync hands text to s in the background and returns immediately. The
// returned channel receives the outcome once and is then closed; callers may
// ignore it. Failures are logged.
func SpeakAsync(s Speaker, text string, t persona.Temperament, log *slog.Logger) <-chan error {
	done := make(chan error, 1)
	if s == nil || text == "" {
		close(done)
		return done
	}
	if log == nil {
		log = slog.Default()
	}
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), speakTimeout)
		defer cancel()
		err := s.Speak(ctx, text, t)
		if err != nil {
			log.Warn("voice: speech failed", "temperament", t, "err", err)
		}
		done <- err
	}()
	return done
}
