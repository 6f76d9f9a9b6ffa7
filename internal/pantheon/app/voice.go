package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bdobrica/pantheon/internal/pantheon/council"
	"github.com/bdobrica/pantheon/internal/pantheon/voice"
)

// ErrNoAudience is returned by voice commands that need a persona when none
// is named and none is summoned.
var ErrNoAudience = errors.New("app: no persona is summoned")

var _ voice.Handler = (*App)(nil)

// Summon opens an audience with personaID.
func (a *App) Summon(ctx context.Context, personaID string) error {
	_, err := a.summon(ctx, personaID)
	return err
}

func (a *App) summon(ctx context.Context, personaID string) (string, error) {
	if personaID == "" {
		return "", ErrNoAudience
	}
	p, err := a.personas.Find(personaID)
	if err != nil {
		return "", err
	}
	greeting, err := a.engine.Summon(ctx, p)
	if err != nil {
		return "", err
	}
	a.mu.Lock()
	a.summoned = p.ID
	a.mu.Unlock()
	return greeting, nil
}

// BeginRitual starts the first ritual personaID favors, offering the most
// valuable suitable item.
func (a *App) BeginRitual(ctx context.Context, personaID string) error {
	if personaID == "" {
		return ErrNoAudience
	}
	recs, err := a.chamber.Recommendations(personaID)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return fmt.Errorf("app: no ritual favors %q", personaID)
	}
	r := recs[0]
	offerings := a.chamber.OfferingRecommendations(r.Type)
	if len(offerings) == 0 {
		return fmt.Errorf("app: no offering suits %q", r.ID)
	}
	best := offerings[0]
	for _, o := range offerings[1:] {
		if o.Value > best.Value {
			best = o
		}
	}
	_, err = a.chamber.Start(ctx, r.ID, personaID, []string{best.ID})
	return err
}

// ConveneCouncil seats the first six personas on the first topic that suits
// them and starts the discussion.
func (a *App) ConveneCouncil(ctx context.Context) error {
	seats := a.personas.All()
	if n := a.config.Council.MaxParticipants; n > 0 && len(seats) > n {
		seats = seats[:n]
	}
	topics := a.council.TopicsFor(seats)
	if len(topics) == 0 {
		topics = a.council.Topics()
	}
	if len(topics) == 0 {
		return council.ErrMissingTopic
	}
	if _, err := a.council.Start(ctx, seats, topics[0], a.config.Council); err != nil {
		return err
	}
	return a.council.StartDiscussion(ctx)
}

// Dismiss ends the audience with personaID.
func (a *App) Dismiss(_ context.Context, personaID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if personaID != "" && a.summoned != "" && personaID != a.summoned {
		slog.Debug("dismissing a persona that is not summoned", "persona_id", personaID, "summoned", a.summoned)
	}
	a.summoned = ""
	return nil
}

// HandleTranscript matches transcript against the voice triggers and
// dispatches the result. The command is returned even when ignored.
func (a *App) HandleTranscript(ctx context.Context, transcript string, confidence float64) (voice.Command, error) {
	cmd, ok := a.matcher.Match(transcript)
	if !ok {
		return cmd, voice.ErrIgnored
	}
	if confidence > 0 {
		cmd.Confidence = min(cmd.Confidence, confidence)
	}
	return cmd, a.voice.Dispatch(ctx, cmd, a.Summoned())
}
