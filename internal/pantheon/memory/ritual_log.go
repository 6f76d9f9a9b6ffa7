package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bdobrica/pantheon/internal/pantheon/kv"
)

// RecordRitual appends rec to the ritual log, assigning an id and timestamp
// when they are unset.
func (s *Service) RecordRitual(ctx context.Context, rec RitualRecord) (RitualRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}

	log, err := s.loadRituals(ctx)
	if err != nil {
		return rec, err
	}
	log = append(log, rec)
	b, err := json.Marshal(log)
	if err != nil {
		return rec, fmt.Errorf("memory: encode rituals: %w", err)
	}
	if err := s.kv.Set(ctx, RitualLogKey, string(b)); err != nil {
		return rec, fmt.Errorf("memory: save rituals: %w", err)
	}
	return rec, nil
}

// Rituals returns the ritual log, oldest first.
func (s *Service) Rituals(ctx context.Context) ([]RitualRecord, error) {
	return s.loadRituals(ctx)
}

func (s *Service) loadRituals(ctx context.Context) ([]RitualRecord, error) {
	raw, err := s.kv.Get(ctx, RitualLogKey)
	if errors.Is(err, kv.ErrNotFound) {
		return []RitualRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: load rituals: %w", err)
	}
	var log []RitualRecord
	if err := json.Unmarshal([]byte(raw), &log); err != nil {
		s.log.Warn("memory: ritual log is unreadable, starting over", "key", RitualLogKey, "err", err)
		return []RitualRecord{}, nil
	}
	return log, nil
}
