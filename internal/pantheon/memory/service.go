package memory

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/bdobrica/pantheon/internal/pantheon/kv"
	"github.com/bdobrica/pantheon/internal/pantheon/persona"
)

// KeyPrefix scopes persona memories in the kv store.
const KeyPrefix = "persona_memory/"

// RitualLogKey holds the append-only ritual log.
const RitualLogKey = "rituals"

var (
	// ErrNotFound is returned when a persona's memory was never initialized.
	ErrNotFound = errors.New("memory: persona memory not found")
	// ErrInvalidKind is returned by AddEntry for an undeclared entry kind.
	ErrInvalidKind = errors.New("memory: invalid entry kind")
)

// Key returns the kv key of personaID's memory.
func Key(personaID string) string { return KeyPrefix + personaID }

// Config tunes a Service. Zero values select the defaults.
type Config struct {
	MaxEntries int
	Now        func() time.Time
	Logger     *slog.Logger
	// Entropy feeds entry ids. Defaults to a monotonic reader over
	// crypto/rand.
	Entropy io.Reader
}

// Service owns every persona memory. It is safe for concurrent use; each
// mutation reads the stored document, applies the change and writes the
// whole document back while holding the service lock.
type Service struct {
	kv      kv.Store
	max     int
	now     func() time.Time
	log     *slog.Logger
	entropy io.Reader

	mu sync.Mutex
}

// New returns a Service over backend.
func New(backend kv.Store, cfg Config) *Service {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Entropy == nil {
		cfg.Entropy = ulid.Monotonic(rand.Reader, 0)
	}
	return &Service{
		kv:      backend,
		max:     cfg.MaxEntries,
		now:     cfg.Now,
		log:     cfg.Logger,
		entropy: cfg.Entropy,
	}
}

// newID must be called with s.mu held; monotonic entropy is not
// goroutine-safe.
func (s *Service) newID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

func (s *Service) load(ctx context.Context, personaID string) (*PersonaMemory, error) {
	raw, err := s.kv.Get(ctx, Key(personaID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("memory: load %s: %w", personaID, err)
	}
	var m PersonaMemory
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		s.log.Warn("memory: stored memory is unreadable, treating as missing", "persona_id", personaID, "err", err)
		return nil, ErrNotFound
	}
	return &m, nil
}

func (s *Service) save(ctx context.Context, m *PersonaMemory) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("memory: encode %s: %w", m.PersonaID, err)
	}
	if err := s.kv.Set(ctx, Key(m.PersonaID), string(b)); err != nil {
		return fmt.Errorf("memory: save %s: %w", m.PersonaID, err)
	}
	return nil
}

// mutate runs fn against a fresh copy of personaID's memory and persists the
// result. A missing memory is logged and reported as ErrNotFound.
func (s *Service) mutate(ctx context.Context, personaID string, fn func(m *PersonaMemory)) (*PersonaMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load(ctx, personaID)
	if errors.Is(err, ErrNotFound) {
		s.log.Debug("memory: update skipped, persona not initialized", "persona_id", personaID)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	fn(m)
	m.Personality.Clamp()
	if err := s.save(ctx, m); err != nil {
		return m.clone(), err
	}
	return m.clone(), nil
}

// Get returns personaID's memory or ErrNotFound.
func (s *Service) Get(ctx context.Context, personaID string) (*PersonaMemory, error) {
	return s.load(ctx, personaID)
}

// Initialize seeds p's memory unless it already exists. It reports whether a
// new memory was written.
func (s *Service) Initialize(ctx context.Context, p persona.Persona) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.load(ctx, p.ID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	now := s.now()
	m := Seed(p, now, s.newID(now))
	if err := s.save(ctx, m); err != nil {
		return false, err
	}
	s.log.Info("memory: persona awakened", "persona_id", p.ID, "temperament", p.Temperament)
	return true, nil
}

// InitializeAll seeds every persona of c that has no memory yet.
func (s *Service) InitializeAll(ctx context.Context, c *persona.Catalog) error {
	var errs []error
	for _, p := range c.All() {
		if _, err := s.Initialize(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AddEntry records a new entry and applies retention.
func (s *Service) AddEntry(ctx context.Context, personaID string, in NewEntry) (Entry, error) {
	if !in.Kind.Valid() {
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidKind, in.Kind)
	}
	var e Entry
	_, err := s.mutate(ctx, personaID, func(m *PersonaMemory) {
		now := s.now()
		e = Entry{
			ID:         s.newID(now),
			Timestamp:  now,
			Kind:       in.Kind,
			Content:    in.Content,
			Metadata:   in.Metadata,
			Importance: ClampImportance(in.Importance),
			Tags:       dedupe(in.Tags),
		}
		if e.Tags == nil {
			e.Tags = []string{}
		}
		m.Entries = retain(append(m.Entries, e), s.max)
	})
	if errors.Is(err, ErrNotFound) {
		return Entry{}, err
	}
	return e, err
}

// retain keeps the max highest-importance entries, preferring recent ones on
// equal importance, and returns them in their original order.
func retain(entries []Entry, limit int) []Entry {
	if len(entries) <= limit {
		return entries
	}
	idx := make([]int, len(entries))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ea, eb := entries[idx[a]], entries[idx[b]]
		if ea.Importance != eb.Importance {
			return ea.Importance > eb.Importance
		}
		return idx[a] > idx[b]
	})
	keep := idx[:limit]
	sort.Ints(keep)
	out := make([]Entry, 0, limit)
	for _, i := range keep {
		out = append(out, entries[i])
	}
	return out
}

// PersonalityPatch lists the fields UpdatePersonality changes. Nil pointers
// leave a field alone. RelationshipDelta is added after Relationship is
// applied.
type PersonalityPatch struct {
	Mood              *string
	Relationship      *int
	RelationshipDelta int
	Knowledge         *int
	Corruption        *int
	// Abilities are added to the ability set.
	Abilities []string
}

// UpdatePersonality merges patch into personaID's personality, clamping every
// ranged field.
func (s *Service) UpdatePersonality(ctx context.Context, personaID string, patch PersonalityPatch) (Personality, error) {
	m, err := s.mutate(ctx, personaID, func(m *PersonaMemory) {
		p := &m.Personality
		if patch.Mood != nil {
			p.CurrentMood = *patch.Mood
		}
		if patch.Relationship != nil {
			p.RelationshipWithUser = *patch.Relationship
		}
		p.RelationshipWithUser += patch.RelationshipDelta
		if patch.Knowledge != nil {
			p.KnowledgeLevel = *patch.Knowledge
		}
		if patch.Corruption != nil {
			p.CorruptionLevel = *patch.Corruption
		}
		for _, a := range patch.Abilities {
			p.SpecialAbilities = addUnique(p.SpecialAbilities, a)
		}
	})
	if m == nil {
		return Personality{}, err
	}
	return m.Personality, err
}

// AdjustRelationship adds delta to the relationship score and returns the
// clamped result.
func (s *Service) AdjustRelationship(ctx context.Context, personaID string, delta int) (int, error) {
	p, err := s.UpdatePersonality(ctx, personaID, PersonalityPatch{RelationshipDelta: delta})
	return p.RelationshipWithUser, err
}

// AddAchievement records a lore achievement once.
func (s *Service) AddAchievement(ctx context.Context, personaID, achievement string) error {
	_, err := s.mutate(ctx, personaID, func(m *PersonaMemory) {
		m.Lore.Achievements = addUnique(m.Lore.Achievements, achievement)
	})
	return err
}

// RecordSession counts one more summoning.
func (s *Service) RecordSession(ctx context.Context, personaID string) error {
	_, err := s.mutate(ctx, personaID, func(m *PersonaMemory) {
		m.Sessions.TotalSessions++
		m.Sessions.LastSessionTime = s.now()
	})
	return err
}

// DefaultRecallLimit is used by QueryRelevant when limit is not positive.
const DefaultRecallLimit = 5

// QueryRelevant ranks personaID's entries against query. The score is the
// entry importance, plus 5 when the content contains query and 3 when any tag
// does, both case-insensitive. Equal scores keep chronological order.
func (s *Service) QueryRelevant(ctx context.Context, personaID, query string, limit int) ([]Entry, error) {
	m, err := s.load(ctx, personaID)
	if err != nil {
		return nil, err
	}
	return Rank(m.Entries, query, limit), nil
}

// Rank is the scoring behind QueryRelevant.
func Rank(entries []Entry, query string, limit int) []Entry {
	if limit <= 0 {
		limit = DefaultRecallLimit
	}
	q := strings.ToLower(query)
	type scored struct {
		e     Entry
		score int
	}
	all := make([]scored, len(entries))
	for i, e := range entries {
		score := e.Importance
		if q != "" {
			if strings.Contains(strings.ToLower(e.Content), q) {
				score += 5
			}
			for _, tag := range e.Tags {
				if strings.Contains(strings.ToLower(tag), q) {
					score += 3
					break
				}
			}
		}
		all[i] = scored{e: e, score: score}
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].score > all[b].score })
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]Entry, len(all))
	for i, sc := range all {
		out[i] = sc.e
	}
	return out
}

// All returns every initialized memory keyed by persona id.
func (s *Service) All(ctx context.Context) (map[string]*PersonaMemory, error) {
	rows, err := s.kv.List(ctx, KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("memory: list: %w", err)
	}
	out := make(map[string]*PersonaMemory, len(rows))
	for _, key := range kv.Keys(rows) {
		var m PersonaMemory
		if err := json.Unmarshal([]byte(rows[key]), &m); err != nil {
			s.log.Warn("memory: skipping unreadable memory", "key", key, "err", err)
			continue
		}
		out[strings.TrimPrefix(key, KeyPrefix)] = &m
	}
	return out, nil
}

// Clear forgets personaID entirely. The next Initialize starts over.
func (s *Service) Clear(ctx context.Context, personaID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, Key(personaID)); err != nil {
		return fmt.Errorf("memory: clear %s: %w", personaID, err)
	}
	return nil
}

// Summary is a one-line description of personaID's memory.
func (s *Service) Summary(ctx context.Context, personaID string) (string, error) {
	m, err := s.load(ctx, personaID)
	if err != nil {
		return "", err
	}
	cutoff := s.now().Add(-24 * time.Hour)
	recent := 0
	for _, e := range m.Entries {
		if e.Timestamp.After(cutoff) {
			recent++
		}
	}
	return fmt.Sprintf("%s has %d total memories, %d from today. Current mood: %s.",
		m.PersonaName, len(m.Entries), recent, m.Personality.CurrentMood), nil
}
