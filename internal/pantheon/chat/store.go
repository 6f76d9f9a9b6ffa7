package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bdobrica/pantheon/internal/pantheon/kv"
)

// StorageKey is the kv key holding every session.
const StorageKey = "chat_sessions"

// DefaultMaxSessionsPerPersona bounds history per persona: the current session
// plus nine older ones.
const DefaultMaxSessionsPerPersona = 10

var (
	// ErrInvalidRole is returned by Append for roles other than user and
	// assistant.
	ErrInvalidRole = errors.New("chat: invalid role")
	// ErrInvalidImport is returned by Import when the document does not have
	// the expected shape. Existing data is left untouched.
	ErrInvalidImport = errors.New("chat: invalid import document")
)

// Config tunes a Store. Zero values select the defaults.
type Config struct {
	MaxSessionsPerPersona int
	Now                   func() time.Time
	Logger                *slog.Logger
	// OnEvict is called after retention removed n sessions of personaID.
	OnEvict func(personaID string, n int)
}

// Store is the persisted session store. It is safe for concurrent use.
type Store struct {
	kv      kv.Store
	max     int
	now     func() time.Time
	log     *slog.Logger
	onEvict func(string, int)

	mu sync.Mutex
}

// New returns a Store over backend.
func New(backend kv.Store, cfg Config) *Store {
	if cfg.MaxSessionsPerPersona <= 0 {
		cfg.MaxSessionsPerPersona = DefaultMaxSessionsPerPersona
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Store{
		kv:      backend,
		max:     cfg.MaxSessionsPerPersona,
		now:     cfg.Now,
		log:     cfg.Logger,
		onEvict: cfg.OnEvict,
	}
}

// load reads every session. A missing key is an empty store. A blob that
// does not decode is logged and treated as empty as well.
func (s *Store) load(ctx context.Context) ([]Session, error) {
	raw, err := s.kv.Get(ctx, StorageKey)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chat: load: %w", err)
	}
	var all []Session
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		s.log.Warn("chat: stored sessions are unreadable, treating as empty", "key", StorageKey, "err", err)
		return nil, nil
	}
	return all, nil
}

func (s *Store) save(ctx context.Context, all []Session) error {
	if all == nil {
		all = []Session{}
	}
	b, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("chat: encode: %w", err)
	}
	if err := s.kv.Set(ctx, StorageKey, string(b)); err != nil {
		return fmt.Errorf("chat: save: %w", err)
	}
	return nil
}

func (s *Store) retain(all []Session, personaID string) []Session {
	kept, evicted := prune(all, personaID, s.max)
	if evicted > 0 {
		s.log.Debug("chat: evicted old sessions", "persona_id", personaID, "count", evicted)
		if s.onEvict != nil {
			s.onEvict(personaID, evicted)
		}
	}
	return kept
}

// Sessions returns personaID's sessions, most recently updated first.
func (s *Store) Sessions(ctx context.Context, personaID string) ([]Session, error) {
	all, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	idx := forPersona(all, personaID)
	out := make([]Session, 0, len(idx))
	for _, i := range idx {
		out = append(out, all[i].clone())
	}
	return out, nil
}

// Current returns the most recent session for personaID, if any.
func (s *Store) Current(ctx context.Context, personaID string) (Session, bool, error) {
	sessions, err := s.Sessions(ctx, personaID)
	if err != nil || len(sessions) == 0 {
		return Session{}, false, err
	}
	return sessions[0], true, nil
}

// Append adds a message to personaID's current session, creating the session
// when the persona has none.
func (s *Store) Append(ctx context.Context, personaID string, role Role, text string) (Message, error) {
	if !role.Valid() {
		return Message{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load(ctx)
	if err != nil {
		return Message{}, err
	}

	now := s.now()
	var target int
	if idx := forPersona(all, personaID); len(idx) > 0 {
		target = idx[0]
	} else {
		all = append(all, Session{ID: uuid.NewString(), PersonaID: personaID})
		target = len(all) - 1
	}

	msg := Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   text,
		Timestamp: now,
		PersonaID: personaID,
	}
	sess := &all[target]
	sess.Messages = append(sess.Messages, msg)
	sess.MessageCount = len(sess.Messages)
	sess.LastUpdated = now

	all = s.retain(all, personaID)
	if err := s.save(ctx, all); err != nil {
		return msg, err
	}
	return msg, nil
}

// StartNew creates an empty session for personaID. It becomes the current
// session; older ones are kept subject to retention.
func (s *Store) StartNew(ctx context.Context, personaID string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load(ctx)
	if err != nil {
		return Session{}, err
	}
	sess := Session{
		ID:          uuid.NewString(),
		PersonaID:   personaID,
		Messages:    []Message{},
		LastUpdated: s.now(),
	}
	all = append(all, sess)
	all = s.retain(all, personaID)
	if err := s.save(ctx, all); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Clear removes every session of personaID. Other personas are untouched.
func (s *Store) Clear(ctx context.Context, personaID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load(ctx)
	if err != nil {
		return err
	}
	kept := all[:0]
	for _, sess := range all {
		if sess.PersonaID != personaID {
			kept = append(kept, sess)
		}
	}
	return s.save(ctx, kept)
}

// ClearAll removes every session of every persona.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("chat: clear all: %w", err)
	}
	return nil
}

// Stats counts sessions and messages.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	all, err := s.load(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{PerPersona: make(map[string]int)}
	for _, sess := range all {
		st.TotalSessions++
		st.TotalMessages += len(sess.Messages)
		st.PerPersona[sess.PersonaID]++
	}
	return st, nil
}

// Search returns personaID's messages whose content contains query,
// case-insensitively, oldest first.
func (s *Store) Search(ctx context.Context, personaID, query string) ([]Message, error) {
	sessions, err := s.Sessions(ctx, personaID)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var out []Message
	for i := len(sessions) - 1; i >= 0; i-- {
		for _, m := range sessions[i].Messages {
			if strings.Contains(strings.ToLower(m.Content), q) {
				out = append(out, m)
			}
		}
	}
	return out, nil
}
