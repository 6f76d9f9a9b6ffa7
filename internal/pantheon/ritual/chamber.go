package ritual

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bdobrica/pantheon/common/chance"
	"github.com/bdobrica/pantheon/internal/pantheon/memory"
	"github.com/bdobrica/pantheon/internal/pantheon/metrics"
	"github.com/bdobrica/pantheon/internal/pantheon/oracle"
	"github.com/bdobrica/pantheon/internal/pantheon/persona"
	"github.com/bdobrica/pantheon/internal/pantheon/voice"
)

var (
	ErrNotFound    = errors.New("ritual: no such active ritual")
	ErrNoOfferings = errors.New("ritual: at least one offering is required")
)

// Status is the lifecycle of an active ritual.
type Status string

const (
	StatusPreparing Status = "preparing"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Participant is the name recorded for the mortal performing a ritual.
const Participant = "User"

// ActiveRitual is a ritual between Start and Complete.
type ActiveRitual struct {
	ID           string     `json:"id"`
	Ritual       Ritual     `json:"ritual"`
	PersonaID    string     `json:"personaId"`
	StartTime    time.Time  `json:"startTime"`
	EndTime      time.Time  `json:"endTime"`
	Offerings    []Offering `json:"offerings"`
	Status       Status     `json:"status"`
	Progress     int        `json:"progress"`
	Participants []string   `json:"participants"`
}

func (a *ActiveRitual) offeringNames() []string {
	out := make([]string, 0, len(a.Offerings))
	for _, o := range a.Offerings {
		out = append(out, o.Name)
	}
	return out
}

// Narrator voices a ritual outcome. *oracle.Engine implements it.
type Narrator interface {
	NarrateRitual(ctx context.Context, p persona.Persona, ritualName string, offerings []string, intent string) (string, bool)
}

var _ Narrator = (*oracle.Engine)(nil)

// Config wires a Chamber. Nil catalogs fall back to the built-in ones.
type Config struct {
	Catalog  *Catalog
	Personas *persona.Catalog
	Memory   *memory.Service
	Narrator Narrator
	Speaker  voice.Speaker
	Metrics  *metrics.Recorder
	Rand     chance.Source
	Logger   *slog.Logger
	Now      func() time.Time
}

// Chamber tracks active rituals and applies their outcomes. It is safe for
// concurrent use.
type Chamber struct {
	catalog  *Catalog
	personas *persona.Catalog
	memory   *memory.Service
	narrator Narrator
	speaker  voice.Speaker
	metrics  *metrics.Recorder
	rand     chance.Source
	log      *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	active map[string]*ActiveRitual
}

// NewChamber returns an empty Chamber.
func NewChamber(cfg Config) *Chamber {
	if cfg.Catalog == nil {
		cfg.Catalog = Builtin()
	}
	if cfg.Personas == nil {
		cfg.Personas = persona.Builtin()
	}
	if cfg.Rand == nil {
		cfg.Rand = chance.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Chamber{
		catalog:  cfg.Catalog,
		personas: cfg.Personas,
		memory:   cfg.Memory,
		narrator: cfg.Narrator,
		speaker:  cfg.Speaker,
		metrics:  cfg.Metrics,
		rand:     cfg.Rand,
		log:      cfg.Logger,
		now:      cfg.Now,
		active:   make(map[string]*ActiveRitual),
	}
}

// Catalog returns the chamber's ritual catalog.
func (c *Chamber) Catalog() *Catalog { return c.catalog }

// Rituals returns every known ritual.
func (c *Chamber) Rituals() []Ritual { return c.catalog.Rituals() }

// Offerings returns every known offering.
func (c *Chamber) Offerings() []Offering { return c.catalog.Offerings() }

// Recommendations returns the rituals favoring personaID.
func (c *Chamber) Recommendations(personaID string) ([]Ritual, error) {
	p, err := c.personas.Find(personaID)
	if err != nil {
		return nil, err
	}
	return c.catalog.Recommendations(p), nil
}

// OfferingRecommendations returns offerings suited to rituals of type t.
func (c *Chamber) OfferingRecommendations(t Type) []Offering {
	return c.catalog.OfferingRecommendations(t)
}

// Start begins ritualID for personaID with the given offerings and records
// the start in the persona's memory. Memory failures are logged only.
func (c *Chamber) Start(ctx context.Context, ritualID, personaID string, offeringIDs []string) (ActiveRitual, error) {
	r, err := c.catalog.Ritual(ritualID)
	if err != nil {
		return ActiveRitual{}, err
	}
	p, err := c.personas.Find(personaID)
	if err != nil {
		return ActiveRitual{}, err
	}
	if len(offeringIDs) == 0 {
		return ActiveRitual{}, ErrNoOfferings
	}
	offerings, err := c.catalog.Resolve(offeringIDs)
	if err != nil {
		return ActiveRitual{}, err
	}

	now := c.now()
	a := &ActiveRitual{
		ID:           "ritual-" + uuid.NewString(),
		Ritual:       r,
		PersonaID:    p.ID,
		StartTime:    now,
		EndTime:      now.Add(r.Duration),
		Offerings:    offerings,
		Status:       StatusPreparing,
		Participants: []string{Participant},
	}

	c.mu.Lock()
	c.active[a.ID] = a
	snap := a.clone()
	c.mu.Unlock()

	c.log.Info("ritual: started", "ritual_id", a.ID, "ritual", r.ID, "persona_id", p.ID, "offerings", len(offerings))
	if err := c.remember(ctx, p, memory.NewEntry{
		Kind:       memory.KindRitual,
		Content:    fmt.Sprintf("Ritual %q has begun. Offerings: %s", r.Name, strings.Join(snap.offeringNames(), ", ")),
		Importance: 8,
		Tags:       []string{"ritual", "summoning", string(r.Type), "divine-interaction"},
		Metadata: map[string]any{
			"ritualId":   a.ID,
			"ritualType": string(r.Type),
			"offerings":  offeringIDs,
		},
	}); err != nil {
		c.log.Warn("ritual: start not recorded", "ritual_id", a.ID, "persona_id", p.ID, "err", err)
	}
	return snap, nil
}

func (a *ActiveRitual) clone() ActiveRitual {
	out := *a
	out.Offerings = slices.Clone(a.Offerings)
	out.Participants = slices.Clone(a.Participants)
	return out
}

// remember initializes the persona's memory when needed and appends e.
func (c *Chamber) remember(ctx context.Context, p persona.Persona, e memory.NewEntry) error {
	if c.memory == nil {
		return nil
	}
	if _, err := c.memory.Initialize(ctx, p); err != nil {
		return err
	}
	_, err := c.memory.AddEntry(ctx, p.ID, e)
	return err
}

// Active returns personaID's rituals that have not completed, oldest first.
// An empty personaID returns all of them.
func (c *Chamber) Active(personaID string) []ActiveRitual {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []ActiveRitual
	for _, a := range c.active {
		if personaID == "" || a.PersonaID == personaID {
			out = append(out, a.clone())
		}
	}
	slices.SortFunc(out, func(a, b ActiveRitual) int {
		if n := a.StartTime.Compare(b.StartTime); n != 0 {
			return n
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Get returns the active ritual id.
func (c *Chamber) Get(id string) (ActiveRitual, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.active[id]
	if !ok {
		return ActiveRitual{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return a.clone(), nil
}

// UpdateProgress sets the progress of id, clamped to [0, 100]. A preparing
// ritual becomes active; reaching 100 completes it, in which case the
// Result is returned as well.
func (c *Chamber) UpdateProgress(ctx context.Context, id string, progress int) (ActiveRitual, *Result, error) {
	c.mu.Lock()
	a, ok := c.active[id]
	if !ok {
		c.mu.Unlock()
		return ActiveRitual{}, nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	a.Progress = min(100, max(0, progress))
	if a.Status == StatusPreparing {
		a.Status = StatusActive
	}
	snap := a.clone()
	c.mu.Unlock()

	if snap.Progress < 100 {
		return snap, nil, nil
	}
	res, err := c.Complete(ctx, id)
	if err != nil {
		// Completed concurrently by another caller.
		return snap, nil, err
	}
	return res.Ritual, &res, nil
}

// Result is a completed ritual and its consequences.
type Result struct {
	Ritual  ActiveRitual `json:"ritual"`
	Outcome Outcome      `json:"outcome"`
	// Relationship is the persona's relationship score after the delta.
	Relationship int `json:"relationship"`
	// PersistErrors collects memory and log failures. The outcome stands
	// regardless.
	PersistErrors []error `json:"-"`
}

// Err joins the persistence failures.
func (r Result) Err() error { return errors.Join(r.PersistErrors...) }

// Complete resolves id and applies the outcome: a completion memory entry,
// the relationship delta and a ritual log record. The ritual leaves the
// active set only once its persona is resolved.
func (c *Chamber) Complete(ctx context.Context, id string) (Result, error) {
	c.mu.Lock()
	a, ok := c.active[id]
	if !ok {
		c.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	p, err := c.personas.Find(a.PersonaID)
	if err != nil {
		c.mu.Unlock()
		return Result{}, fmt.Errorf("ritual %q: %w", id, err)
	}
	delete(c.active, id)
	c.mu.Unlock()

	out := Resolve(c.rand, a.Ritual, p, a.Offerings)
	a.Progress = 100
	a.Status = StatusFailed
	verdict, outcome := "Failed!", "Failure"
	if out.Success {
		a.Status = StatusCompleted
		verdict, outcome = "Success!", "Success"
	}
	if c.narrator != nil {
		if text, ok := c.narrator.NarrateRitual(ctx, p, a.Ritual.Name, a.offeringNames(), out.Message); ok {
			out.DivineResponse = text
			out.Narrated = true
		}
	}

	res := Result{Ritual: a.clone(), Outcome: out}
	if err := c.remember(ctx, p, memory.NewEntry{
		Kind:       memory.KindRitual,
		Content:    fmt.Sprintf("Ritual %q completed. %s %s", a.Ritual.Name, verdict, out.Message),
		Importance: 9,
		Tags:       []string{"ritual", "completion", string(a.Ritual.Type), strings.ToLower(outcome)},
		Metadata: map[string]any{
			"ritualId":   a.ID,
			"ritualType": string(a.Ritual.Type),
			"success":    out.Success,
			"effects":    out.Effects,
			"rewards":    out.Rewards,
		},
	}); err != nil {
		res.PersistErrors = append(res.PersistErrors, err)
	}

	if c.memory != nil {
		rel, err := c.memory.AdjustRelationship(ctx, p.ID, out.RelationshipChange)
		if err != nil {
			res.PersistErrors = append(res.PersistErrors, err)
		}
		res.Relationship = rel
		if _, err := c.memory.RecordRitual(ctx, memory.RitualRecord{
			PersonaID:      p.ID,
			RitualType:     a.Ritual.Name,
			Participants:   a.Participants,
			Outcome:        outcome,
			Effects:        out.Effects,
			Offerings:      a.offeringNames(),
			DivineResponse: out.DivineResponse,
		}); err != nil {
			res.PersistErrors = append(res.PersistErrors, err)
		}
	}

	c.metrics.RecordRitual(string(a.Ritual.Type), out.Success)
	voice.SpeakAsync(c.speaker, out.DivineResponse, p.Temperament, c.log)

	log := c.log.With("ritual_id", a.ID, "ritual", a.Ritual.ID, "persona_id", p.ID)
	if err := res.Err(); err != nil {
		log.Warn("ritual: outcome not fully persisted", "err", err)
	}
	log.Info("ritual: completed", "success", out.Success, "chance", out.Chance, "delta", out.RelationshipChange)
	return res, nil
}
