package ritual_test

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bdobrica/pantheon/common/chance"
	"github.com/bdobrica/pantheon/internal/pantheon/kv"
	"github.com/bdobrica/pantheon/internal/pantheon/memory"
	"github.com/bdobrica/pantheon/internal/pantheon/metrics"
	"github.com/bdobrica/pantheon/internal/pantheon/persona"
	"github.com/bdobrica/pantheon/internal/pantheon/ritual"
)

func mustPersona(t *testing.T, id string) persona.Persona {
	t.Helper()
	p, err := persona.Builtin().Find(id)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func ids[T any](items []T, id func(T) string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, id(it))
	}
	return out
}

func ritualID(r ritual.Ritual) string     { return r.ID }
func offeringID(o ritual.Offering) string { return o.ID }

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

func TestBuiltinCatalog(t *testing.T) {
	c := ritual.Builtin()
	if n := len(c.Rituals()); n != 6 {
		t.Fatalf("rituals = %d, want 6", n)
	}
	if n := len(c.Offerings()); n != 11 {
		t.Fatalf("offerings = %d, want 11", n)
	}
	quest, err := c.Ritual("divine-quest")
	if err != nil {
		t.Fatal(err)
	}
	if quest.Duration != time.Hour || quest.Difficulty != 5 || quest.Type != ritual.TypeDivineQuest {
		t.Fatalf("divine-quest = %+v", quest)
	}
	if _, err := c.Ritual("nope"); !errors.Is(err, ritual.ErrUnknownRitual) {
		t.Fatalf("unknown ritual err = %v", err)
	}
	if _, err := c.Resolve([]string{"golden-apple", "nope"}); !errors.Is(err, ritual.ErrUnknownOffering) {
		t.Fatalf("unknown offering err = %v", err)
	}
	if got := ids(c.OfferingsOfRarity("legendary"), offeringID); !slices.Equal(got, []string{"golden-apple", "divine-tear", "void-essence"}) {
		t.Fatalf("legendary = %v", got)
	}
	if got := ids(c.OfferingsOfType(ritual.OfferingSpiritual), offeringID); !slices.Equal(got, []string{"pure-prayer", "meditation-essence"}) {
		t.Fatalf("spiritual = %v", got)
	}
}

func TestRecommendations(t *testing.T) {
	c := ritual.Builtin()
	tests := []struct {
		persona string
		want    []string
	}{
		{"elion", []string{"divine-offering", "god-summoning", "divine-quest", "purification-rite"}},
		{"nyxa", []string{"divine-offering", "god-summoning"}},
		{"V1R3", []string{"god-summoning", "corruption-embrace", "glitch-ritual"}},
	}
	for _, tt := range tests {
		got := ids(c.Recommendations(mustPersona(t, tt.persona)), ritualID)
		if !slices.Equal(got, tt.want) {
			t.Errorf("Recommendations(%s) = %v, want %v", tt.persona, got, tt.want)
		}
	}
}

func TestOfferingRecommendations(t *testing.T) {
	c := ritual.Builtin()
	got := ids(c.OfferingRecommendations(ritual.TypeGlitch), offeringID)
	want := []string{"digital-artifact", "glitch-fragment", "soul-fragment", "void-essence"}
	if !slices.Equal(got, want) {
		t.Fatalf("glitch offerings = %v, want %v", got, want)
	}
	if got := ritual.PreferredOfferingTypes("unknown"); !slices.Equal(got, []ritual.OfferingType{ritual.OfferingMaterial, ritual.OfferingSpiritual}) {
		t.Fatalf("default preferred types = %v", got)
	}
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	const offerings = `
offerings:
  - {id: apple, type: material, name: Apple, value: 10}
`
	tests := map[string]string{
		"difficulty out of range": `
rituals:
  - {id: r, type: offering, name: R, duration: 5m, difficulty: 6}
` + offerings,
		"bad duration": `
rituals:
  - {id: r, type: offering, name: R, duration: soon, difficulty: 1}
` + offerings,
		"unknown type": `
rituals:
  - {id: r, type: dance, name: R, duration: 5m, difficulty: 1}
` + offerings,
		"duplicate ritual": `
rituals:
  - {id: r, type: offering, name: R, duration: 5m, difficulty: 1}
  - {id: r, type: glitch, name: R2, duration: 5m, difficulty: 1}
` + offerings,
		"no offerings": `
rituals:
  - {id: r, type: offering, name: R, duration: 5m, difficulty: 1}
offerings: []
`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ritual.Parse([]byte(doc)); err == nil {
				t.Fatal("Parse accepted an invalid catalog")
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

func TestSuccessChance(t *testing.T) {
	vaur := mustPersona(t, "vaur")
	elion := mustPersona(t, "elion")
	perfect := []ritual.Offering{{Value: 100}, {Value: 100}}
	worthless := []ritual.Offering{{Value: 0}}
	easy := ritual.Ritual{Difficulty: 1}

	tests := []struct {
		name      string
		r         ritual.Ritual
		p         persona.Persona
		offerings []ritual.Offering
		want      float64
	}{
		{"capped at maximum", easy, vaur, perfect, 0.9},
		{"floor", easy, vaur, worthless, 0.1},
		{"no offerings", easy, vaur, nil, 0.1},
		{"plain", ritual.Ritual{Difficulty: 2}, vaur, []ritual.Offering{{Value: 85}}, 0.68},
		{"affinity by name", ritual.Ritual{Difficulty: 1, Affinity: []string{"Elion"}}, elion, perfect, 1.1},
		{"affinity all", ritual.Ritual{Difficulty: 5, Affinity: []string{"all"}}, vaur, worthless, 0.3},
		{"affinity elsewhere", ritual.Ritual{Difficulty: 1, Affinity: []string{"suun"}}, elion, worthless, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ritual.SuccessChance(tt.r, tt.p, tt.offerings)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("SuccessChance = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveSuccess(t *testing.T) {
	c := ritual.Builtin()
	r, _ := c.Ritual("divine-offering")
	offerings, _ := c.Resolve([]string{"golden-apple"})
	src := &chance.Scripted{Floats: []float64{0}, Ints: []int{19, 1}}

	out := ritual.Resolve(src, r, mustPersona(t, "vaur"), offerings)
	if !out.Success {
		t.Fatalf("outcome = %+v, want success", out)
	}
	if out.RelationshipChange != 29 {
		t.Fatalf("delta = %d, want 29", out.RelationshipChange)
	}
	if out.DivineResponse != "These gifts are worthy of divine attention. You have earned my favor." {
		t.Fatalf("response = %q", out.DivineResponse)
	}
	if !slices.Equal(out.Rewards, r.Rewards) || len(out.Penalties) != 0 || out.Importance != 9 {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Message != "The ritual succeeds! Divine Offering has granted you divine favor." {
		t.Fatalf("message = %q", out.Message)
	}
}

func TestResolveFailure(t *testing.T) {
	c := ritual.Builtin()
	r, _ := c.Ritual("glitch-ritual")
	offerings, _ := c.Resolve([]string{"meditation-essence"})
	src := &chance.Scripted{Floats: []float64{0.99}, Ints: []int{0, 0}}

	out := ritual.Resolve(src, r, mustPersona(t, "elion"), offerings)
	if out.Success {
		t.Fatalf("outcome = %+v, want failure", out)
	}
	if out.RelationshipChange != -20 {
		t.Fatalf("delta = %d, want -20", out.RelationshipChange)
	}
	if !slices.Equal(out.Penalties, r.Risks) || len(out.Rewards) != 0 {
		t.Fatalf("outcome = %+v", out)
	}
	if !strings.Contains(out.DivineResponse, "disordered") {
		t.Fatalf("Orderly failure response = %q", out.DivineResponse)
	}
}

func TestResolveDeltaRanges(t *testing.T) {
	c := ritual.Builtin()
	p := mustPersona(t, "suun")
	offerings, _ := c.Resolve([]string{"pure-prayer", "sacred-flame"})
	for seed := range uint64(300) {
		src := chance.New(seed)
		for _, r := range c.Rituals() {
			out := ritual.Resolve(src, r, p, offerings)
			lo, hi := ritual.MinFailureDelta, ritual.MaxFailureDelta
			if out.Success {
				lo, hi = ritual.MinSuccessDelta, ritual.MaxSuccessDelta
			}
			if out.RelationshipChange < lo || out.RelationshipChange > hi {
				t.Fatalf("seed %d %s: delta %d outside [%d,%d]", seed, r.ID, out.RelationshipChange, lo, hi)
			}
			if out.DivineResponse == "" {
				t.Fatalf("seed %d %s: empty divine response", seed, r.ID)
			}
		}
	}
}

func TestEveryTemperamentAnswersEveryRitual(t *testing.T) {
	c := ritual.Builtin()
	for _, p := range persona.Builtin().All() {
		for _, r := range c.Rituals() {
			for _, f := range []float64{0, 0.999} {
				out := ritual.Resolve(&chance.Scripted{Floats: []float64{f}}, r, p, nil)
				if out.DivineResponse == "" {
					t.Errorf("%s / %s: empty response", p.ID, r.ID)
				}
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Chamber
// ---------------------------------------------------------------------------

type fakeNarrator struct {
	text   string
	ok     bool
	intent string
}

func (f *fakeNarrator) NarrateRitual(_ context.Context, _ persona.Persona, _ string, _ []string, intent string) (string, bool) {
	f.intent = intent
	return f.text, f.ok
}

// failingKV reads like an empty store and refuses every write.
type failingKV struct{ *kv.Memory }

func (failingKV) Set(context.Context, string, string) error { return errors.New("disk full") }

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type chamberFixture struct {
	chamber *ritual.Chamber
	memory  *memory.Service
	metrics *metrics.Recorder
}

func newChamber(t *testing.T, backend kv.Store, src chance.Source, narrator ritual.Narrator) chamberFixture {
	t.Helper()
	if backend == nil {
		backend = kv.NewMemory()
	}
	rec, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	mem := memory.New(backend, memory.Config{})
	ch := ritual.NewChamber(ritual.Config{
		Memory:   mem,
		Narrator: narrator,
		Metrics:  rec,
		Rand:     src,
		Now:      func() time.Time { return epoch },
	})
	return chamberFixture{chamber: ch, memory: mem, metrics: rec}
}

func TestStartValidation(t *testing.T) {
	f := newChamber(t, nil, nil, nil)
	ctx := context.Background()
	tests := []struct {
		name      string
		ritual    string
		persona   string
		offerings []string
		want      error
	}{
		{"unknown ritual", "dance", "elion", []string{"golden-apple"}, ritual.ErrUnknownRitual},
		{"unknown persona", "divine-offering", "zeus", []string{"golden-apple"}, persona.ErrUnknownPersona},
		{"no offerings", "divine-offering", "elion", nil, ritual.ErrNoOfferings},
		{"unknown offering", "divine-offering", "elion", []string{"moonstone"}, ritual.ErrUnknownOffering},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.chamber.Start(ctx, tt.ritual, tt.persona, tt.offerings); !errors.Is(err, tt.want) {
				t.Fatalf("Start err = %v, want %v", err, tt.want)
			}
		})
	}
	if n := len(f.chamber.Active("")); n != 0 {
		t.Fatalf("%d rituals active after failed starts", n)
	}
}

func TestChamberSuccessfulRitual(t *testing.T) {
	ctx := context.Background()
	f := newChamber(t, nil, &chance.Scripted{Floats: []float64{0}, Ints: []int{5, 0}}, nil)

	a, err := f.chamber.Start(ctx, "divine-offering", "Elion", []string{"golden-apple", "divine-tear"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if a.Status != ritual.StatusPreparing || a.PersonaID != "elion" || !a.EndTime.Equal(epoch.Add(15*time.Minute)) {
		t.Fatalf("started ritual = %+v", a)
	}

	m, err := f.memory.Get(ctx, "elion")
	if err != nil {
		t.Fatalf("memory.Get: %v", err)
	}
	last := m.Entries[len(m.Entries)-1]
	if last.Kind != memory.KindRitual || last.Importance != 8 ||
		last.Content != `Ritual "Divine Offering" has begun. Offerings: Golden Apple, Divine Tear` {
		t.Fatalf("start entry = %+v", last)
	}

	a, res, err := f.chamber.UpdateProgress(ctx, a.ID, 40)
	if err != nil || res != nil {
		t.Fatalf("UpdateProgress(40) = %v, %v", res, err)
	}
	if a.Status != ritual.StatusActive || a.Progress != 40 {
		t.Fatalf("after progress = %+v", a)
	}
	if got := f.chamber.Active("elion"); len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("Active = %+v", got)
	}

	a, res, err = f.chamber.UpdateProgress(ctx, a.ID, 250)
	if err != nil || res == nil {
		t.Fatalf("UpdateProgress(250) = %v, %v", res, err)
	}
	if err := res.Err(); err != nil {
		t.Fatalf("persist errors: %v", err)
	}
	if a.Status != ritual.StatusCompleted || a.Progress != 100 {
		t.Fatalf("completed ritual = %+v", a)
	}
	if !res.Outcome.Success || res.Outcome.RelationshipChange != 15 || res.Relationship != 15 {
		t.Fatalf("result = %+v", res)
	}

	m, _ = f.memory.Get(ctx, "elion")
	if m.Personality.RelationshipWithUser != 15 {
		t.Fatalf("relationship = %d, want 15", m.Personality.RelationshipWithUser)
	}
	last = m.Entries[len(m.Entries)-1]
	if last.Importance != 9 || !slices.Contains(last.Tags, "success") ||
		!strings.HasPrefix(last.Content, `Ritual "Divine Offering" completed. Success!`) {
		t.Fatalf("completion entry = %+v", last)
	}

	log, err := f.memory.Rituals(ctx)
	if err != nil || len(log) != 1 {
		t.Fatalf("ritual log = %+v, %v", log, err)
	}
	if rec := log[0]; rec.Outcome != "Success" || rec.RitualType != "Divine Offering" ||
		!slices.Equal(rec.Offerings, []string{"Golden Apple", "Divine Tear"}) || rec.DivineResponse != res.Outcome.DivineResponse {
		t.Fatalf("ritual record = %+v", rec)
	}

	if n := len(f.chamber.Active("")); n != 0 {
		t.Fatalf("%d rituals still active", n)
	}
	if _, err := f.chamber.Complete(ctx, a.ID); !errors.Is(err, ritual.ErrNotFound) {
		t.Fatalf("second Complete err = %v", err)
	}

	rec := httptest.NewRecorder()
	f.metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if want := `pantheon_rituals_completed_total{success="true",type="offering"} 1`; !strings.Contains(string(body), want) {
		t.Fatalf("metrics missing %q", want)
	}
}

func TestChamberFailedRitual(t *testing.T) {
	ctx := context.Background()
	f := newChamber(t, nil, &chance.Scripted{Floats: []float64{0.95}, Ints: []int{0}}, nil)

	a, err := f.chamber.Start(ctx, "corruption-embrace", "elion", []string{"meditation-essence"})
	if err != nil {
		t.Fatal(err)
	}
	res, err := f.chamber.Complete(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome.Success || res.Ritual.Status != ritual.StatusFailed {
		t.Fatalf("result = %+v", res)
	}
	if res.Relationship != -20 {
		t.Fatalf("relationship = %d, want -20", res.Relationship)
	}
	log, _ := f.memory.Rituals(ctx)
	if len(log) != 1 || log[0].Outcome != "Failure" {
		t.Fatalf("ritual log = %+v", log)
	}
}

func TestChamberNarration(t *testing.T) {
	ctx := context.Background()
	narrator := &fakeNarrator{text: "The stars bend to your gift.", ok: true}
	f := newChamber(t, nil, &chance.Scripted{Floats: []float64{0}}, narrator)

	a, _ := f.chamber.Start(ctx, "god-summoning", "nyxa", []string{"pure-prayer"})
	res, err := f.chamber.Complete(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Outcome.Narrated || res.Outcome.DivineResponse != narrator.text {
		t.Fatalf("outcome = %+v", res.Outcome)
	}
	if narrator.intent != res.Outcome.Message {
		t.Fatalf("narrator intent = %q, want %q", narrator.intent, res.Outcome.Message)
	}

	narrator.ok = false
	a, _ = f.chamber.Start(ctx, "god-summoning", "nyxa", []string{"pure-prayer"})
	res, _ = f.chamber.Complete(ctx, a.ID)
	if res.Outcome.Narrated || res.Outcome.DivineResponse == narrator.text {
		t.Fatalf("declined narration still used: %+v", res.Outcome)
	}
}

func TestChamberPersistFailuresDoNotUndoOutcome(t *testing.T) {
	ctx := context.Background()
	f := newChamber(t, failingKV{kv.NewMemory()}, &chance.Scripted{Floats: []float64{0}}, nil)

	a, err := f.chamber.Start(ctx, "purification-rite", "suun", []string{"pure-prayer"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	res, err := f.chamber.Complete(ctx, a.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !res.Outcome.Success || len(res.PersistErrors) == 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestChamberRecommendations(t *testing.T) {
	f := newChamber(t, nil, nil, nil)
	got, err := f.chamber.Recommendations("vaur")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"god-summoning", "corruption-embrace"}; !slices.Equal(ids(got, ritualID), want) {
		t.Fatalf("Recommendations(vaur) = %v, want %v", ids(got, ritualID), want)
	}
	if _, err := f.chamber.Recommendations("zeus"); !errors.Is(err, persona.ErrUnknownPersona) {
		t.Fatalf("unknown persona err = %v", err)
	}
}
