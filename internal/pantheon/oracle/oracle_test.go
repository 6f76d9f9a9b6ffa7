package oracle_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/bdobrica/pantheon/common/chance"
	"github.com/bdobrica/pantheon/internal/pantheon/chat"
	"github.com/bdobrica/pantheon/internal/pantheon/kv"
	"github.com/bdobrica/pantheon/internal/pantheon/llm"
	"github.com/bdobrica/pantheon/internal/pantheon/memory"
	"github.com/bdobrica/pantheon/internal/pantheon/oracle"
	"github.com/bdobrica/pantheon/internal/pantheon/persona"
)

// fakeClient records requests and answers with text or err.
type fakeClient struct {
	ready bool
	text  string
	err   error
	// nilCompletion makes Complete return (nil, nil).
	nilCompletion bool

	mu   sync.Mutex
	reqs []llm.CompletionRequest
}

func (f *fakeClient) Initialize(context.Context) bool { return f.ready }
func (f *fakeClient) Ready() bool                     { return f.ready }

func (f *fakeClient) Complete(_ context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.nilCompletion {
		return nil, nil
	}
	return &llm.Completion{Text: f.text, Model: "test-model", Usage: llm.Usage{TotalTokens: 42}}, nil
}

func (f *fakeClient) last(t *testing.T) llm.CompletionRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reqs) == 0 {
		t.Fatal("no completion request was made")
	}
	return f.reqs[len(f.reqs)-1]
}

// failingKV reads like an empty store and refuses every write.
type failingKV struct{ *kv.Memory }

var errDiskFull = errors.New("disk full")

func (failingKV) Set(context.Context, string, string) error { return errDiskFull }

type fixture struct {
	engine *oracle.Engine
	chat   *chat.Store
	memory *memory.Service
}

func newFixture(t *testing.T, client llm.Client, backend kv.Store, policy oracle.RelationshipPolicy) fixture {
	t.Helper()
	if backend == nil {
		backend = kv.NewMemory()
	}
	mem := memory.New(backend, memory.Config{})
	cs := chat.New(backend, chat.Config{})
	e := oracle.New(oracle.Config{
		Client:       client,
		Memory:       mem,
		Chat:         cs,
		Rand:         &chance.Scripted{Floats: []float64{0.9}},
		Relationship: policy,
	})
	return fixture{engine: e, chat: cs, memory: mem}
}

func mustPersona(t *testing.T, id string) persona.Persona {
	t.Helper()
	p, err := persona.Builtin().Find(id)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// ---------------------------------------------------------------------------
// Converse
// ---------------------------------------------------------------------------

func TestConverse_OfflineElionHelpMePlan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil, nil)
	elion := mustPersona(t, "elion")

	turn, err := f.engine.Converse(ctx, elion, "help me plan")
	if err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if err := turn.Err(); err != nil {
		t.Fatalf("persist errors: %v", err)
	}
	if turn.Reply.Source != oracle.SourceFallback {
		t.Fatalf("source = %q, want fallback", turn.Reply.Source)
	}
	for _, want := range []string{"Elion", "structured", `"help me plan"`} {
		if !strings.Contains(turn.Reply.Text, want) {
			t.Errorf("reply %q does not contain %q", turn.Reply.Text, want)
		}
	}

	sess, ok, err := f.chat.Current(ctx, "elion")
	if err != nil || !ok {
		t.Fatalf("Current: ok=%v err=%v", ok, err)
	}
	var users, assistants int
	for _, m := range sess.Messages {
		switch m.Role {
		case chat.RoleUser:
			users++
		case chat.RoleAssistant:
			assistants++
		}
	}
	if users != 1 || assistants != 1 || len(sess.Messages) != 2 {
		t.Fatalf("session has %d user and %d assistant messages (%d total)", users, assistants, len(sess.Messages))
	}
	if sess.Messages[1].Content != turn.Reply.Text {
		t.Fatalf("assistant message = %q", sess.Messages[1].Content)
	}

	m, err := f.memory.Get(ctx, "elion")
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if len(m.Entries) != 2 {
		t.Fatalf("entries = %d, want creation + one conversation", len(m.Entries))
	}
	got := m.Entries[1]
	if got.Kind != memory.KindConversation || got.Importance != 5 {
		t.Fatalf("entry = %+v", got)
	}
	if want := "User: help me plan | Elion: "; !strings.HasPrefix(got.Content, want) {
		t.Fatalf("entry content = %q", got.Content)
	}
	if m.Personality.CurrentMood != "Focused" {
		t.Fatalf("mood = %q, want Focused", m.Personality.CurrentMood)
	}
	if m.Personality.RelationshipWithUser != 1 {
		t.Fatalf("relationship = %d, want 1", m.Personality.RelationshipWithUser)
	}
	if turn.Personality == nil || turn.Entry == nil {
		t.Fatalf("turn is missing entry or personality: %+v", turn)
	}
}

func TestConverse_RemoteReply(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{ready: true, text: "Order is the root of every plan."}
	f := newFixture(t, client, nil, nil)
	elion := mustPersona(t, "elion")

	turn, err := f.engine.Converse(ctx, elion, "help me plan")
	if err != nil {
		t.Fatal(err)
	}
	if turn.Reply.Source != oracle.SourceRemote || turn.Reply.Text != client.text || turn.Reply.Model != "test-model" {
		t.Fatalf("reply = %+v", turn.Reply)
	}
	req := client.last(t)
	if req.User != "help me plan" || req.MaxTokens != 1000 || req.Temperature != 0.8 || req.BudgetKey != "elion" {
		t.Fatalf("request = %+v", req)
	}
	for _, want := range []string{
		"You are Elion, the Order incarnate.",
		"- **Mood**: Contemplative",
		"- **Relationship with User**: 0/100 (Neutral)",
		"- **Knowledge Level**: 85/100",
		"Speak with precision and structure",
	} {
		if !strings.Contains(req.System, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}

	if turn.Entry == nil || turn.Entry.Kind != memory.KindInteraction || turn.Entry.Importance != 8 {
		t.Fatalf("entry = %+v", turn.Entry)
	}
	want := `User asked: "help me plan" | Elion responded: "Order is the root of every plan."`
	if turn.Entry.Content != want {
		t.Fatalf("entry content = %q", turn.Entry.Content)
	}

	// The second turn sees the first in its history and the updated mood.
	if _, err := f.engine.Converse(ctx, elion, "and then?"); err != nil {
		t.Fatal(err)
	}
	req = client.last(t)
	for _, want := range []string{
		"Mortal: help me plan\n",
		"Elion: Order is the root of every plan.\n",
		"- **Mood**: Focused",
	} {
		if !strings.Contains(req.System, want) {
			t.Errorf("second prompt missing %q", want)
		}
	}
	if strings.Contains(req.System, "Mortal: and then?") {
		t.Error("current message leaked into the history block")
	}
}

func TestConverse_PersistErrorsKeepTheReply(t *testing.T) {
	f := newFixture(t, nil, failingKV{kv.NewMemory()}, nil)
	vaur := mustPersona(t, "vaur")

	turn, err := f.engine.Converse(context.Background(), vaur, "show me the dark")
	if err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if turn.Reply.Text == "" {
		t.Fatal("reply is empty")
	}
	if len(turn.PersistErrors) == 0 || !errors.Is(turn.Err(), errDiskFull) {
		t.Fatalf("persist errors = %v", turn.PersistErrors)
	}
}

func TestConverse_EmptyMessage(t *testing.T) {
	f := newFixture(t, nil, nil, nil)
	if _, err := f.engine.Converse(context.Background(), mustPersona(t, "suun"), "  \n"); !errors.Is(err, oracle.ErrEmptyMessage) {
		t.Fatalf("err = %v", err)
	}
	if _, ok, _ := f.chat.Current(context.Background(), "suun"); ok {
		t.Fatal("a session was created for an empty message")
	}
}

func TestConverse_RelationshipPolicyIsReplaceable(t *testing.T) {
	ctx := context.Background()
	policy := oracle.RelationshipFunc(func(p persona.Persona, msg string, r oracle.Reply) int { return 150 })
	f := newFixture(t, nil, nil, policy)

	turn, err := f.engine.Converse(ctx, mustPersona(t, "nyxa"), "tell me of the dream")
	if err != nil {
		t.Fatal(err)
	}
	if turn.Personality.RelationshipWithUser != memory.MaxRelationship {
		t.Fatalf("relationship = %d, want clamped to %d", turn.Personality.RelationshipWithUser, memory.MaxRelationship)
	}
	if turn.Personality.CurrentMood != "Intrigued" {
		t.Fatalf("mood = %q", turn.Personality.CurrentMood)
	}
}

// ---------------------------------------------------------------------------
// Generate
// ---------------------------------------------------------------------------

func TestGenerate_AlwaysFailingClientFallsBackForEveryTemperament(t *testing.T) {
	clients := map[string]*fakeClient{
		"error":          {ready: true, err: llm.ErrRateLimit},
		"not ready":      {ready: false},
		"nil completion": {ready: true, nilCompletion: true},
	}
	personas := persona.Builtin().All()
	personas = append(personas, persona.Persona{ID: "nameless"})

	for name, client := range clients {
		e := oracle.New(oracle.Config{Client: client})
		for _, p := range personas {
			r := e.Generate(context.Background(), oracle.Request{Persona: p, Message: "what now?"})
			if r.Text == "" || r.Source != oracle.SourceFallback || r.Err == nil {
				t.Errorf("%s/%s: reply = %+v", name, p.ID, r)
			}
			if r.Text != oracle.Fallback(p, "what now?") {
				t.Errorf("%s/%s: reply is not the fallback template", name, p.ID)
			}
		}
	}
}

func TestFallbackTemplatesDifferPerTemperament(t *testing.T) {
	seen := map[string]persona.Temperament{}
	for _, p := range persona.Builtin().All() {
		text := oracle.Fallback(p, "hi")
		if !strings.Contains(text, p.Name) {
			t.Errorf("%s fallback does not name the persona: %q", p.ID, text)
		}
		if prev, dup := seen[text]; dup {
			t.Errorf("%v and %v share a fallback", prev, p.Temperament)
		}
		seen[text] = p.Temperament
	}
}

// ---------------------------------------------------------------------------
// Council and ritual prompts
// ---------------------------------------------------------------------------

func TestCouncilLine_Fallback(t *testing.T) {
	suun := mustPersona(t, "suun")
	e := oracle.New(oracle.Config{Rand: &chance.Scripted{Ints: []int{1}}})

	r := e.CouncilLine(context.Background(), oracle.CouncilPrompt{Persona: suun, Topic: "Hope"})
	if want := oracle.CouncilFallbacks(suun)[1]; r.Text != want {
		t.Fatalf("text = %q, want %q", r.Text, want)
	}
	if r.Source != oracle.SourceFallback {
		t.Fatalf("source = %q", r.Source)
	}
	for _, p := range persona.Builtin().All() {
		if lines := oracle.CouncilFallbacks(p); len(lines) != 3 {
			t.Fatalf("%s has %d council lines", p.ID, len(lines))
		}
	}
}

func TestCouncilLine_RemotePromptUsesRecentContext(t *testing.T) {
	client := &fakeClient{ready: true, text: "Structure precedes freedom."}
	e := oracle.New(oracle.Config{Client: client})
	cat := persona.Builtin()
	elion, _ := cat.Get("elion")
	vaur, _ := cat.Get("vaur")

	var recent []oracle.Line
	for _, c := range []string{"one", "two", "three", "four", "five", "six", "seven"} {
		recent = append(recent, oracle.Line{Speaker: "Vaur", Content: "line " + c})
	}
	r := e.CouncilLine(context.Background(), oracle.CouncilPrompt{
		Persona: elion,
		Topic:   "The Nature of Free Will",
		Others:  []persona.Persona{vaur},
		Recent:  recent,
	})
	if r.Source != oracle.SourceRemote || r.Text != client.text {
		t.Fatalf("reply = %+v", r)
	}

	req := client.last(t)
	if req.User != "" || req.MaxTokens != 600 {
		t.Fatalf("request = %+v", req)
	}
	for _, want := range []string{"**Topic**: The Nature of Free Will", "**Other Participants**: Vaur", "Vaur: line three", "Vaur: line seven"} {
		if !strings.Contains(req.System, want) {
			t.Errorf("council prompt missing %q", want)
		}
	}
	for _, gone := range []string{"line one", "line two"} {
		if strings.Contains(req.System, gone) {
			t.Errorf("council prompt kept stale line %q", gone)
		}
	}
}

func TestNarrateRitual(t *testing.T) {
	nyxa := mustPersona(t, "nyxa")

	if _, ok := oracle.New(oracle.Config{}).NarrateRitual(context.Background(), nyxa, "Dream Walk", nil, ""); ok {
		t.Fatal("offline engine narrated a ritual")
	}

	client := &fakeClient{ready: true, text: "The veil parts for you."}
	text, ok := oracle.New(oracle.Config{Client: client}).NarrateRitual(context.Background(), nyxa, "Dream Walk", []string{"Moonstone", "Incense"}, "to see")
	if !ok || text != client.text {
		t.Fatalf("NarrateRitual = %q, %v", text, ok)
	}
	req := client.last(t)
	if req.MaxTokens != 800 || req.Temperature != 0.9 {
		t.Fatalf("request = %+v", req)
	}
	if !strings.Contains(req.System, `performed the ritual "Dream Walk" with offerings: Moonstone, Incense.`) {
		t.Fatalf("ritual prompt = %q", req.System)
	}

	failing := &fakeClient{ready: true, err: errors.New("boom")}
	if _, ok := oracle.New(oracle.Config{Client: failing}).NarrateRitual(context.Background(), nyxa, "Dream Walk", nil, ""); ok {
		t.Fatal("failed narration reported ok")
	}
}

// ---------------------------------------------------------------------------
// Heuristics
// ---------------------------------------------------------------------------

func TestMoodFor(t *testing.T) {
	tests := []struct {
		t    persona.Temperament
		msg  string
		want string
	}{
		{persona.Orderly, "Please GUIDE me", "Focused"},
		{persona.Orderly, "hello", "Contemplative"},
		{persona.Mystical, "a mystery", "Intrigued"},
		{persona.Mystical, "hello", "Mysterious"},
		{persona.Radiant, "give me hope", "Inspired"},
		{persona.Radiant, "hello", "Hopeful"},
		{persona.Corrupt, "the dark side", "Amused"},
		{persona.Corrupt, "hello", "Intrigued"},
		{persona.Glitched, "an error occurred", "Excited"},
		{persona.Glitched, "hello", "Chaotic"},
		{persona.Temperament(0), "help", "Neutral"},
	}
	for _, tt := range tests {
		if got := oracle.MoodFor(tt.t, tt.msg); got != tt.want {
			t.Errorf("MoodFor(%v, %q) = %q, want %q", tt.t, tt.msg, got, tt.want)
		}
	}
}

func TestRelationshipBand(t *testing.T) {
	tests := map[int]string{
		100:  "Very Friendly",
		60:   "Very Friendly",
		59:   "Friendly",
		20:   "Friendly",
		19:   "Neutral",
		0:    "Neutral",
		-19:  "Neutral",
		-20:  "Unfriendly",
		-59:  "Unfriendly",
		-60:  "Hostile",
		-100: "Hostile",
	}
	for score, want := range tests {
		if got := oracle.RelationshipBand(score); got != want {
			t.Errorf("RelationshipBand(%d) = %q, want %q", score, got, want)
		}
	}
}

func TestRandomNudge(t *testing.T) {
	src := &chance.Scripted{Floats: []float64{0.9, 0.1, 0.5}}
	policy := oracle.RandomNudge(src)
	var got []int
	for range 3 {
		got = append(got, policy.Delta(persona.Persona{}, "", oracle.Reply{}))
	}
	if got[0] != 1 || got[1] != -1 || got[2] != -1 {
		t.Fatalf("deltas = %v", got)
	}
}

// ---------------------------------------------------------------------------
// Summon
// ---------------------------------------------------------------------------

func TestSummon(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil, nil)
	v1r3 := mustPersona(t, "v1r3")

	for range 2 {
		greeting, err := f.engine.Summon(ctx, v1r3)
		if err != nil {
			t.Fatal(err)
		}
		if want := "Greetings, mortal. I am V1R3, glitch incarnate. What wisdom do you seek from me today?"; greeting != want {
			t.Fatalf("greeting = %q", greeting)
		}
	}
	m, err := f.memory.Get(ctx, "v1r3")
	if err != nil {
		t.Fatal(err)
	}
	if m.Sessions.TotalSessions != 2 {
		t.Fatalf("total sessions = %d", m.Sessions.TotalSessions)
	}
	if _, ok, _ := f.chat.Current(ctx, "v1r3"); ok {
		t.Fatal("summoning should not write a transcript")
	}
}
