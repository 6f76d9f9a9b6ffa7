// Package oracle voices personas. Every reply is produced either by the
// remote model or, when that path is unavailable or fails, by a
// temperament-keyed offline template. Callers always get text back.
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bdobrica/pantheon/common/chance"
	"github.com/bdobrica/pantheon/common/trace"
	"github.com/bdobrica/pantheon/internal/pantheon/chat"
	"github.com/bdobrica/pantheon/internal/pantheon/llm"
	"github.com/bdobrica/pantheon/internal/pantheon/memory"
	"github.com/bdobrica/pantheon/internal/pantheon/metrics"
	"github.com/bdobrica/pantheon/internal/pantheon/persona"
	"github.com/bdobrica/pantheon/internal/pantheon/voice"
)

// Source tells which path produced a reply.
type Source string

const (
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
)

const (
	// DefaultHistoryLimit caps the transcript lines embedded in a chat prompt.
	DefaultHistoryLimit = 20

	// CouncilContextLines is how much of the debate a council prompt sees.
	CouncilContextLines = 5

	chatMaxTokens     = 1000
	chatTemperature   = 0.8
	councilMaxTokens  = 600
	councilTemp       = 0.8
	ritualMaxTokens   = 800
	ritualTemperature = 0.9
)

// Config wires an Engine. Client nil means every reply is offline; Memory,
// Chat, Speaker and Metrics are optional.
type Config struct {
	Client  llm.Client
	Memory  *memory.Service
	Chat    *chat.Store
	Speaker voice.Speaker
	Metrics *metrics.Recorder

	// Rand drives fallback line choice and the default relationship policy.
	Rand chance.Source
	// Relationship defaults to RandomNudge(Rand).
	Relationship RelationshipPolicy

	Logger *slog.Logger
	Now    func() time.Time

	HistoryLimit int
	// MaxTokens and Temperature bound chat completions.
	MaxTokens   int
	Temperature float32
}

// Request is the input to Generate.
type Request struct {
	Persona persona.Persona
	Message string
	History []chat.Message
	// Memory is the persona snapshot the prompt describes. Nil uses the
	// freshly seeded personality.
	Memory *memory.PersonaMemory
}

// Reply is a generated line. Err records why the remote path was skipped or
// failed; it is informational only.
type Reply struct {
	Text   string    `json:"text"`
	Source Source    `json:"source"`
	Model  string    `json:"model,omitempty"`
	Usage  llm.Usage `json:"usage"`
	Err    error     `json:"-"`
}

// Engine generates persona replies.
type Engine struct {
	client       llm.Client
	memory       *memory.Service
	chat         *chat.Store
	speaker      voice.Speaker
	metrics      *metrics.Recorder
	rand         chance.Source
	relationship RelationshipPolicy
	log          *slog.Logger
	now          func() time.Time

	historyLimit int
	maxTokens    int
	temperature  float32
}

// New returns an Engine with defaults applied.
func New(cfg Config) *Engine {
	if cfg.Client == nil {
		cfg.Client = llm.Offline{}
	}
	if cfg.Rand == nil {
		cfg.Rand = chance.Default()
	}
	if cfg.Relationship == nil {
		cfg.Relationship = RandomNudge(cfg.Rand)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = chatMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = chatTemperature
	}
	return &Engine{
		client:       cfg.Client,
		memory:       cfg.Memory,
		chat:         cfg.Chat,
		speaker:      cfg.Speaker,
		metrics:      cfg.Metrics,
		rand:         cfg.Rand,
		relationship: cfg.Relationship,
		log:          cfg.Logger,
		now:          cfg.Now,
		historyLimit: cfg.HistoryLimit,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
	}
}

// Ready reports whether replies currently go to the remote model.
func (e *Engine) Ready() bool { return e.client.Ready() }

// Generate produces a reply to req.Message. It never fails: any problem on
// the remote path yields the offline template instead.
func (e *Engine) Generate(ctx context.Context, req Request) Reply {
	return e.complete(ctx, req.Persona, llm.CompletionRequest{
		System:      SystemPrompt(req.Persona, req.Memory, req.History),
		User:        req.Message,
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
		BudgetKey:   req.Persona.ID,
	}, func() string { return Fallback(req.Persona, req.Message) })
}

// Line is one entry of a council transcript as a prompt sees it.
type Line struct {
	Speaker string
	Content string
}

// CouncilPrompt is the context for one council turn.
type CouncilPrompt struct {
	Persona persona.Persona
	Topic   string
	Others  []persona.Persona
	// Recent is the transcript so far; only the last CouncilContextLines are
	// used.
	Recent []Line
}

// CouncilLine produces one council contribution. Like Generate it never
// fails.
func (e *Engine) CouncilLine(ctx context.Context, cp CouncilPrompt) Reply {
	return e.complete(ctx, cp.Persona, llm.CompletionRequest{
		System:      councilPrompt(cp),
		MaxTokens:   councilMaxTokens,
		Temperature: councilTemp,
		BudgetKey:   cp.Persona.ID,
	}, func() string { return councilFallback(e.rand, cp.Persona) })
}

// NarrateRitual asks the remote model to describe a ritual outcome. It
// reports false when the model is unavailable or fails, leaving the caller
// to use its own line.
func (e *Engine) NarrateRitual(ctx context.Context, p persona.Persona, ritualName string, offerings []string, intent string) (string, bool) {
	if !e.client.Ready() {
		return "", false
	}
	c, err := e.client.Complete(ctx, llm.CompletionRequest{
		System:      ritualPrompt(p, ritualName, offerings, intent),
		MaxTokens:   ritualMaxTokens,
		Temperature: ritualTemperature,
		BudgetKey:   p.ID,
	})
	if err != nil {
		e.log.Warn("oracle: ritual narration failed", "persona_id", p.ID, "ritual", ritualName,
			"trace_id", trace.FromContext(ctx), "err", err)
		return "", false
	}
	return c.Text, true
}

func (e *Engine) complete(ctx context.Context, p persona.Persona, req llm.CompletionRequest, fallback func() string) (reply Reply) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("oracle: reply generation panicked", "persona_id", p.ID, "panic", r)
			reply = Reply{Text: fallback(), Source: SourceFallback, Err: fmt.Errorf("oracle: panic: %v", r)}
		}
	}()

	if !e.client.Ready() {
		return Reply{Text: fallback(), Source: SourceFallback, Err: llm.ErrNotReady}
	}
	c, err := e.client.Complete(ctx, req)
	if err != nil {
		e.log.Warn("oracle: remote reply failed, using fallback", "persona_id", p.ID,
			"trace_id", trace.FromContext(ctx), "err", err)
		return Reply{Text: fallback(), Source: SourceFallback, Err: err}
	}
	return Reply{Text: c.Text, Source: SourceRemote, Model: c.Model, Usage: c.Usage}
}
