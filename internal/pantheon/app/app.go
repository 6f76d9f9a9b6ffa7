// Package app wires the pantheon services together and serves them over HTTP.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/bdobrica/pantheon/common/chance"
	"github.com/bdobrica/pantheon/common/retry"
	"github.com/bdobrica/pantheon/internal/pantheon/chat"
	"github.com/bdobrica/pantheon/internal/pantheon/council"
	"github.com/bdobrica/pantheon/internal/pantheon/kv"
	"github.com/bdobrica/pantheon/internal/pantheon/llm"
	"github.com/bdobrica/pantheon/internal/pantheon/memory"
	"github.com/bdobrica/pantheon/internal/pantheon/metrics"
	"github.com/bdobrica/pantheon/internal/pantheon/oracle"
	"github.com/bdobrica/pantheon/internal/pantheon/persona"
	"github.com/bdobrica/pantheon/internal/pantheon/ritual"
	"github.com/bdobrica/pantheon/internal/pantheon/store"
	"github.com/bdobrica/pantheon/internal/pantheon/voice"
)

// App is the assembled pantheon: storage, the persona services and the HTTP
// API.
type App struct {
	config   Config
	store    *store.Store
	personas *persona.Catalog
	metrics  *metrics.Recorder
	client   llm.Client
	chat     *chat.Store
	memory   *memory.Service
	engine   *oracle.Engine
	council  *council.Scheduler
	chamber  *ritual.Chamber
	matcher  *voice.Matcher
	voice    *voice.Dispatcher
	server   *Server

	// summoned is the persona currently holding an audience, the target of
	// bare voice commands.
	mu       sync.Mutex
	summoned string

	closeOnce sync.Once
}

// Options replaces collaborators, mostly for tests.
type Options struct {
	Client   llm.Client
	Rand     chance.Source
	Clock    council.Clock
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

// New opens the database and builds every service. Nothing touches the
// network until Run.
func New(config Config, opts Options) (*App, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if config.MaxImportBytes <= 0 {
		config.MaxImportBytes = DefaultMaxImportBytes
	}

	personas, err := persona.Load(config.CatalogPath)
	if err != nil {
		return nil, err
	}
	rituals, err := ritual.Load(config.RitualCatalogPath)
	if err != nil {
		return nil, err
	}

	rec, err := metrics.New(opts.Registry)
	if err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}

	log.Info("opening database", "path", config.DatabasePath)
	db, err := store.New(config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	policy := retry.Default
	policy.OnRetry = func(attempt int, err error) {
		rec.RecordStorageRetry()
		log.Debug("storage busy, retrying", "attempt", attempt, "err", err)
	}
	backend := kv.NewSQLite(db, kv.SQLiteConfig{Retry: policy})

	client := opts.Client
	if client == nil {
		lc := config.LLM
		lc.Logger = log
		client = llm.NewOpenAI(lc)
	}
	rnd := opts.Rand
	if rnd == nil {
		rnd = chance.Default()
	}
	var speaker voice.Speaker
	if config.Speak {
		speaker = voice.LogSpeaker{Logger: log}
	}

	chats := chat.New(backend, chat.Config{
		MaxSessionsPerPersona: config.MaxSessionsPerPersona,
		Logger:                log,
		OnEvict:               rec.RecordEvictions,
	})
	mem := memory.New(backend, memory.Config{MaxEntries: config.MaxMemoryEntries, Logger: log})
	engine := oracle.New(oracle.Config{
		Client:       client,
		Memory:       mem,
		Chat:         chats,
		Speaker:      speaker,
		Metrics:      rec,
		Rand:         rnd,
		Logger:       log,
		HistoryLimit: config.HistoryLimit,
	})

	a := &App{
		config:   config,
		store:    db,
		personas: personas,
		metrics:  rec,
		client:   client,
		chat:     chats,
		memory:   mem,
		engine:   engine,
		council: council.New(council.Config{
			Lines:   engine,
			Memory:  mem,
			Speaker: speaker,
			Metrics: rec,
			Clock:   opts.Clock,
			Rand:    rnd,
			Logger:  log,
		}),
		chamber: ritual.NewChamber(ritual.Config{
			Catalog:  rituals,
			Personas: personas,
			Memory:   mem,
			Narrator: engine,
			Speaker:  speaker,
			Metrics:  rec,
			Rand:     rnd,
			Logger:   log,
		}),
		matcher: voice.NewMatcher(voice.DefaultTriggers(personas)),
	}
	a.voice = voice.NewDispatcher(a, config.VoiceMinConfidence, log)
	a.server = NewServer(config.HTTPAddr, a, log)
	return a, nil
}

// Run awakens every persona, probes the completion API and serves HTTP until
// ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.memory.InitializeAll(ctx, a.personas); err != nil {
			return fmt.Errorf("app: initialize memories: %w", err)
		}
		slog.Info("persona memories ready", "personas", a.personas.Len())
		return nil
	})
	g.Go(func() error {
		a.ConnectLLM(ctx)
		return nil
	})
	if a.config.HTTPAddr != "" {
		g.Go(func() error { return a.server.Serve(ctx) })
	}

	slog.Info("pantheon is running", "http_addr", a.config.HTTPAddr)
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ConnectLLM probes the completion API. A failed probe leaves the engine on
// its fallback path.
func (a *App) ConnectLLM(ctx context.Context) bool {
	return a.client.Initialize(ctx)
}

// Close stops the council timers and closes the database. It is safe to call
// more than once.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.council.Close()
		slog.Info("closing database")
		err = a.store.Close()
	})
	return err
}

func (a *App) Personas() *persona.Catalog   { return a.personas }
func (a *App) Engine() *oracle.Engine       { return a.engine }
func (a *App) Chat() *chat.Store            { return a.chat }
func (a *App) Memory() *memory.Service      { return a.memory }
func (a *App) Council() *council.Scheduler  { return a.council }
func (a *App) Chamber() *ritual.Chamber     { return a.chamber }
func (a *App) Metrics() *metrics.Recorder   { return a.metrics }
func (a *App) Voice() *voice.Dispatcher     { return a.voice }
func (a *App) VoiceMatcher() *voice.Matcher { return a.matcher }

// Handler returns the HTTP API without starting a listener.
func (a *App) Handler() http.Handler { return a.server }

// Summoned returns the persona holding the current audience, if any.
func (a *App) Summoned() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summoned
}
