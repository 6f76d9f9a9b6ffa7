package app

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bdobrica/pantheon/internal/pantheon/chat"
	"github.com/bdobrica/pantheon/internal/pantheon/council"
	"github.com/bdobrica/pantheon/internal/pantheon/memory"
	"github.com/bdobrica/pantheon/internal/pantheon/oracle"
	"github.com/bdobrica/pantheon/internal/pantheon/persona"
	"github.com/bdobrica/pantheon/internal/pantheon/ritual"
	"github.com/bdobrica/pantheon/internal/pantheon/voice"
)

var (
	errBadRequest   = errors.New("bad request")
	errTooLarge     = errors.New("request body too large")
	errUnknownTopic = errors.New("unknown council topic")
)

func (s *Server) routes() {
	m := s.mux
	m.HandleFunc("GET /health", s.handleHealth)
	m.HandleFunc("GET /status", s.handleStatus)
	m.Handle("GET /metrics", s.app.metrics.Handler())

	m.HandleFunc("GET /personas", s.handlePersonas)
	m.HandleFunc("GET /personas/{id}", s.handlePersona)
	m.HandleFunc("POST /personas/{id}/summon", s.handleSummon)
	m.HandleFunc("POST /personas/{id}/chat", s.handleChat)
	m.HandleFunc("GET /personas/{id}/sessions", s.handleSessions)
	m.HandleFunc("POST /personas/{id}/sessions", s.handleNewSession)
	m.HandleFunc("DELETE /personas/{id}/sessions", s.handleClearSessions)
	m.HandleFunc("GET /personas/{id}/messages", s.handleSearchMessages)
	m.HandleFunc("GET /personas/{id}/memory", s.handleMemory)
	m.HandleFunc("DELETE /personas/{id}/memory", s.handleClearMemory)
	m.HandleFunc("GET /personas/{id}/memory/relevant", s.handleRelevantMemories)
	m.HandleFunc("GET /personas/{id}/memory/summary", s.handleMemorySummary)
	m.HandleFunc("GET /personas/{id}/rituals", s.handleRitualRecommendations)

	m.HandleFunc("GET /chat/stats", s.handleChatStats)
	m.HandleFunc("GET /chat/export", s.handleChatExport)
	m.HandleFunc("POST /chat/import", s.handleChatImport)
	m.HandleFunc("DELETE /chat", s.handleChatClearAll)

	m.HandleFunc("GET /council", s.handleCouncil)
	m.HandleFunc("POST /council", s.handleCouncilStart)
	m.HandleFunc("GET /council/topics", s.handleCouncilTopics)
	m.HandleFunc("POST /council/discussion", s.handleCouncilDiscuss)
	m.HandleFunc("POST /council/pause", s.handleCouncilPause)
	m.HandleFunc("POST /council/resume", s.handleCouncilResume)
	m.HandleFunc("POST /council/end", s.handleCouncilEnd)
	m.HandleFunc("POST /council/messages", s.handleCouncilMessage)

	m.HandleFunc("GET /rituals", s.handleRituals)
	m.HandleFunc("GET /rituals/offerings", s.handleOfferings)
	m.HandleFunc("GET /rituals/log", s.handleRitualLog)
	m.HandleFunc("GET /rituals/active", s.handleActiveRituals)
	m.HandleFunc("POST /rituals/active", s.handleStartRitual)
	m.HandleFunc("GET /rituals/active/{id}", s.handleActiveRitual)
	m.HandleFunc("PATCH /rituals/active/{id}", s.handleRitualProgress)
	m.HandleFunc("POST /rituals/active/{id}/complete", s.handleCompleteRitual)

	m.HandleFunc("POST /voice", s.handleVoice)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, persona.ErrUnknownPersona),
		errors.Is(err, memory.ErrNotFound),
		errors.Is(err, council.ErrNoSession),
		errors.Is(err, ritual.ErrUnknownRitual),
		errors.Is(err, ritual.ErrUnknownOffering),
		errors.Is(err, ritual.ErrNotFound),
		errors.Is(err, errUnknownTopic):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, oracle.ErrEmptyMessage),
		errors.Is(err, council.ErrTooFewParticipants),
		errors.Is(err, council.ErrTooManyParticipants),
		errors.Is(err, council.ErrDuplicateParticipant),
		errors.Is(err, council.ErrMissingTopic),
		errors.Is(err, council.ErrUnknownParticipant),
		errors.Is(err, council.ErrEmptyMessage),
		errors.Is(err, ritual.ErrNoOfferings),
		errors.Is(err, chat.ErrInvalidImport),
		errors.Is(err, chat.ErrInvalidRole):
		return http.StatusBadRequest
	case errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, council.ErrSessionActive),
		errors.Is(err, council.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, voice.ErrIgnored),
		errors.Is(err, ErrNoAudience):
		return http.StatusUnprocessableEntity
	case errors.Is(err, council.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) persona(w http.ResponseWriter, r *http.Request) (persona.Persona, bool) {
	p, err := s.app.personas.Find(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return persona.Persona{}, false
	}
	return p, true
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, name)
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Personas and chat
// ---------------------------------------------------------------------------

// handlePersonas lists the catalog, optionally filtered by ?temperament=.
func (s *Server) handlePersonas(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query().Get("temperament")
	if v == "" {
		writeJSON(w, http.StatusOK, s.app.personas.All())
		return
	}
	t, err := persona.ParseTemperament(v)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	out := s.app.personas.ByTemperament(t)
	if out == nil {
		out = []persona.Persona{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePersona(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.persona(w, r); ok {
		writeJSON(w, http.StatusOK, p)
	}
}

type summonResponse struct {
	PersonaID string `json:"personaId"`
	Greeting  string `json:"greeting"`
}

func (s *Server) handleSummon(w http.ResponseWriter, r *http.Request) {
	greeting, err := s.app.summon(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summonResponse{PersonaID: s.app.Summoned(), Greeting: greeting})
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	*oracle.Turn
	// Warnings lists storage failures; the reply was still delivered.
	Warnings []string `json:"warnings,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	p, ok := s.persona(w, r)
	if !ok {
		return
	}
	var req chatRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	turn, err := s.app.engine.Converse(r.Context(), p, req.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := chatResponse{Turn: turn}
	for _, e := range turn.PersistErrors {
		resp.Warnings = append(resp.Warnings, e.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	p, ok := s.persona(w, r)
	if !ok {
		return
	}
	sessions, err := s.app.chat.Sessions(r.Context(), p.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	p, ok := s.persona(w, r)
	if !ok {
		return
	}
	sess, err := s.app.chat.StartNew(r.Context(), p.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleClearSessions(w http.ResponseWriter, r *http.Request) {
	p, ok := s.persona(w, r)
	if !ok {
		return
	}
	if err := s.app.chat.Clear(r.Context(), p.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearchMessages(w http.ResponseWriter, r *http.Request) {
	p, ok := s.persona(w, r)
	if !ok {
		return
	}
	msgs, err := s.app.chat.Search(r.Context(), p.ID, r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleChatStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.app.chat.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleChatExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.app.chat.Export(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="pantheon-chats.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleChatImport(w http.ResponseWriter, r *http.Request) {
	limit := s.app.config.MaxImportBytes
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = fmt.Errorf("%w: chat imports are limited to %d bytes", errTooLarge, limit)
		} else {
			err = fmt.Errorf("%w: %v", errBadRequest, err)
		}
		s.writeError(w, r, err)
		return
	}
	if err := s.app.chat.Import(r.Context(), data); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChatClearAll(w http.ResponseWriter, r *http.Request) {
	if err := s.app.chat.ClearAll(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Memory
// ---------------------------------------------------------------------------

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	p, ok := s.persona(w, r)
	if !ok {
		return
	}
	m, err := s.app.memory.Get(r.Context(), p.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleClearMemory(w http.ResponseWriter, r *http.Request) {
	p, ok := s.persona(w, r)
	if !ok {
		return
	}
	if err := s.app.memory.Clear(r.Context(), p.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRelevantMemories(w http.ResponseWriter, r *http.Request) {
	p, ok := s.persona(w, r)
	if !ok {
		return
	}
	limit, err := intParam(r, "limit", memory.DefaultRecallLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, err := s.app.memory.QueryRelevant(r.Context(), p.ID, r.URL.Query().Get("q"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type summaryResponse struct {
	PersonaID string `json:"personaId"`
	Summary   string `json:"summary"`
}

func (s *Server) handleMemorySummary(w http.ResponseWriter, r *http.Request) {
	p, ok := s.persona(w, r)
	if !ok {
		return
	}
	sum, err := s.app.memory.Summary(r.Context(), p.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{PersonaID: p.ID, Summary: sum})
}

// ---------------------------------------------------------------------------
// Council
// ---------------------------------------------------------------------------

type councilRequest struct {
	Participants []string `json:"participants"`
	TopicID      string   `json:"topicId"`
	Topic        string   `json:"topic"`
	// Durations are in seconds; zero keeps the configured default.
	SessionSeconds int `json:"sessionSeconds"`
	TurnSeconds    int `json:"turnSeconds"`
	// Discuss starts the turn loop right away.
	Discuss bool `json:"discuss"`
}

func (s *Server) handleCouncil(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.app.council.Session()
	if !ok {
		s.writeError(w, r, council.ErrNoSession)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleCouncilTopics(w http.ResponseWriter, r *http.Request) {
	refs := r.URL.Query().Get("participants")
	if refs == "" {
		writeJSON(w, http.StatusOK, s.app.council.Topics())
		return
	}
	participants, err := s.app.personas.Resolve(strings.Split(refs, ","))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	topics := s.app.council.TopicsFor(participants)
	if topics == nil {
		topics = []council.Topic{}
	}
	writeJSON(w, http.StatusOK, topics)
}

func (s *Server) handleCouncilStart(w http.ResponseWriter, r *http.Request) {
	var req councilRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	participants, err := s.app.personas.Resolve(req.Participants)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	topic := council.CustomTopic(req.Topic)
	if req.TopicID != "" {
		t, ok := s.app.council.Topic(req.TopicID)
		if !ok {
			s.writeError(w, r, fmt.Errorf("%w: %q", errUnknownTopic, req.TopicID))
			return
		}
		topic = t
	}
	settings := s.app.config.Council
	if req.SessionSeconds > 0 {
		settings.SessionDuration = time.Duration(req.SessionSeconds) * time.Second
	}
	if req.TurnSeconds > 0 {
		settings.TurnLength = time.Duration(req.TurnSeconds) * time.Second
	}

	ctx := r.Context()
	if _, err := s.app.council.Start(ctx, participants, topic, settings); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Discuss {
		// The first turn runs on the request; later turns use the
		// scheduler's own context.
		if err := s.app.council.StartDiscussion(ctx); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	sess, _ := s.app.council.Session()
	writeJSON(w, http.StatusCreated, sess)
}

// councilAction runs op and replies with the resulting session.
func (s *Server) councilAction(op func(r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := op(r); err != nil {
			s.writeError(w, r, err)
			return
		}
		sess, _ := s.app.council.Session()
		writeJSON(w, http.StatusOK, sess)
	}
}

func (s *Server) handleCouncilDiscuss(w http.ResponseWriter, r *http.Request) {
	s.councilAction(func(r *http.Request) error { return s.app.council.StartDiscussion(r.Context()) })(w, r)
}

func (s *Server) handleCouncilPause(w http.ResponseWriter, r *http.Request) {
	s.councilAction(func(*http.Request) error { return s.app.council.Pause() })(w, r)
}

func (s *Server) handleCouncilResume(w http.ResponseWriter, r *http.Request) {
	s.councilAction(func(r *http.Request) error { return s.app.council.Resume(r.Context()) })(w, r)
}

func (s *Server) handleCouncilEnd(w http.ResponseWriter, r *http.Request) {
	s.councilAction(func(*http.Request) error { return s.app.council.End() })(w, r)
}

type councilMessageRequest struct {
	PersonaID string `json:"personaId"`
	Content   string `json:"content"`
}

func (s *Server) handleCouncilMessage(w http.ResponseWriter, r *http.Request) {
	var req councilMessageRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	msg, err := s.app.council.AddManualMessage(req.PersonaID, req.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// ---------------------------------------------------------------------------
// Rituals
// ---------------------------------------------------------------------------

func (s *Server) handleRituals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.chamber.Rituals())
}

// handleOfferings lists offerings, filtered by ?type=, ?rarity= or
// ?ritualType= (the offerings suited to that ritual type).
func (s *Server) handleOfferings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cat := s.app.chamber.Catalog()
	var out []ritual.Offering
	switch {
	case q.Get("ritualType") != "":
		out = cat.OfferingRecommendations(ritual.Type(q.Get("ritualType")))
	case q.Get("type") != "":
		out = cat.OfferingsOfType(ritual.OfferingType(q.Get("type")))
	case q.Get("rarity") != "":
		out = cat.OfferingsOfRarity(ritual.Rarity(q.Get("rarity")))
	default:
		out = cat.Offerings()
	}
	if out == nil {
		out = []ritual.Offering{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRitualRecommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := s.app.chamber.Recommendations(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if recs == nil {
		recs = []ritual.Ritual{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleRitualLog(w http.ResponseWriter, r *http.Request) {
	log, err := s.app.memory.Rituals(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, log)
}

func (s *Server) handleActiveRituals(w http.ResponseWriter, r *http.Request) {
	active := s.app.chamber.Active(r.URL.Query().Get("persona"))
	if active == nil {
		active = []ritual.ActiveRitual{}
	}
	writeJSON(w, http.StatusOK, active)
}

func (s *Server) handleActiveRitual(w http.ResponseWriter, r *http.Request) {
	a, err := s.app.chamber.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type startRitualRequest struct {
	RitualID  string   `json:"ritualId"`
	PersonaID string   `json:"personaId"`
	Offerings []string `json:"offerings"`
}

func (s *Server) handleStartRitual(w http.ResponseWriter, r *http.Request) {
	var req startRitualRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.app.chamber.Start(r.Context(), req.RitualID, req.PersonaID, req.Offerings)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

type progressRequest struct {
	Progress int `json:"progress"`
}

type progressResponse struct {
	Ritual ritual.ActiveRitual `json:"ritual"`
	Result *ritualResult       `json:"result,omitempty"`
}

type ritualResult struct {
	ritual.Result
	Warnings []string `json:"warnings,omitempty"`
}

func newRitualResult(res ritual.Result) *ritualResult {
	out := &ritualResult{Result: res}
	for _, e := range res.PersistErrors {
		out.Warnings = append(out.Warnings, e.Error())
	}
	return out
}

func (s *Server) handleRitualProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, res, err := s.app.chamber.UpdateProgress(r.Context(), r.PathValue("id"), req.Progress)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := progressResponse{Ritual: a}
	if res != nil {
		resp.Result = newRitualResult(*res)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCompleteRitual(w http.ResponseWriter, r *http.Request) {
	res, err := s.app.chamber.Complete(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRitualResult(res))
}

// ---------------------------------------------------------------------------
// Voice
// ---------------------------------------------------------------------------

type voiceRequest struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

type voiceResponse struct {
	Command  voice.Command `json:"command"`
	Summoned string        `json:"summoned,omitempty"`
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	var req voiceRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	cmd, err := s.app.HandleTranscript(r.Context(), req.Transcript, req.Confidence)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, voiceResponse{Command: cmd, Summoned: s.app.Summoned()})
}
