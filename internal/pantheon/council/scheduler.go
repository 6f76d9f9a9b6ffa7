package council

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/bdobrica/pantheon/common/chance"
	"github.com/bdobrica/pantheon/internal/pantheon/memory"
	"github.com/bdobrica/pantheon/internal/pantheon/metrics"
	"github.com/bdobrica/pantheon/internal/pantheon/oracle"
	"github.com/bdobrica/pantheon/internal/pantheon/persona"
	"github.com/bdobrica/pantheon/internal/pantheon/voice"
)

// LineGenerator voices one council turn. *oracle.Engine implements it.
type LineGenerator interface {
	CouncilLine(ctx context.Context, cp oracle.CouncilPrompt) oracle.Reply
}

var _ LineGenerator = (*oracle.Engine)(nil)

// Config wires a Scheduler. Lines is required.
type Config struct {
	Lines   LineGenerator
	Memory  *memory.Service
	Speaker voice.Speaker
	Metrics *metrics.Recorder
	Clock   Clock
	Rand    chance.Source
	Logger  *slog.Logger
	// Topics replaces the built-in topic list.
	Topics []Topic
}

// Scheduler owns at most one council session and the two timers driving
// it: the per-turn timer and the session-duration timer. It is safe for
// concurrent use; the lock is never held across a generation call.
type Scheduler struct {
	lines   LineGenerator
	memory  *memory.Service
	speaker voice.Speaker
	metrics *metrics.Recorder
	clock   Clock
	rand    chance.Source
	log     *slog.Logger
	topics  []Topic

	// ctx is handed to timer-driven turns; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	session   *Session
	turnTimer Timer
	endTimer  Timer
	// turnSeq identifies the turn allowed to re-arm the loop. Pause, Resume,
	// End and Close bump it so stale turns stop quietly.
	turnSeq uint64
	// inFlight is the turnSeq owning the turn currently being generated, or
	// 0. At most one turn per session is in flight.
	inFlight uint64
	closed   bool
	subs     map[int]func(Message)
	nextSub  int
}

// New returns an idle Scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.Rand == nil {
		cfg.Rand = chance.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Topics == nil {
		cfg.Topics = builtinTopics()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		lines:   cfg.Lines,
		memory:  cfg.Memory,
		speaker: cfg.Speaker,
		metrics: cfg.Metrics,
		clock:   cfg.Clock,
		rand:    cfg.Rand,
		log:     cfg.Logger,
		topics:  cfg.Topics,
		ctx:     ctx,
		cancel:  cancel,
		subs:    make(map[int]func(Message)),
	}
}

// Start opens a session in the preparing state. Nothing is changed when the
// request is invalid or another session has not concluded yet.
func (s *Scheduler) Start(ctx context.Context, participants []persona.Persona, topic Topic, settings Settings) (Session, error) {
	settings = settings.withDefaults()
	if err := validate(participants, topic, settings); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Session{}, ErrClosed
	}
	if s.session != nil && s.session.Status != StatusConcluded {
		s.mu.Unlock()
		return Session{}, ErrSessionActive
	}

	sess := &Session{
		ID:           "council-" + uuid.NewString(),
		Participants: append([]persona.Persona(nil), participants...),
		Topic:        topic.Title,
		TopicID:      topic.ID,
		Messages:     []Message{},
		Status:       StatusPreparing,
		StartTime:    s.clock.Now(),
		Settings:     settings,
	}
	s.session = sess
	s.turnSeq++
	s.inFlight = 0

	about := topic.Description
	if about == "" {
		about = topic.Title + "."
	}
	opening := s.heraldLocked(fmt.Sprintf("The Pantheon Council is now in session. Topic: %q. %d deities have gathered to discuss %s",
		topic.Title, len(participants), about))
	snap := sess.clone()
	s.mu.Unlock()

	s.log.Info("council: session opened", "session_id", snap.ID, "topic", snap.Topic, "participants", len(participants))
	s.publish(opening)
	s.seedMemories(ctx, snap)
	return snap, nil
}

// seedMemories records participation in every participant's memory.
// Failures are logged only.
func (s *Scheduler) seedMemories(ctx context.Context, sess Session) {
	if s.memory == nil {
		return
	}
	ids := make([]string, 0, len(sess.Participants))
	for _, p := range sess.Participants {
		ids = append(ids, p.ID)
	}
	tag := strings.Join(strings.Fields(strings.ToLower(sess.Topic)), "-")
	for _, p := range sess.Participants {
		if _, err := s.memory.Initialize(ctx, p); err != nil {
			s.log.Warn("council: memory init failed", "persona_id", p.ID, "err", err)
			continue
		}
		_, err := s.memory.AddEntry(ctx, p.ID, memory.NewEntry{
			Kind:       memory.KindInteraction,
			Content:    fmt.Sprintf("Participating in Pantheon Council session %q with %d other deities", sess.Topic, len(sess.Participants)-1),
			Importance: 8,
			Tags:       []string{"council", "pantheon", "debate", tag},
			Metadata: map[string]any{
				"sessionId":    sess.ID,
				"participants": ids,
				"topic":        sess.Topic,
			},
		})
		if err != nil {
			s.log.Warn("council: participation not recorded", "persona_id", p.ID, "err", err)
		}
	}
}

// StartDiscussion moves a preparing session to active, arms the session
// timer and runs the first turn before returning.
func (s *Scheduler) StartDiscussion(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	sess := s.session
	if sess == nil {
		s.mu.Unlock()
		return ErrNoSession
	}
	if sess.Status != StatusPreparing {
		s.mu.Unlock()
		return fmt.Errorf("%w: discussion cannot start while %s", ErrInvalidState, sess.Status)
	}
	sess.Status = StatusActive
	id := sess.ID
	s.endTimer = s.clock.AfterFunc(sess.Settings.SessionDuration, func() { s.endSession(id) })
	s.turnSeq++
	seq := s.turnSeq
	s.mu.Unlock()

	s.metrics.SetCouncilActive(true)
	s.runTurn(ctx, seq)
	return nil
}

// Pause stops the turn loop. The transcript is kept; a turn already being
// generated is still appended when it arrives.
func (s *Scheduler) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return ErrNoSession
	}
	if s.session.Status != StatusActive {
		return fmt.Errorf("%w: cannot pause while %s", ErrInvalidState, s.session.Status)
	}
	stop(s.turnTimer)
	s.turnTimer = nil
	s.turnSeq++
	s.session.Status = StatusPaused
	s.metrics.SetCouncilActive(false)
	return nil
}

// Resume reactivates a paused session and runs the next turn right away.
// When a turn is still being generated, that turn arms the next one once it
// lands instead.
func (s *Scheduler) Resume(ctx context.Context) error {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return ErrNoSession
	}
	if s.session.Status != StatusPaused {
		status := s.session.Status
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot resume while %s", ErrInvalidState, status)
	}
	s.session.Status = StatusActive
	s.turnSeq++
	seq := s.turnSeq
	if s.inFlight != 0 {
		s.inFlight = seq
		s.mu.Unlock()
		s.metrics.SetCouncilActive(true)
		return nil
	}
	s.mu.Unlock()

	s.metrics.SetCouncilActive(true)
	s.runTurn(ctx, seq)
	return nil
}

// End concludes the session. Ending a concluded session is a no-op.
func (s *Scheduler) End() error {
	return s.endSession("")
}

// endSession concludes the current session, or only session id when id is
// set so a stale duration timer cannot end a newer council.
func (s *Scheduler) endSession(id string) error {
	s.mu.Lock()
	sess := s.session
	if sess == nil || (id != "" && sess.ID != id) {
		s.mu.Unlock()
		if id != "" {
			return nil
		}
		return ErrNoSession
	}
	if sess.Status == StatusConcluded {
		s.mu.Unlock()
		return nil
	}
	s.stopTimersLocked()
	s.turnSeq++
	s.inFlight = 0

	now := s.clock.Now()
	sess.Status = StatusConcluded
	sess.EndTime = &now

	insights := 0
	for _, m := range sess.Messages {
		if !m.Herald() {
			insights++
		}
	}
	closing := s.heraldLocked(fmt.Sprintf("The Pantheon Council session %q has concluded. %d divine insights were shared.", sess.Topic, insights))
	s.mu.Unlock()

	s.metrics.SetCouncilActive(false)
	s.log.Info("council: session concluded", "session_id", sess.ID, "insights", insights)
	s.publish(closing)
	return nil
}

// Close stops both timers and cancels turns in flight. The scheduler
// refuses new sessions afterwards. Close is idempotent.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.stopTimersLocked()
	s.turnSeq++
	s.mu.Unlock()
	s.cancel()
	s.metrics.SetCouncilActive(false)
}

// Session returns a copy of the current or most recent session.
func (s *Scheduler) Session() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return Session{}, false
	}
	return s.session.clone(), true
}

// AddManualMessage appends a line spoken on a participant's behalf.
func (s *Scheduler) AddManualMessage(personaID, content string) (Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, ErrEmptyMessage
	}
	s.mu.Lock()
	sess := s.session
	if sess == nil || sess.Status == StatusConcluded {
		s.mu.Unlock()
		return Message{}, ErrNoSession
	}
	p, ok := sess.participant(personaID)
	if !ok {
		s.mu.Unlock()
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownParticipant, personaID)
	}
	msg := s.appendLocked(p, content, "")
	s.mu.Unlock()

	s.deliver(p, msg)
	return msg, nil
}

// Subscribe registers fn for every message appended from now on. fn runs on
// the goroutine that appended the message and must not block. The returned
// func unregisters it.
func (s *Scheduler) Subscribe(fn func(Message)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// runTurn lets one persona speak. seq must still be current and no other
// turn in flight when the turn starts; when the reply arrives the message is
// kept unless the session was replaced or concluded, and the next turn is
// armed only if the turn still owns the loop.
func (s *Scheduler) runTurn(ctx context.Context, seq uint64) {
	s.mu.Lock()
	sess := s.session
	if s.closed || sess == nil || sess.Status != StatusActive || seq != s.turnSeq || s.inFlight != 0 {
		s.mu.Unlock()
		return
	}
	s.inFlight = seq
	speaker := pickSpeaker(s.rand, sess.Participants, sess.Messages)
	prompt := oracle.CouncilPrompt{
		Persona: speaker,
		Topic:   sess.Topic,
		Others:  others(sess.Participants, speaker.ID),
		Recent:  recentLines(sess.Messages),
	}
	id := sess.ID
	s.mu.Unlock()

	reply := s.lines.CouncilLine(ctx, prompt)

	s.mu.Lock()
	sess = s.session
	if sess == nil || sess.ID != id || sess.Status == StatusConcluded {
		s.mu.Unlock()
		s.log.Debug("council: discarding late turn", "session_id", id, "persona_id", speaker.ID)
		return
	}
	msg := s.appendLocked(speaker, reply.Text, reply.Source)
	owned := s.inFlight == s.turnSeq
	s.inFlight = 0
	if !s.closed && sess.Status == StatusActive && owned {
		s.turnSeq++
		next := s.turnSeq
		s.turnTimer = s.clock.AfterFunc(sess.Settings.TurnLength, func() { s.runTurn(s.ctx, next) })
	}
	s.mu.Unlock()

	s.deliver(speaker, msg)
}

func (s *Scheduler) appendLocked(p persona.Persona, content string, source oracle.Source) Message {
	msg := Message{
		ID:          uuid.NewString(),
		PersonaID:   p.ID,
		PersonaName: p.Name,
		Temperament: p.Temperament.String(),
		Content:     content,
		Timestamp:   s.clock.Now(),
		Kind:        KindSpeech,
		Emotion:     ClassifyEmotion(content),
		Source:      source,
	}
	s.session.Messages = append(s.session.Messages, msg)
	return msg
}

func (s *Scheduler) heraldLocked(content string) Message {
	msg := Message{
		ID:          uuid.NewString(),
		PersonaID:   HeraldID,
		PersonaName: HeraldName,
		Temperament: "neutral",
		Content:     content,
		Timestamp:   s.clock.Now(),
		Kind:        KindSpeech,
		Emotion:     EmotionNeutral,
	}
	s.session.Messages = append(s.session.Messages, msg)
	return msg
}

// deliver publishes a persona message and hands it to the speaker.
func (s *Scheduler) deliver(p persona.Persona, msg Message) {
	s.metrics.RecordCouncilMessage(string(msg.Emotion))
	s.publish(msg)
	voice.SpeakAsync(s.speaker, msg.Content, p.Temperament, s.log)
}

func (s *Scheduler) publish(msg Message) {
	s.mu.Lock()
	subs := make([]func(Message), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(msg)
	}
}

func (s *Scheduler) stopTimersLocked() {
	stop(s.turnTimer)
	stop(s.endTimer)
	s.turnTimer, s.endTimer = nil, nil
}

func stop(t Timer) {
	if t != nil {
		t.Stop()
	}
}

// pickSpeaker prefers participants absent from the last few messages, the
// herald aside, and falls back to everyone.
func pickSpeaker(src chance.Source, participants []persona.Persona, msgs []Message) persona.Persona {
	recent := make(map[string]bool, recentSpeakerWindow)
	for _, m := range msgs[max(0, len(msgs)-recentSpeakerWindow):] {
		if !m.Herald() {
			recent[m.PersonaID] = true
		}
	}
	var fresh []persona.Persona
	for _, p := range participants {
		if !recent[p.ID] {
			fresh = append(fresh, p)
		}
	}
	if len(fresh) == 0 {
		fresh = participants
	}
	return chance.Pick(src, fresh)
}

func others(participants []persona.Persona, id string) []persona.Persona {
	out := make([]persona.Persona, 0, len(participants)-1)
	for _, p := range participants {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

func recentLines(msgs []Message) []oracle.Line {
	msgs = msgs[max(0, len(msgs)-oracle.CouncilContextLines):]
	out := make([]oracle.Line, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, oracle.Line{Speaker: m.PersonaName, Content: m.Content})
	}
	return out
}
