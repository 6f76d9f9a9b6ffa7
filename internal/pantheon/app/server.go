package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bdobrica/pantheon/common/trace"
	"github.com/bdobrica/pantheon/common/version"
	"github.com/bdobrica/pantheon/internal/pantheon/llm"
)

// TraceHeader carries the request trace id in both directions.
const TraceHeader = "X-Trace-ID"

// maxBodyBytes bounds JSON request bodies. Chat imports have their own
// limit, Config.MaxImportBytes.
const maxBodyBytes = 8 << 20

// Server exposes the pantheon API, /health, /status and /metrics.
type Server struct {
	addr      string
	app       *App
	log       *slog.Logger
	startedAt time.Time
	mux       *http.ServeMux
	server    *http.Server
}

// healthResponse is returned by GET /health.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// statusResponse is returned by GET /status.
type statusResponse struct {
	Status        string    `json:"status"`
	Version       string    `json:"version"`
	Commit        string    `json:"commit"`
	BuildTime     string    `json:"build_time"`
	StartedAt     time.Time `json:"started_at"`
	UptimeSecs    float64   `json:"uptime_seconds"`
	Personas      int       `json:"personas"`
	LLMReady      bool      `json:"llm_ready"`
	CouncilStatus string    `json:"council_status,omitempty"`
	ActiveRituals int       `json:"active_rituals"`
	Summoned      string    `json:"summoned,omitempty"`
	// TokensRemaining is keyed by persona id and absent when the daily
	// budget is disabled.
	TokensRemaining map[string]int `json:"llm_tokens_remaining,omitempty"`
}

// tokenBudgeter is implemented by clients enforcing a daily token budget.
type tokenBudgeter interface {
	RemainingTokens(key string) int
}

// NewServer creates and configures the HTTP server (does not start it).
func NewServer(addr string, a *App, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		addr:      addr,
		app:       a,
		log:       log,
		startedAt: time.Now(),
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler so the server can be tested without a
// live network listener. Every request gets a trace id.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if id := r.Header.Get(TraceHeader); id != "" {
		ctx = trace.WithID(ctx, id)
	}
	ctx, id := trace.Ensure(ctx)
	w.Header().Set(TraceHeader, id)
	s.mux.ServeHTTP(w, r.WithContext(ctx))
}

// Serve listens on addr and blocks until ctx is cancelled, then shuts the
// server down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("http server: listen %s: %w", s.addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:      s,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("http server shutdown error", "err", err)
	}
	return <-errCh
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: version.Version,
		Commit:  version.GitCommit,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:        "ok",
		Version:       version.Version,
		Commit:        version.GitCommit,
		BuildTime:     version.BuildTime,
		StartedAt:     s.startedAt,
		UptimeSecs:    time.Since(s.startedAt).Seconds(),
		Personas:      s.app.personas.Len(),
		LLMReady:      s.app.engine.Ready(),
		ActiveRituals: len(s.app.chamber.Active("")),
		Summoned:      s.app.Summoned(),
	}
	if sess, ok := s.app.council.Session(); ok {
		resp.CouncilStatus = string(sess.Status)
	}
	resp.TokensRemaining = s.tokensRemaining()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) tokensRemaining() map[string]int {
	b, ok := s.app.client.(tokenBudgeter)
	if !ok {
		return nil
	}
	var out map[string]int
	for _, p := range s.app.personas.All() {
		n := b.RemainingTokens(p.ID)
		if n == llm.Unlimited {
			return nil
		}
		if out == nil {
			out = make(map[string]int)
		}
		out[p.ID] = n
	}
	return out
}

// writeJSON serialises v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("http: failed to encode JSON response", "err", err)
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// writeError maps err to a status code and logs server-side failures.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		trace.Logger(r.Context(), s.log).Error("http: request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, code, errorResponse{Error: err.Error(), TraceID: trace.FromContext(r.Context())})
}

// decode reads a JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
