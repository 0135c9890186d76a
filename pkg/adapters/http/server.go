package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/runner"
)

// Engine is the part of *arbor.Engine served over HTTP.
type Engine interface {
	Ask(ctx context.Context, sessionID, task string) (*domain.ExecutionState, error)
	Answer(ctx context.Context, sessionID, stepNumber, answer string) (*domain.ExecutionState, error)
	Continue(ctx context.Context, sessionID string) (*domain.ExecutionState, error)
	State(ctx context.Context, sessionID string) (*domain.ExecutionState, error)
	Discard(ctx context.Context, sessionID string) error
	Sessions(ctx context.Context) ([]string, error)
}

// AskRequest is the body of POST /sessions/{id}/ask.
type AskRequest struct {
	Task string `json:"task"`
}

// AnswerRequest is the body of POST /sessions/{id}/answer.
// Step names the question being answered; a repeated delivery for an answered step is a no-op.
type AnswerRequest struct {
	Answer string `json:"answer"`
	Step   string `json:"step"`
}

// SessionList is the body of GET /sessions.
type SessionList struct {
	Sessions []string `json:"sessions"`
}

// Server serves the session API.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	metrics http.Handler
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithStreams shares a StreamManager whose Hooks are installed on the engine.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithMetrics mounts h at GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a Server for engine.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{Engine: engine, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager()
	}
	return s
}

// NewHandler creates the HTTP handler for engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	return NewServer(engine, opts...).Routes()
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/ask", s.ask)
			r.Post("/answer", s.answer)
			r.Post("/continue", s.continueSession)
			r.Get("/events", s.events)
		})
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.Sessions(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, SessionList{Sessions: ids})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.Engine.State(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Discard(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	var body AskRequest
	if !s.decode(w, r, &body) {
		return
	}
	task, ok := s.sanitize(w, r, body.Task)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	state, err := s.Engine.Ask(r.Context(), id, task)
	s.respond(w, r, id, state, err)
}

func (s *Server) answer(w http.ResponseWriter, r *http.Request) {
	var body AnswerRequest
	if !s.decode(w, r, &body) {
		return
	}
	answer, ok := s.sanitize(w, r, body.Answer)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	state, err := s.Engine.Answer(r.Context(), id, body.Step, answer)
	s.respond(w, r, id, state, err)
}

func (s *Server) continueSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := s.Engine.Continue(r.Context(), id)
	s.respond(w, r, id, state, err)
}

// respond writes the state of a run, publishing it to subscribers first.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, id string, state *domain.ExecutionState, err error) {
	if state != nil {
		s.Streams.PublishState(id, state)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Warn("invalid request body", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body.", err)
		return false
	}
	return true
}

func (s *Server) sanitize(w http.ResponseWriter, r *http.Request, input string) (string, bool) {
	clean, err := runner.SanitizeInput(input)
	if err != nil {
		s.logger.Warn("input rejected", "path", r.URL.Path, "size", len(input), "error", err)
		writeError(w, http.StatusBadRequest, "Invalid input.", err)
		return "", false
	}
	return clean, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		s.logger.Info("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeError(w, status, domain.Describe(err), err)
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	writeJSON(w, status, ErrorResponse{Message: message, Detail: fmt.Sprint(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}
