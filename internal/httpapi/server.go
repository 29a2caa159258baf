// Package httpapi exposes the engine over HTTP for hosts that drive
// conversations remotely: execute an action against a stored tracker,
// inspect trackers, health and metrics.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/espalier-ai/espalier"
	"github.com/espalier-ai/espalier/internal/logging"
	"github.com/espalier-ai/espalier/pkg/domain"
	"github.com/espalier-ai/espalier/pkg/ports"
)

// Server handles the HTTP surface. Unlike the engine it owns the
// conversation lifecycle: it loads the tracker, applies the returned
// events and persists the result, one turn per request.
type Server struct {
	engine *espalier.Engine
	store  ports.TrackerStore
	domain *domain.Domain
	logger *slog.Logger
	extra  map[string]http.Handler
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithHandler mounts an extra handler (e.g. /metrics) on the router.
func WithHandler(pattern string, h http.Handler) Option {
	return func(s *Server) {
		s.extra[pattern] = h
	}
}

// NewHandler builds the router.
func NewHandler(engine *espalier.Engine, store ports.TrackerStore, d *domain.Domain, opts ...Option) http.Handler {
	s := &Server{
		engine: engine,
		store:  store,
		domain: d,
		logger: logging.NewNop(),
		extra:  map[string]http.Handler{},
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.health)
	r.Get("/conversations/{senderID}/tracker", s.getTracker)
	r.Post("/conversations/{senderID}/execute", s.execute)
	for pattern, h := range s.extra {
		r.Handle(pattern, h)
	}
	return r
}

type executeRequest struct {
	Action  string          `json:"action"`
	Message *domain.Message `json:"message,omitempty"`
}

type executeResponse struct {
	Events    []map[string]any `json:"events"`
	Directive string           `json:"directive,omitempty"`
	Rejected  bool             `json:"rejected,omitempty"`
	Tracker   *domain.Tracker  `json:"tracker"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) getTracker(w http.ResponseWriter, r *http.Request) {
	senderID := chi.URLParam(r, "senderID")
	tracker, err := s.store.Load(r.Context(), senderID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("load tracker", "sender", senderID, "error", err)
		http.Error(w, "failed to load conversation", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tracker)
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request) {
	senderID := chi.URLParam(r, "senderID")

	var body executeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Action == "" {
		http.Error(w, "missing action", http.StatusBadRequest)
		return
	}

	tracker, err := s.store.Load(r.Context(), senderID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		tracker = domain.NewTracker(senderID, s.domain)
	} else if err != nil {
		s.logger.Error("load tracker", "sender", senderID, "error", err)
		http.Error(w, "failed to load conversation", http.StatusInternalServerError)
		return
	}

	if body.Message != nil {
		tracker.Apply(domain.NewUserUttered(*body.Message))
	}

	// Resolve up front so the audit trail records the canonical action
	// name even when the request used a numeric identifier.
	action, err := s.engine.Resolve(body.Action, s.domain)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	result, err := s.engine.RunAction(r.Context(), action.Name(), tracker, s.domain)

	var events []domain.Event
	rejected := false
	directive := domain.DirectiveNone

	switch {
	case err == nil:
		events = result.Events
		directive = result.Directive
	default:
		var rej *domain.RejectionError
		if !errors.As(err, &rej) {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		// A rejection is a recoverable outcome, not a failure: the
		// bookkeeping events still apply, and the caller may pick a
		// different action.
		events = rej.Events
		rejected = true
	}

	if !rejected {
		events = append(events, domain.NewActionExecuted(action.Name()))
	}
	tracker.Apply(events...)

	if err := s.store.Save(r.Context(), senderID, tracker); err != nil {
		s.logger.Error("save tracker", "sender", senderID, "error", err)
		http.Error(w, "failed to persist conversation", http.StatusInternalServerError)
		return
	}

	raws, err := domain.EncodeEvents(events)
	if err != nil {
		s.logger.Error("encode events", "error", err)
		http.Error(w, "failed to encode events", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, executeResponse{
		Events:    raws,
		Directive: string(directive),
		Rejected:  rejected,
		Tracker:   tracker,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownAction):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrServerTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrServerUnavailable),
		errors.Is(err, domain.ErrInvalidResponse):
		return http.StatusBadGateway
	default:
		var srv *domain.ServerError
		if errors.As(err, &srv) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
