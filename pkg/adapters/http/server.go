package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Bot is the part of chatflow.Bot the server drives.
type Bot interface {
	Handle(ctx context.Context, ev domain.Event) error
	Workflows() []*domain.Workflow
}

// Server exposes a Bot as a webhook endpoint.
type Server struct {
	Bot     Bot
	Streams *StreamManager
	Version string

	logger  *slog.Logger
	metrics http.Handler
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics mounts h at GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithStreams shares a StreamManager with a Platform so that outbound
// messages reach SSE subscribers.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		if sm != nil {
			s.Streams = sm
		}
	}
}

// WithVersion sets the version reported by GET /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.Version = v
	}
}

// NewHandler creates the HTTP handler for bot.
//
//	POST /events                 deliver one inbound event
//	GET  /workflows              list loaded workflows
//	GET  /rooms/{roomID}/stream  SSE stream of outbound messages
//	GET  /health, /info, /metrics
func NewHandler(bot Bot, opts ...Option) http.Handler {
	s := &Server{
		Bot:     bot,
		Streams: NewStreamManager(),
		Version: "dev",
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Post("/events", s.PostEvent)
	r.Get("/workflows", s.GetWorkflows)
	r.Get("/rooms/{roomID}/stream", s.StreamRoom)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PostEvent handles POST /events.
func (s *Server) PostEvent(w http.ResponseWriter, r *http.Request) {
	var ev domain.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		s.logger.Warn("PostEvent: invalid request body", "err", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateEvent(ev); err != nil {
		s.logger.Warn("PostEvent: event rejected", "err", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.Bot.Handle(r.Context(), ev); err != nil {
		status := http.StatusInternalServerError
		var stepErr *domain.StepEvaluationError
		var dispatchErr *domain.DispatchError
		if errors.As(err, &stepErr) || errors.As(err, &dispatchErr) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func validateEvent(ev domain.Event) error {
	known := false
	for _, t := range domain.InboundEvents {
		if ev.Type == t {
			known = true
			break
		}
	}
	switch {
	case !known:
		return fmt.Errorf("unsupported event type %q", ev.Type)
	case ev.RoomID == "":
		return errors.New("room_id is required")
	case ev.User.ID == "":
		return errors.New("user.id is required")
	}
	return nil
}

// WorkflowInfo is one entry of GET /workflows.
type WorkflowInfo struct {
	Name       string             `json:"name"`
	Version    string             `json:"version"`
	Source     string             `json:"source,omitempty"`
	Selectable bool               `json:"selectable"`
	Steps      int                `json:"steps"`
	On         []domain.EventType `json:"on"`
}

// GetWorkflows handles GET /workflows.
func (s *Server) GetWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows := s.Bot.Workflows()
	out := make([]WorkflowInfo, 0, len(workflows))
	for _, wf := range workflows {
		info := WorkflowInfo{
			Name:       wf.Name,
			Version:    wf.Version,
			Source:     wf.Source,
			Selectable: wf.Selectable(),
			Steps:      len(wf.Steps),
			On:         []domain.EventType{},
		}
		for _, t := range append([]domain.EventType{domain.EventWorkflowDispatch}, domain.InboundEvents...) {
			if _, ok := wf.On[t]; ok {
				info.On = append(info.On, t)
			}
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "chatflow-http",
		"version": strings.TrimSpace(s.Version),
	})
}

// StreamRoom handles GET /rooms/{roomID}/stream (SSE).
func (s *Server) StreamRoom(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("StreamRoom: streaming not supported")
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	roomID := chi.URLParam(r, "roomID")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(roomID)
	defer cancel()
	s.logger.Info("SSE: client subscribed", "room_id", roomID)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: client disconnected", "room_id", roomID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
