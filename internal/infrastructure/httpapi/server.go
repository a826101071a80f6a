package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"SocialListener/internal/platform"
	"SocialListener/internal/usecase"
)

// Server exposes the on-demand trigger API of the collector service.
type Server struct {
	orchestrator *usecase.Orchestrator
	registry     *platform.Registry
	logger       *slog.Logger
}

// NewServer wires the orchestrator and platform registry.
func NewServer(orchestrator *usecase.Orchestrator, registry *platform.Registry, logger *slog.Logger) *Server {
	return &Server{
		orchestrator: orchestrator,
		registry:     registry,
		logger:       logger,
	}
}

// Handler builds the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Post("/collect/{platform}", s.handleCollect)
	r.Post("/collect/{platform}/test", s.handleTestConnection)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "collector",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	configured := map[string]bool{}
	for _, name := range s.registry.Platforms() {
		client, err := s.registry.Resolve(name)
		if err != nil {
			continue
		}
		configured[name] = client.IsConfigured()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "running",
		"platforms": configured,
	})
}

type collectRequest struct {
	ListenerID *int64 `json:"listener_id"`
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "platform")

	client, err := s.registry.Resolve(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if !client.IsConfigured() {
		writeError(w, http.StatusBadRequest, name+" credentials not configured")
		return
	}

	var req collectRequest
	if r.Body != nil {
		// An empty body means "all eligible listeners".
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	summary, err := s.orchestrator.Collect(r.Context(), usecase.Trigger{
		Kind:       usecase.TriggerManual,
		Platform:   name,
		ListenerID: req.ListenerID,
	})
	if err != nil {
		s.logger.Error("manual collection failed", "platform", name, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusOK
	if summary.Failed() {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, summary)
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "platform")

	client, err := s.registry.Resolve(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if !client.IsConfigured() {
		writeError(w, http.StatusBadRequest, name+" credentials not configured")
		return
	}

	if err := client.TestConnection(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "connected to " + name,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
