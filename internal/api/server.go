package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/reel/internal/blob"
	"github.com/MikeSquared-Agency/reel/internal/capture"
	"github.com/MikeSquared-Agency/reel/internal/catalog"
	"github.com/MikeSquared-Agency/reel/internal/pipeline"
	"github.com/MikeSquared-Agency/reel/internal/recorder"
)

type Server struct {
	router   *chi.Mux
	port     int
	pipeline *pipeline.Pipeline
}

func NewServer(port int, p *pipeline.Pipeline) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		pipeline: p,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/reel/status", s.status)

	router.Post("/api/v1/sessions", s.acquireSession)
	router.Post("/api/v1/sessions/{id}/tracks/{kind}", s.setTrackEnabled)
	router.Delete("/api/v1/sessions/{id}", s.releaseSession)
	router.Post("/api/v1/sessions/{id}/recordings", s.startRecording)
	router.Post("/api/v1/sessions/{id}/recordings/stop", s.stopRecording)

	router.Get("/api/v1/recordings", s.listRecordings)
	router.Get("/api/v1/recordings/{id}/content", s.recordingContent)
	router.Delete("/api/v1/recordings/{id}", s.deleteRecording)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	sessions, runs := s.pipeline.Counts()
	writeJSON(w, http.StatusOK, map[string]any{
		"service":  "reel",
		"sessions": sessions,
		"runs":     runs,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var devErr *capture.DeviceError
	var perr *catalog.PersistenceError
	switch {
	case errors.As(err, &devErr):
		status = http.StatusServiceUnavailable
	case errors.Is(err, recorder.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, pipeline.ErrNoSession), errors.Is(err, blob.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &perr):
		status = http.StatusInsufficientStorage
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
