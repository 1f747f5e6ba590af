package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/reel/internal/capture"
)

type sessionResponse struct {
	SessionID string   `json:"session_id"`
	Tracks    []string `json:"tracks"`
}

func (s *Server) acquireSession(w http.ResponseWriter, r *http.Request) {
	var constraints capture.Constraints
	if err := json.NewDecoder(r.Body).Decode(&constraints); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid constraints body"})
		return
	}

	session, err := s.pipeline.AcquireSession(r.Context(), constraints)
	if err != nil {
		writeError(w, err)
		return
	}

	kinds := session.Tracks()
	resp := sessionResponse{SessionID: session.ID(), Tracks: make([]string, len(kinds))}
	for i, k := range kinds {
		resp.Tracks[i] = string(k)
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) setTrackEnabled(w http.ResponseWriter, r *http.Request) {
	kind := capture.TrackKind(chi.URLParam(r, "kind"))
	if kind != capture.TrackVideo && kind != capture.TrackAudio {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "track kind must be video or audio"})
		return
	}

	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	if err := s.pipeline.SetTrackEnabled(chi.URLParam(r, "id"), kind, body.Enabled); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) releaseSession(w http.ResponseWriter, r *http.Request) {
	// Release is idempotent; unknown ids succeed so racing teardown paths
	// never error.
	s.pipeline.ReleaseSession(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) startRecording(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.pipeline.StartRecording(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"session_id": id,
		"status":     "recording",
	})
}

func (s *Server) stopRecording(w http.ResponseWriter, r *http.Request) {
	entry, err := s.pipeline.StopRecording(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
