package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/reel/internal/query"
)

func (s *Server) listRecordings(w http.ResponseWriter, r *http.Request) {
	timeFilter, ok := query.ParseTimeFilter(r.URL.Query().Get("filter"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "filter must be one of all, today, week, month"})
		return
	}
	sortKey, ok := query.ParseSortKey(r.URL.Query().Get("sort"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "sort must be one of date, duration, name"})
		return
	}

	entries, err := s.pipeline.Query(r.Context(), query.Params{
		Search: r.URL.Query().Get("search"),
		Time:   timeFilter,
		Sort:   sortKey,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"recordings": entries,
		"count":      len(entries),
	})
}

func (s *Server) recordingContent(w http.ResponseWriter, r *http.Request) {
	entry, data, err := s.pipeline.RecordingContent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+entry.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) deleteRecording(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.DeleteRecording(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
