package handler

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/actuallystonmai/progress-service/internal/auth"
)

// GET /progress/{titleID}
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	titleID := chi.URLParam(r, "titleID")

	var duration float64
	if durationStr := r.URL.Query().Get("duration"); durationStr != "" {
		parsed, err := strconv.ParseFloat(durationStr, 64)
		if err != nil || parsed < 0 || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid duration parameter")
			return
		}
		duration = parsed
	}

	resume, rec := h.tracker.ResumePoint(r.Context(), auth.UserID(r.Context()), titleID, duration)

	resp := ProgressResponse{
		TitleID:       titleID,
		Progress:      rec,
		ResumeSeconds: resume,
	}
	if rec != nil {
		resp.Percent = rec.Percent()
	}
	writeJSON(w, http.StatusOK, resp)
}

// PUT /progress/{titleID}
// Direct report for players that do not open a session.
func (h *Handler) PutProgress(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if err := decodeJSON(r, &req); err != nil || req.PositionSeconds == nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "position_seconds is required")
		return
	}

	err := h.tracker.RecordProgress(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "titleID"),
		*req.PositionSeconds, req.DurationSeconds)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /continue-watching
func (h *Handler) ContinueWatching(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > 50 {
			writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	userID := auth.UserID(r.Context())
	items, cacheHit, err := h.service.ContinueWatching(r.Context(), userID, limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ContinueWatchingResponse{
		UserID: userID,
		Items:  items,
		Metadata: ListMeta{
			CacheHit:    cacheHit,
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
			TotalCount:  len(items),
		},
	})
}
