package handler

import (
	"net/http"
	"strconv"

	"github.com/actuallystonmai/progress-service/internal/auth"
)

// GET /history?page=1&limit=20
func (h *Handler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	page, ok := queryInt(r, "page", 1, 1, 10000)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid page parameter")
		return
	}
	limit, ok := queryInt(r, "limit", 20, 1, 100)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid limit parameter")
		return
	}

	result, err := h.service.WatchHistory(r.Context(), auth.UserID(r.Context()), page, limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// queryInt parses an optional integer query parameter within [lo, hi].
func queryInt(r *http.Request, key string, fallback, lo, hi int) (int, bool) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < lo || v > hi {
		return 0, false
	}
	return v, true
}
