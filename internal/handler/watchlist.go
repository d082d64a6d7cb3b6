package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/actuallystonmai/progress-service/internal/auth"
)

// PUT /watchlist/{titleID}
func (h *Handler) AddToWatchlist(w http.ResponseWriter, r *http.Request) {
	err := h.service.AddToWatchlist(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "titleID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /watchlist/{titleID}
func (h *Handler) RemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	err := h.service.RemoveFromWatchlist(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "titleID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /watchlist
func (h *Handler) Watchlist(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	items, cacheHit, err := h.service.Watchlist(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, WatchlistResponse{
		UserID: userID,
		Items:  items,
		Metadata: ListMeta{
			CacheHit:    cacheHit,
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
			TotalCount:  len(items),
		},
	})
}
