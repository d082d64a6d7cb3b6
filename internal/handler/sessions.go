package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/actuallystonmai/progress-service/internal/auth"
)

// POST /sessions
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Request body must be a JSON object")
		return
	}

	// Fall back to the catalogue runtime when the player has no duration yet
	duration := req.DurationSeconds
	if duration == 0 && req.TitleID != "" {
		duration = h.service.TitleRuntime(r.Context(), req.TitleID)
	}

	s, resume, err := h.sessions.Start(r.Context(), auth.UserID(r.Context()), req.TitleID, duration)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, SessionResponse{
		SessionSnapshot: s.Snapshot(),
		ResumeSeconds:   resume,
	})
}

// GET /sessions/{sessionID}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(auth.UserID(r.Context()), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	s.Touch()
	writeJSON(w, http.StatusOK, SessionResponse{SessionSnapshot: s.Snapshot()})
}

// POST /sessions/{sessionID}/position
func (h *Handler) ReportPosition(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(auth.UserID(r.Context()), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	var req PositionRequest
	if err := decodeJSON(r, &req); err != nil || req.PositionSeconds == nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "position_seconds is required")
		return
	}
	if err := s.Advance(*req.PositionSeconds, req.DurationSeconds); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{SessionSnapshot: s.Snapshot()})
}

// POST /sessions/{sessionID}/seek
func (h *Handler) Seek(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(auth.UserID(r.Context()), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	var req PositionRequest
	if err := decodeJSON(r, &req); err != nil || req.PositionSeconds == nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "position_seconds is required")
		return
	}
	if err := s.Seek(*req.PositionSeconds); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{SessionSnapshot: s.Snapshot()})
}

// POST /sessions/{sessionID}/pause
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(auth.UserID(r.Context()), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if err := s.Pause(); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{SessionSnapshot: s.Snapshot()})
}

// POST /sessions/{sessionID}/play
func (h *Handler) Play(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(auth.UserID(r.Context()), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if err := s.Play(); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{SessionSnapshot: s.Snapshot()})
}

// DELETE /sessions/{sessionID}
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	rec, err := h.sessions.End(r.Context(), auth.UserID(r.Context()), sessionID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.logger.Debug("session closed by client", zap.String("session_id", sessionID))
	writeJSON(w, http.StatusOK, EndSessionResponse{
		SessionID: sessionID,
		Progress:  rec,
	})
}
