package handler

import "github.com/actuallystonmai/progress-service/internal/domain"

type StartSessionRequest struct {
	TitleID         string  `json:"title_id"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type PositionRequest struct {
	PositionSeconds *float64 `json:"position_seconds"`
	DurationSeconds float64  `json:"duration_seconds"`
}

type SessionResponse struct {
	domain.SessionSnapshot
	ResumeSeconds float64 `json:"resume_seconds"`
}

type EndSessionResponse struct {
	SessionID string               `json:"session_id"`
	Progress  domain.WatchProgress `json:"progress"`
}

type ProgressResponse struct {
	TitleID       string                `json:"title_id"`
	Progress      *domain.WatchProgress `json:"progress"`
	Percent       float64               `json:"percent"`
	ResumeSeconds float64               `json:"resume_seconds"`
}

type ContinueWatchingResponse struct {
	UserID   string                        `json:"user_id"`
	Items    []domain.ContinueWatchingItem `json:"items"`
	Metadata ListMeta                      `json:"metadata"`
}

type WatchlistResponse struct {
	UserID   string                 `json:"user_id"`
	Items    []domain.WatchlistItem `json:"items"`
	Metadata ListMeta               `json:"metadata"`
}

type ListMeta struct {
	CacheHit    bool   `json:"cache_hit"`
	GeneratedAt string `json:"generated_at"`
	TotalCount  int    `json:"total_count"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
