package domain

import (
	"math"
	"time"
)

// WatchProgress is the stored playback position of one user on one title.
// There is exactly one per (UserID, TitleID).
type WatchProgress struct {
	UserID          string    `json:"user_id"`
	TitleID         string    `json:"title_id"`
	PositionSeconds float64   `json:"position_seconds"`
	DurationSeconds float64   `json:"duration_seconds"`
	Completed       bool      `json:"completed"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Percent returns how much of the title has been watched, capped at 100.
// An unknown duration reports 0.
func (p WatchProgress) Percent() float64 {
	if p.DurationSeconds <= 0 {
		return 0
	}
	return math.Min(p.PositionSeconds/p.DurationSeconds*100, 100)
}

type ContinueWatchingItem struct {
	WatchProgress
	TitleName string  `json:"title_name,omitempty"`
	Genre     string  `json:"genre,omitempty"`
	Percent   float64 `json:"percent"`
}

type WatchHistoryPage struct {
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalCount int             `json:"total_count"`
	Items      []WatchProgress `json:"items"`
}
