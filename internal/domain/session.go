package domain

import "time"

type SessionState string

const (
	SessionNotStarted SessionState = "not_started"
	SessionPlaying    SessionState = "playing"
	SessionPaused     SessionState = "paused"
	SessionEnded      SessionState = "ended"
)

// SessionSnapshot is a point-in-time copy of a playback session.
type SessionSnapshot struct {
	ID              string       `json:"session_id"`
	UserID          string       `json:"user_id"`
	TitleID         string       `json:"title_id"`
	State           SessionState `json:"state"`
	PositionSeconds float64      `json:"position_seconds"`
	DurationSeconds float64      `json:"duration_seconds"`
	StartedAt       time.Time    `json:"started_at"`
	LastActivityAt  time.Time    `json:"last_activity_at"`
}
