package domain

import "time"

// WatchlistItem is a title a user saved to watch later.
type WatchlistItem struct {
	UserID    string    `json:"user_id"`
	TitleID   string    `json:"title_id"`
	TitleName string    `json:"title_name,omitempty"`
	Genre     string    `json:"genre,omitempty"`
	AddedAt   time.Time `json:"added_at"`
}
