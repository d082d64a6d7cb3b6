package domain

import "time"

type Title struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Genre          string    `json:"genre"`
	RuntimeSeconds float64   `json:"runtime_seconds"`
	CreatedAt      time.Time `json:"created_at"`
}
