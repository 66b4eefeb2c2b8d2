package model

import "time"

// Draft is a player's unsubmitted editor content for a match.
type Draft struct {
	MatchID  string    `json:"match_id"`
	UserID   string    `json:"user_id"`
	Code     string    `json:"code"`
	Language string    `json:"language"`
	SavedAt  time.Time `json:"saved_at"`
}
