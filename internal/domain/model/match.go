package model

import "time"

type Match struct {
	ID           string    `json:"id"`
	RoomID       string    `json:"room_id"`
	ProblemID    string    `json:"problem_id"`
	Player1ID    string    `json:"player1_id"`
	Player2ID    string    `json:"player2_id"`
	Player1Score *int      `json:"player1_score"`
	Player2Score *int      `json:"player2_score"`
	StartedAt    time.Time `json:"started_at"`
}

// PlayerSlot returns 1 or 2 for a participant and 0 for anyone else.
func (m *Match) PlayerSlot(userID string) int {
	switch {
	case m == nil || userID == "":
		return 0
	case m.Player1ID == userID:
		return 1
	case m.Player2ID == userID:
		return 2
	}
	return 0
}

func (m *Match) HasPlayer(userID string) bool { return m.PlayerSlot(userID) != 0 }

// OpponentOf returns the other participant's id.
func (m *Match) OpponentOf(userID string) string {
	switch m.PlayerSlot(userID) {
	case 1:
		return m.Player2ID
	case 2:
		return m.Player1ID
	}
	return ""
}
