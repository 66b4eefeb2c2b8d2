package model

import (
	"crypto/rand"
	"math/big"
	"time"
)

type RoomStatus string
type RoomMode string
type Difficulty string

const (
	RoomStatusWaiting   RoomStatus = "waiting"
	RoomStatusLocked    RoomStatus = "locked"
	RoomStatusActive    RoomStatus = "active"
	RoomStatusCompleted RoomStatus = "completed"

	ModeQuickplay RoomMode = "quickplay"
	ModeCustom    RoomMode = "custom"

	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"

	DefaultTimeLimitSeconds = 900
	RoomCodeLength          = 6
	RoomCodeAlphabet        = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var roomStatusRank = map[RoomStatus]int{
	RoomStatusWaiting:   0,
	RoomStatusLocked:    1,
	RoomStatusActive:    2,
	RoomStatusCompleted: 3,
}

// CanAdvanceTo reports whether next is exactly one step forward from s.
func (s RoomStatus) CanAdvanceTo(next RoomStatus) bool {
	cur, ok := roomStatusRank[s]
	if !ok {
		return false
	}
	n, ok := roomStatusRank[next]
	return ok && n == cur+1
}

func (s RoomStatus) Valid() bool {
	_, ok := roomStatusRank[s]
	return ok
}

func (m RoomMode) Valid() bool { return m == ModeQuickplay || m == ModeCustom }

func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

type Room struct {
	ID         string     `json:"id"`
	RoomCode   string     `json:"room_code"`
	CreatedBy  string     `json:"created_by"`
	Player1ID  string     `json:"player1_id"`
	Player2ID  *string    `json:"player2_id"`
	Mode       RoomMode   `json:"mode"`
	Difficulty Difficulty `json:"difficulty"`
	TimeLimit  int        `json:"time_limit"` // seconds
	Status     RoomStatus `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	LockedAt   *time.Time `json:"locked_at,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// HasPlayer reports whether userID occupies either slot.
func (r *Room) HasPlayer(userID string) bool {
	if r == nil || userID == "" {
		return false
	}
	return r.Player1ID == userID || (r.Player2ID != nil && *r.Player2ID == userID)
}

// IsFull reports whether both slots are taken.
func (r *Room) IsFull() bool {
	return r != nil && r.Player1ID != "" && r.Player2ID != nil && *r.Player2ID != ""
}

// TimeLimitDuration is the match clock length.
func (r *Room) TimeLimitDuration() time.Duration {
	return time.Duration(r.TimeLimit) * time.Second
}

var roomCodeAlphabetSize = big.NewInt(int64(len(RoomCodeAlphabet)))

// GenerateRoomCode returns RoomCodeLength characters drawn uniformly from RoomCodeAlphabet.
func GenerateRoomCode() (string, error) {
	b := make([]byte, RoomCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, roomCodeAlphabetSize)
		if err != nil {
			return "", err
		}
		b[i] = RoomCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}
