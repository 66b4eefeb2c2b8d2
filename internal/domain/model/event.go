package model

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventRoomCreated         EventType = "room.created"
	EventRoomLocked          EventType = "room.locked"
	EventRoomActive          EventType = "room.active"
	EventRoomCompleted       EventType = "room.completed"
	EventSubmissionCreated   EventType = "submission.created"
	EventSubmissionEvaluated EventType = "submission.evaluated"
	EventMatchScoreUpdated   EventType = "match.score_updated"
)

// Event is a "state changed" notification for the realtime relay.
type Event struct {
	Topic   string          `json:"topic"`
	Type    EventType       `json:"type"`
	RoomID  string          `json:"room_id,omitempty"`
	MatchID string          `json:"match_id,omitempty"`
	UserID  string          `json:"user_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}

func RoomTopic(roomID string) string   { return "room:" + roomID }
func MatchTopic(matchID string) string { return "match:" + matchID }

// NewRoomEvent builds an event on the room topic carrying the room snapshot.
func NewRoomEvent(t EventType, room *Room) Event {
	raw, _ := json.Marshal(room)
	return Event{Topic: RoomTopic(room.ID), Type: t, RoomID: room.ID, Payload: raw, At: time.Now()}
}

// NewMatchEvent builds an event on the match topic.
func NewMatchEvent(t EventType, matchID, userID string, payload any) Event {
	var raw json.RawMessage
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	return Event{Topic: MatchTopic(matchID), Type: t, MatchID: matchID, UserID: userID, Payload: raw, At: time.Now()}
}
