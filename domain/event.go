package domain

type EventType string

const (
	EventRoomCreated EventType = "room.created"
	EventGameStarted EventType = "game.started"
	EventRoundEnded  EventType = "round.ended"
	EventGameEnded   EventType = "game.ended"
	EventRoomDeleted EventType = "room.deleted"
)

// Event is a room lifecycle notification for downstream consumers.
type Event struct {
	Type        EventType `json:"type"`
	RoomID      string    `json:"roomId"`
	Round       int       `json:"round,omitempty"`
	Word        string    `json:"word,omitempty"`
	PlayerCount int       `json:"playerCount"`
	Reason      string    `json:"reason,omitempty"`
	Timestamp   int64     `json:"timestamp"`
}
