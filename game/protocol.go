package game

import (
	"encoding/json"

	"github.com/lishuceo/draw-and-guess/domain"
)

type ActionType string

const (
	ActionStart        ActionType = "start"
	ActionChooseWord   ActionType = "choose_word"
	ActionMessage      ActionType = "message"
	ActionStroke       ActionType = "stroke"
	ActionClear        ActionType = "clear"
	ActionNextRound    ActionType = "next_round"
	ActionRematch      ActionType = "rematch"
	ActionTransferHost ActionType = "transfer_host"
	ActionHeartbeat    ActionType = "heartbeat"
	ActionLeave        ActionType = "leave"
)

// Action is a client frame. Only the fields relevant to Type are set.
type Action struct {
	Type     ActionType     `json:"type"`
	Index    int            `json:"index,omitempty"`
	Text     string         `json:"text,omitempty"`
	Stroke   *domain.Stroke `json:"stroke,omitempty"`
	PlayerID string         `json:"playerId,omitempty"`
}

// RoomSettings are the host's choices when creating a room.
type RoomSettings struct {
	Name       string            `json:"name" validate:"required,max=40"`
	MaxPlayers int               `json:"maxPlayers" validate:"min=2,max=8"`
	MaxRounds  int               `json:"maxRounds" validate:"min=1,max=10"`
	Difficulty domain.Difficulty `json:"difficulty" validate:"oneof=easy medium hard"`
	Passcode   string            `json:"passcode,omitempty" validate:"max=64"`
}

type ServerFrameType string

const (
	FrameSnapshot ServerFrameType = "snapshot"
	FrameError    ServerFrameType = "error"
	FrameLobby    ServerFrameType = "lobby"
)

type ServerFrame struct {
	Type  ServerFrameType `json:"type"`
	Room  *domain.Room    `json:"room,omitempty"`
	Code  string          `json:"code,omitempty"`
	Rooms []RoomSummary   `json:"rooms,omitempty"`
}

// RoomSummary is one row of the lobby listing.
type RoomSummary struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	HostName    string            `json:"hostName"`
	PlayerCount int               `json:"playerCount"`
	MaxPlayers  int               `json:"maxPlayers"`
	MaxRounds   int               `json:"maxRounds"`
	Difficulty  domain.Difficulty `json:"difficulty"`
	Locked      bool              `json:"locked"`
	CreatedAt   int64             `json:"createdAt"`
}

func Summarize(room domain.Room) RoomSummary {
	host, _ := room.Host()
	return RoomSummary{
		ID:          room.ID,
		Name:        room.Name,
		HostName:    host.Name,
		PlayerCount: len(room.Players),
		MaxPlayers:  room.MaxPlayers,
		MaxRounds:   room.MaxRounds,
		Difficulty:  room.Difficulty,
		Locked:      room.PasscodeHash != "",
		CreatedAt:   room.CreatedAt,
	}
}

func MakeSnapshotFrame(view domain.Room) []byte {
	return mustMarshal(ServerFrame{Type: FrameSnapshot, Room: &view})
}

func MakeErrorFrame(code string) []byte {
	return mustMarshal(ServerFrame{Type: FrameError, Code: code})
}

func MakeLobbyFrame(rooms []domain.Room) []byte {
	summaries := make([]RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		summaries = append(summaries, Summarize(r))
	}
	return mustMarshal(ServerFrame{Type: FrameLobby, Rooms: summaries})
}

// These frames contain only plain data, so marshalling cannot fail.
func mustMarshal(f ServerFrame) []byte {
	data, err := json.Marshal(f)
	if err != nil {
		panic(err)
	}
	return data
}

// DecodeAction parses a client frame. Binary frames are strokes in the wire format of
// EncodeStroke; text frames are JSON actions.
func DecodeAction(data []byte, binary bool) (Action, error) {
	if binary {
		s, err := DecodeStroke(data)
		if err != nil {
			return Action{}, err
		}
		return Action{Type: ActionStroke, Stroke: &s}, nil
	}
	var a Action
	if err := json.Unmarshal(data, &a); err != nil {
		return Action{}, err
	}
	return a, nil
}
