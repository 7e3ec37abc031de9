package proto

import (
	"encoding/json"
	"time"

	"github.com/park285/cheese-arena/pkg/chessdto"
)

// Outbound is a server event. The set of implementations is closed.
type Outbound interface {
	EventName() string
	outbound()
}

type GameJoined struct {
	Success     bool               `json:"success"`
	PlayerColor string             `json:"playerColor"`
	RoomID      string             `json:"roomId"`
	GameState   chessdto.GameState `json:"gameState"`
}

type PlayerJoined struct {
	PlayerName  string             `json:"playerName"`
	PlayerColor string             `json:"playerColor"`
	RoomID      string             `json:"roomId"`
	GameState   chessdto.GameState `json:"gameState"`
}

// SpectatorJoined goes to the joining connection with RoomID and GameState,
// and to the rest of the room with PlayerName only.
type SpectatorJoined struct {
	RoomID     string              `json:"roomId,omitempty"`
	GameState  *chessdto.GameState `json:"gameState,omitempty"`
	PlayerName string              `json:"playerName,omitempty"`
	Demoted    bool                `json:"demoted,omitempty"`
}

type PlayerLeft struct {
	PlayerName string             `json:"playerName"`
	Role       string             `json:"role"`
	GameState  chessdto.GameState `json:"gameState"`
}

type GameStarted struct {
	GameState chessdto.GameState `json:"gameState"`
}

type MoveMade struct {
	Move      chessdto.MoveDTO   `json:"move"`
	GameState chessdto.GameState `json:"gameState"`
}

type GameReset struct {
	GameState chessdto.GameState `json:"gameState"`
}

type GameOver struct {
	Termination string             `json:"termination"`
	Winner      string             `json:"winner,omitempty"`
	Result      string             `json:"result"`
	Message     string             `json:"message,omitempty"`
	GameState   chessdto.GameState `json:"gameState"`
}

type GameEnded struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

type Error struct {
	chessdto.DomainError
}

type ChatJoined struct {
	Room string `json:"room"`
}

type NewMessage struct {
	GameID   string    `json:"gameId"`
	UserID   string    `json:"userId,omitempty"`
	UserName string    `json:"userName,omitempty"`
	Message  string    `json:"message"`
	SentAt   time.Time `json:"sentAt"`
	SocketID string    `json:"socketId"`
}

type UserTyping struct {
	User     string `json:"user"`
	SocketID string `json:"socketId"`
}

func (GameJoined) EventName() string      { return "gameJoined" }
func (PlayerJoined) EventName() string    { return "playerJoined" }
func (SpectatorJoined) EventName() string { return "spectatorJoined" }
func (PlayerLeft) EventName() string      { return "playerLeft" }
func (GameStarted) EventName() string     { return "gameStarted" }
func (MoveMade) EventName() string        { return "moveMade" }
func (GameReset) EventName() string       { return "gameReset" }
func (GameOver) EventName() string        { return "gameOver" }
func (GameEnded) EventName() string       { return "gameEnded" }
func (Error) EventName() string           { return "error" }
func (ChatJoined) EventName() string      { return "chatJoined" }
func (NewMessage) EventName() string      { return "newMessage" }
func (UserTyping) EventName() string      { return "userTyping" }

func (GameJoined) outbound()      {}
func (PlayerJoined) outbound()    {}
func (SpectatorJoined) outbound() {}
func (PlayerLeft) outbound()      {}
func (GameStarted) outbound()     {}
func (MoveMade) outbound()        {}
func (GameReset) outbound()       {}
func (GameOver) outbound()        {}
func (GameEnded) outbound()       {}
func (Error) outbound()           {}
func (ChatJoined) outbound()      {}
func (NewMessage) outbound()      {}
func (UserTyping) outbound()      {}

// Frame is the encoded form of an Outbound.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func Encode(o Outbound) Frame { return Frame{Event: o.EventName(), Data: o} }

// DecodeData unmarshals the data part of an envelope into an outbound type.
// Clients and tests use it to read server frames.
func DecodeData[T Outbound](env Envelope) (T, error) {
	var v T
	err := json.Unmarshal(env.Data, &v)
	return v, err
}
