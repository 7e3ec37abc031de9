package proto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

const (
	ErrMalformed    staticErr = "malformed frame"
	ErrUnknownEvent staticErr = "unknown event"
)

// Envelope is the wire frame in both directions: {"event": ..., "data": ...}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound is a decoded client event. The set of implementations is closed.
type Inbound interface {
	EventName() string
	inbound()
}

type MoveSpec struct {
	From      string `json:"from" validate:"required,square"`
	To        string `json:"to" validate:"required,square"`
	Promotion string `json:"promotion,omitempty" validate:"omitempty,oneof=q r b n"`
}

type JoinGame struct {
	Room        string `json:"room" validate:"required,notblank,max=64"`
	PlayerName  string `json:"playerName" validate:"max=64"`
	IsSpectator bool   `json:"isSpectator,omitempty"`
}

type MakeMove struct {
	Room       string   `json:"room" validate:"required,notblank,max=64"`
	Move       MoveSpec `json:"move" validate:"required"`
	PlayerName string   `json:"playerName,omitempty" validate:"max=64"`
}

type ResetGame struct {
	Room string `json:"room" validate:"required,notblank,max=64"`
}

type Resign struct {
	Room string `json:"room" validate:"required,notblank,max=64"`
}

type JoinChat struct {
	Room string `json:"room" validate:"required,notblank,max=64"`
}

type LeaveChat struct {
	Room string `json:"room" validate:"required,notblank,max=64"`
}

type SendMessage struct {
	GameID  string `json:"gameId" validate:"required,notblank,max=64"`
	Message string `json:"message" validate:"required"`
}

type Typing struct {
	Room string `json:"room" validate:"required,notblank,max=64"`
	User string `json:"user" validate:"max=64"`
}

func (JoinGame) EventName() string    { return "joinGame" }
func (MakeMove) EventName() string    { return "makeMove" }
func (ResetGame) EventName() string   { return "resetGame" }
func (Resign) EventName() string      { return "resign" }
func (JoinChat) EventName() string    { return "joinChat" }
func (LeaveChat) EventName() string   { return "leaveChat" }
func (SendMessage) EventName() string { return "sendMessage" }
func (Typing) EventName() string      { return "typing" }

func (JoinGame) inbound()    {}
func (MakeMove) inbound()    {}
func (ResetGame) inbound()   {}
func (Resign) inbound()      {}
func (JoinChat) inbound()    {}
func (LeaveChat) inbound()   {}
func (SendMessage) inbound() {}
func (Typing) inbound()      {}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("square", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return len(s) == 2 && s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Decode parses and validates one client frame.
func Decode(raw []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return DecodeEnvelope(env)
}

func DecodeEnvelope(env Envelope) (Inbound, error) {
	var (
		in  Inbound
		err error
	)
	switch strings.TrimSpace(env.Event) {
	case "joinGame":
		in, err = decodeInto[JoinGame](env.Data)
	case "makeMove":
		in, err = decodeInto[MakeMove](env.Data)
	case "resetGame":
		in, err = decodeInto[ResetGame](env.Data)
	case "resign":
		in, err = decodeInto[Resign](env.Data)
	case "joinChat":
		in, err = decodeRoomOrString[JoinChat](env.Data, func(room string) JoinChat { return JoinChat{Room: room} })
	case "leaveChat":
		in, err = decodeRoomOrString[LeaveChat](env.Data, func(room string) LeaveChat { return LeaveChat{Room: room} })
	case "sendMessage":
		in, err = decodeInto[SendMessage](env.Data)
	case "typing":
		in, err = decodeInto[Typing](env.Data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", env.Event, err)
	}
	return in, nil
}

func decodeInto[T Inbound](data json.RawMessage) (T, error) {
	var v T
	if len(bytes.TrimSpace(data)) == 0 {
		return v, ErrMalformed
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validate.Struct(v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return v, nil
}

// decodeRoomOrString accepts either {"room": "..."} or a bare "..." room id.
func decodeRoomOrString[T Inbound](data json.RawMessage, fromString func(string) T) (T, error) {
	var room string
	if err := json.Unmarshal(data, &room); err == nil {
		v := fromString(strings.TrimSpace(room))
		if err := validate.Struct(v); err != nil {
			return v, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return v, nil
	}
	return decodeInto[T](data)
}
