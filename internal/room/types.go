package room

import (
	"time"

	"github.com/park285/cheese-arena/internal/rules"
)

// Status is the room lifecycle state.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusActive     Status = "active"
	StatusTerminated Status = "terminated"
)

// Role is how an occupant is attached to a room.
type Role string

const (
	RoleNone      Role = ""
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

// Occupant is an identity attached to a room. ID is the stable key; Name is for display.
type Occupant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (o Occupant) DisplayName() string {
	if o.Name != "" {
		return o.Name
	}
	return o.ID
}

// State is a fully materialized, read-only view of a room.
type State struct {
	ID         string              `json:"id"`
	Status     Status              `json:"status"`
	FEN        string              `json:"fen"`
	Turn       rules.Color         `json:"turn"`
	InCheck    bool                `json:"inCheck"`
	Outcome    rules.Outcome       `json:"outcome"`
	Moves      []rules.AppliedMove `json:"moves"`
	White      *Occupant           `json:"white,omitempty"`
	Black      *Occupant           `json:"black,omitempty"`
	Spectators []Occupant          `json:"spectators"`
	ECO        string              `json:"eco,omitempty"`
	Opening    string              `json:"opening,omitempty"`
	Version    uint64              `json:"version"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

// Seat returns the occupant holding the given color, if any.
func (s State) Seat(c rules.Color) *Occupant {
	if c == rules.White {
		return s.White
	}
	return s.Black
}

// LastMove returns the most recent applied move.
func (s State) LastMove() (rules.AppliedMove, bool) {
	if len(s.Moves) == 0 {
		return rules.AppliedMove{}, false
	}
	return s.Moves[len(s.Moves)-1], true
}

// Summary is the discovery view produced by Registry.List.
type Summary struct {
	ID         string
	Status     Status
	White      string
	Black      string
	Spectators int
	Moves      int
}

func (s Summary) Occupants() int {
	n := s.Spectators
	if s.White != "" {
		n++
	}
	if s.Black != "" {
		n++
	}
	return n
}

// JoinResult reports the role a Join ended up with.
type JoinResult struct {
	Role    Role
	Color   rules.Color
	Demoted bool
	Started bool
}

// LeaveResult reports what a Leave removed and whether the room is now empty.
type LeaveResult struct {
	Role      Role
	Color     rules.Color
	Empty     bool
	Abandoned bool
}

// MoveResult is an accepted move plus the state it produced.
type MoveResult struct {
	Move  rules.AppliedMove
	State State
}
