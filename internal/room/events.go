package room

import "github.com/park285/cheese-arena/internal/rules"

// Event is produced by a Room while it holds its lock, in acceptance order.
// The set of implementations is closed.
type Event interface {
	RoomID() string
	event()
}

type base struct{ Room string }

func (b base) RoomID() string { return b.Room }
func (base) event()           {}

type PlayerJoined struct {
	base
	Occupant Occupant
	Color    rules.Color
	State    State
}

type SpectatorJoined struct {
	base
	Occupant Occupant
	Demoted  bool
	State    State
}

type PlayerLeft struct {
	base
	Occupant Occupant
	Role     Role
	State    State
}

type GameStarted struct {
	base
	State State
}

type MoveMade struct {
	base
	Actor Occupant
	Move  rules.AppliedMove
	State State
}

type GameReset struct {
	base
	State State
}

type GameOver struct {
	base
	Outcome rules.Outcome
	State   State
	// Leaver is set on abandonment; the seat is already empty in State.
	Leaver *Occupant
}

// RoomClosed is the last event a room ever produces.
type RoomClosed struct {
	base
	State State
}

// Sink receives room events. Publish runs under the room lock: it must not block
// and must not call back into the room.
type Sink interface {
	Publish(ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev Event)

func (f SinkFunc) Publish(ev Event) { f(ev) }

// Sinks fans one event out to several sinks in order.
type Sinks []Sink

func (s Sinks) Publish(ev Event) {
	for _, sink := range s {
		if sink != nil {
			sink.Publish(ev)
		}
	}
}

type nopSink struct{}

func (nopSink) Publish(Event) {}
