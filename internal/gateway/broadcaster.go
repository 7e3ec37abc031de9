package gateway

import (
	"github.com/park285/cheese-arena/internal/fanout"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/proto"
	"github.com/park285/cheese-arena/internal/room"
	"github.com/park285/cheese-arena/internal/rules"
)

// Broadcaster is the room.Sink that turns room events into frames for the room's
// fan-out group. It runs under the room lock and only queues frames.
type Broadcaster struct {
	hub *fanout.Hub[proto.Outbound]
	cat *msgcat.Catalog
}

func NewBroadcaster(hub *fanout.Hub[proto.Outbound], cat *msgcat.Catalog) *Broadcaster {
	return &Broadcaster{hub: hub, cat: cat}
}

func (b *Broadcaster) Hub() *fanout.Hub[proto.Outbound] { return b.hub }

func (b *Broadcaster) Publish(ev room.Event) {
	group := ev.RoomID()
	switch e := ev.(type) {
	case room.PlayerJoined:
		gs := proto.GameState(e.State)
		joined := proto.GameJoined{Success: true, PlayerColor: string(e.Color), RoomID: group, GameState: gs}
		notice := proto.PlayerJoined{PlayerName: e.Occupant.DisplayName(), PlayerColor: string(e.Color), RoomID: group, GameState: gs}
		b.hub.Deliver(group, splitBy(e.Occupant.ID, joined, notice))
	case room.SpectatorJoined:
		gs := proto.GameState(e.State)
		joined := proto.SpectatorJoined{RoomID: group, GameState: &gs, Demoted: e.Demoted}
		notice := proto.SpectatorJoined{PlayerName: e.Occupant.DisplayName()}
		b.hub.Deliver(group, splitBy(e.Occupant.ID, joined, notice))
	case room.PlayerLeft:
		b.hub.Broadcast(group, proto.PlayerLeft{PlayerName: e.Occupant.DisplayName(), Role: string(e.Role), GameState: proto.GameState(e.State)})
	case room.GameStarted:
		b.hub.Broadcast(group, proto.GameStarted{GameState: proto.GameState(e.State)})
	case room.MoveMade:
		b.hub.Broadcast(group, proto.MoveMade{Move: proto.MoveDTO(e.Move), GameState: proto.GameState(e.State)})
	case room.GameReset:
		b.hub.Broadcast(group, proto.GameReset{GameState: proto.GameState(e.State)})
	case room.GameOver:
		b.hub.Broadcast(group, proto.GameOver{
			Termination: string(e.Outcome.Termination),
			Winner:      string(e.Outcome.Winner),
			Result:      e.Outcome.PGNResult(),
			Message:     b.outcomeText(e),
			GameState:   proto.GameState(e.State),
		})
	case room.RoomClosed:
		msg := b.cat.Text("game.closed", map[string]any{"Room": group}, "Room "+group+" was closed.")
		b.hub.Broadcast(group, proto.GameEnded{RoomID: group, Message: msg})
		b.hub.Drop(group)
	}
}

// splitBy sends mine to the connections of identity and theirs to everyone else.
func splitBy(identity string, mine, theirs proto.Outbound) func(fanout.Subscriber[proto.Outbound]) (proto.Outbound, bool) {
	return func(s fanout.Subscriber[proto.Outbound]) (proto.Outbound, bool) {
		if s.Identity() == identity {
			return mine, true
		}
		return theirs, true
	}
}

func (b *Broadcaster) outcomeText(e room.GameOver) string {
	o := e.Outcome
	data := map[string]any{"Winner": "", "Loser": ""}
	if o.Winner.Valid() {
		data["Winner"] = seatName(e.State, o.Winner)
		data["Loser"] = seatName(e.State, o.Winner.Opponent())
		if e.Leaver != nil {
			data["Loser"] = e.Leaver.DisplayName()
		}
	}
	return b.cat.Text("game.ended."+string(o.Termination), data, string(o.Termination))
}

func seatName(st room.State, c rules.Color) string {
	if o := st.Seat(c); o != nil {
		return o.DisplayName()
	}
	if c == rules.White {
		return "White"
	}
	return "Black"
}
