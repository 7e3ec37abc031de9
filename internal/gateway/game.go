package gateway

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/proto"
	"github.com/park285/cheese-arena/internal/room"
	"github.com/park285/cheese-arena/internal/rules"
)

const joinAttempts = 3

func (g *Gateway) dispatchGame(_ context.Context, c *conn, in proto.Inbound) {
	var (
		roomID string
		err    error
	)
	switch m := in.(type) {
	case proto.JoinGame:
		roomID, err = m.Room, g.handleJoin(c, m)
	case proto.MakeMove:
		roomID, err = m.Room, g.handleMove(c, m)
	case proto.ResetGame:
		roomID, err = m.Room, g.handleReset(c, m)
	case proto.Resign:
		roomID, err = m.Room, g.handleResign(c, m)
	case proto.JoinChat, proto.LeaveChat, proto.SendMessage, proto.Typing:
		obslog.L().Warn("ws_drop_frame", zap.String("conn_id", c.id), zap.String("event", in.EventName()), zap.String("reason", "chat event on game channel"))
	}
	if err != nil {
		g.replyError(c, roomID, err)
	}
}

// handleJoin subscribes first so the requester sees its own confirmation, then joins.
// A room evicted between lookup and join is retried with a fresh one. The retrying
// connection may already hold that room's gameEnded frame; it is always followed by
// the gameJoined for the replacement room under the same id.
func (g *Gateway) handleJoin(c *conn, m proto.JoinGame) error {
	roomID := strings.TrimSpace(m.Room)
	if roomID == "" {
		return proto.ErrMalformed
	}
	if prev := c.currentRoom(); prev != "" && prev != roomID {
		g.detachGame(c)
	}

	name := strings.TrimSpace(m.PlayerName)
	if name == "" {
		name = c.ident.Name
	}
	who := room.Occupant{ID: c.ident.ID, Name: name}

	for range joinAttempts {
		r, created, err := g.reg.FindOrCreate(roomID)
		if err != nil {
			return err
		}
		c.swapRoom(roomID)
		g.games.Subscribe(roomID, c)

		res, err := r.Join(who, m.IsSpectator)
		if errors.Is(err, room.ErrRoomClosed) {
			continue
		}
		if err != nil {
			g.games.Unsubscribe(roomID, c.id)
			c.swapRoom("")
			return err
		}
		obslog.L().Info("room_join",
			zap.String("room_id", roomID),
			zap.String("identity", who.ID),
			zap.String("role", string(res.Role)),
			zap.String("color", string(res.Color)),
			zap.Bool("demoted", res.Demoted),
			zap.Bool("created", created),
		)
		return nil
	}
	g.games.Unsubscribe(roomID, c.id)
	c.swapRoom("")
	return room.ErrRoomClosed
}

func (g *Gateway) handleMove(c *conn, m proto.MakeMove) error {
	r, err := g.joined(c, m.Room)
	if err != nil {
		return err
	}
	res, err := r.AttemptMove(c.ident.ID, m.Move.Move())
	if err != nil {
		return err
	}
	obslog.L().Debug("room_move",
		zap.String("room_id", m.Room),
		zap.String("identity", c.ident.ID),
		zap.String("uci", res.Move.UCI()),
		zap.String("san", res.Move.SAN),
		zap.Int("ply", res.Move.Ply),
	)
	return nil
}

// handleReset is open to seated players only.
func (g *Gateway) handleReset(c *conn, m proto.ResetGame) error {
	r, err := g.joined(c, m.Room)
	if err != nil {
		return err
	}
	st := r.Snapshot()
	if !isSeated(st, c.ident.ID) {
		return room.ErrNotAPlayer
	}
	_, err = r.Reset()
	return err
}

func (g *Gateway) handleResign(c *conn, m proto.Resign) error {
	r, err := g.joined(c, m.Room)
	if err != nil {
		return err
	}
	_, err = r.Resign(c.ident.ID)
	return err
}

// joined resolves the room a connection is subscribed to. Rooms are never created here.
func (g *Gateway) joined(c *conn, roomID string) (*room.Room, error) {
	roomID = strings.TrimSpace(roomID)
	if c.currentRoom() != roomID {
		return nil, ErrNotJoined
	}
	return g.reg.Find(roomID)
}

// detachGame drops the connection's room subscription. The identity leaves the room
// only when none of its other connections are still attached; the last one out
// evicts the room.
func (g *Gateway) detachGame(c *conn) {
	roomID := c.swapRoom("")
	if roomID == "" {
		return
	}
	g.games.Unsubscribe(roomID, c.id)
	if g.games.HasIdentity(roomID, c.ident.ID) {
		return
	}
	r, err := g.reg.Find(roomID)
	if err != nil {
		return
	}
	res := r.Leave(c.ident.ID)
	if res.Role == room.RoleNone {
		return
	}
	obslog.L().Info("room_leave",
		zap.String("room_id", roomID),
		zap.String("identity", c.ident.ID),
		zap.String("role", string(res.Role)),
		zap.Bool("abandoned", res.Abandoned),
		zap.Bool("empty", res.Empty),
	)
	if res.Empty && g.reg.RemoveIfEmpty(roomID) {
		obslog.L().Info("room_evicted", zap.String("room_id", roomID))
	}
}

func isSeated(st room.State, id string) bool {
	for _, c := range []rules.Color{rules.White, rules.Black} {
		if o := st.Seat(c); o != nil && o.ID == id {
			return true
		}
	}
	return false
}
