package gateway

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/chat"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/proto"
)

func chatGroup(room string) string { return "chat:" + strings.TrimSpace(room) }

func (g *Gateway) dispatchChat(ctx context.Context, c *conn, in proto.Inbound) {
	var (
		roomID string
		err    error
	)
	switch m := in.(type) {
	case proto.JoinChat:
		g.handleJoinChat(ctx, c, m)
	case proto.LeaveChat:
		g.chats.Unsubscribe(chatGroup(m.Room), c.id)
	case proto.SendMessage:
		roomID, err = m.GameID, g.handleSendMessage(ctx, c, m)
	case proto.Typing:
		roomID, err = m.Room, g.handleTyping(c, m)
	case proto.JoinGame, proto.MakeMove, proto.ResetGame, proto.Resign:
		obslog.L().Warn("ws_drop_frame", zap.String("conn_id", c.id), zap.String("event", in.EventName()), zap.String("reason", "game event on chat channel"))
	}
	if err != nil {
		g.replyError(c, roomID, err)
	}
}

// handleJoinChat confirms the join and replays retained history to this connection only.
func (g *Gateway) handleJoinChat(ctx context.Context, c *conn, m proto.JoinChat) {
	g.chats.Subscribe(chatGroup(m.Room), c)
	c.Send(proto.ChatJoined{Room: m.Room})

	history, err := g.chat.Recent(ctx, m.Room)
	if err != nil {
		obslog.L().Warn("chat_history_read_failed", zap.String("room_id", m.Room), zap.Error(err))
		return
	}
	for _, msg := range history {
		c.Send(newMessage(msg, ""))
	}
}

func (g *Gateway) handleSendMessage(ctx context.Context, c *conn, m proto.SendMessage) error {
	group := chatGroup(m.GameID)
	if !g.isChatMember(group, c.id) {
		return ErrNotJoined
	}
	msg, err := g.chat.Post(ctx, m.GameID, chat.Author{ID: c.ident.ID, Name: c.ident.Name}, m.Message)
	if err != nil {
		return err
	}
	g.chats.Broadcast(group, newMessage(msg, c.id))
	return nil
}

func (g *Gateway) handleTyping(c *conn, m proto.Typing) error {
	group := chatGroup(m.Room)
	if !g.isChatMember(group, c.id) {
		return ErrNotJoined
	}
	user := strings.TrimSpace(m.User)
	if user == "" {
		user = c.ident.Name
	}
	g.chats.BroadcastExcept(group, c.id, proto.UserTyping{User: user, SocketID: c.id})
	return nil
}

func (g *Gateway) isChatMember(group, connID string) bool {
	return slices.Contains(g.chats.Groups(connID), group)
}

func (g *Gateway) detachChat(c *conn) {
	g.chats.UnsubscribeAll(c.id)
}

func newMessage(m chat.Message, socketID string) proto.NewMessage {
	return proto.NewMessage{
		GameID:   m.Room,
		UserID:   m.UserID,
		UserName: m.UserName,
		Message:  m.Text,
		SentAt:   m.SentAt,
		SocketID: socketID,
	}
}
