package gateway

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/chat"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/proto"
	"github.com/park285/cheese-arena/internal/room"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

const ErrNotJoined staticErr = "not_joined"

// replyError sends the error frame for err to c. A full send buffer drops it; the
// connection stays open and the hub evicts it on the next broadcast if it stays full.
func (g *Gateway) replyError(c *conn, roomID string, err error) {
	frame := g.errorFrame(c, roomID, err)
	if !c.Send(frame) {
		obslog.L().Warn("ws_error_frame_dropped",
			zap.String("conn_id", c.id),
			zap.String("room_id", roomID),
			zap.String("code", frame.Code),
		)
	}
}

// errorFrame converts a handler error into the scoped error frame for the sender.
func (g *Gateway) errorFrame(c *conn, roomID string, err error) proto.Error {
	code := room.Code(err)
	data := map[string]any{"Room": roomID}
	var de chessdto.DomainError

	var ill *room.IllegalMoveError
	switch {
	case errors.As(err, &ill):
		hints := ill.HintSANs()
		data["Move"] = ill.Move.UCI()
		data["From"] = ill.Move.From
		data["Hints"] = strings.Join(hints, ", ")
		de.ValidMoves = hints
	case errors.Is(err, ErrNotJoined):
		code = string(ErrNotJoined)
	case errors.Is(err, proto.ErrMalformed):
		code = "malformed"
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrTooLong):
		code = "rejected"
	case errors.Is(err, room.ErrRoomClosed):
		de.Retryable = true
	}
	if code == "internal" {
		obslog.L().Error("ws_handler_error", zap.String("conn_id", c.id), zap.String("room_id", roomID), zap.Error(err))
	}
	de.Code = code
	de.Message = g.cat.Text("error."+code, data, code)
	return proto.Error{DomainError: de}
}
