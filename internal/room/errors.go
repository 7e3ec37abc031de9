package room

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/park285/cheese-arena/internal/rules"
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

const (
	ErrRoomFull      staticErr = "room_full"
	ErrAlreadySeated staticErr = "already_seated"
	ErrSpectating    staticErr = "already_spectating"
	ErrNotAPlayer    staticErr = "not_a_player"
	ErrNotYourTurn   staticErr = "not_your_turn"
	ErrIllegalMove   staticErr = "illegal_move"
	ErrGameNotActive staticErr = "game_not_active"
	ErrRoomNotFound  staticErr = "room_not_found"
	ErrRoomClosed    staticErr = "room_closed"
	ErrBlankRoomID   staticErr = "invalid_room"
)

// IllegalMoveError is returned by AttemptMove for a move the engine rejected.
// Hints lists every legal move from the attempted origin square.
type IllegalMoveError struct {
	Move  rules.Move
	Hints []rules.AppliedMove
}

func (e *IllegalMoveError) Error() string {
	if len(e.Hints) == 0 {
		return fmt.Sprintf("illegal move %s", e.Move.UCI())
	}
	return fmt.Sprintf("illegal move %s (legal from %s: %s)", e.Move.UCI(), e.Move.From, strings.Join(e.HintSANs(), ", "))
}

func (e *IllegalMoveError) Is(target error) bool { return target == ErrIllegalMove }

// HintSANs returns the hints in SAN form.
func (e *IllegalMoveError) HintSANs() []string {
	return lo.Map(e.Hints, func(h rules.AppliedMove, _ int) string { return h.SAN })
}

// Code maps an error to the stable wire code. Unknown errors map to "internal".
func Code(err error) string {
	var se staticErr
	switch {
	case err == nil:
		return ""
	case errors.As(err, new(*IllegalMoveError)):
		return string(ErrIllegalMove)
	case errors.As(err, &se):
		return string(se)
	default:
		return "internal"
	}
}
