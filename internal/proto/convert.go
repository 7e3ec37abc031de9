package proto

import (
	"github.com/samber/lo"

	"github.com/park285/cheese-arena/internal/room"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

// GameState converts a room snapshot to its wire form.
func GameState(st room.State) chessdto.GameState {
	return chessdto.GameState{
		RoomID:      st.ID,
		Status:      string(st.Status),
		FEN:         st.FEN,
		Turn:        string(st.Turn),
		InCheck:     st.InCheck,
		IsGameOver:  st.Outcome.Terminal(),
		Termination: string(st.Outcome.Termination),
		Winner:      string(st.Outcome.Winner),
		Result:      st.Outcome.PGNResult(),
		Moves:       lo.Map(st.Moves, func(m rules.AppliedMove, _ int) chessdto.MoveDTO { return MoveDTO(m) }),
		White:       playerPtr(st.White),
		Black:       playerPtr(st.Black),
		Spectators:  lo.Map(st.Spectators, func(o room.Occupant, _ int) chessdto.Player { return player(o) }),
		ECO:         st.ECO,
		Opening:     st.Opening,
		Version:     st.Version,
		UpdatedAt:   st.UpdatedAt,
	}
}

func MoveDTO(m rules.AppliedMove) chessdto.MoveDTO {
	return chessdto.MoveDTO{
		From:      m.From,
		To:        m.To,
		Promotion: m.Promotion,
		SAN:       m.SAN,
		UCI:       m.UCI(),
		Color:     string(m.Color),
		Ply:       m.Ply,
	}
}

func Summary(s room.Summary) chessdto.RoomSummary {
	return chessdto.RoomSummary{
		ID:         s.ID,
		Status:     string(s.Status),
		White:      s.White,
		Black:      s.Black,
		Spectators: s.Spectators,
		Moves:      s.Moves,
	}
}

func player(o room.Occupant) chessdto.Player {
	return chessdto.Player{ID: o.ID, Name: o.DisplayName()}
}

func playerPtr(o *room.Occupant) *chessdto.Player {
	if o == nil {
		return nil
	}
	return lo.ToPtr(player(*o))
}

// Move converts a validated wire move to the engine form.
func (m MoveSpec) Move() rules.Move {
	return rules.Move{From: m.From, To: m.To, Promotion: m.Promotion}
}
