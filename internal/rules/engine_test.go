package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMove(t *testing.T, s string) Move {
	t.Helper()
	m, err := ParseUCI(s)
	require.NoError(t, err)
	return m
}

func play(t *testing.T, e *ChessEngine, b *Board, moves ...string) *Board {
	t.Helper()
	for _, s := range moves {
		next, _, err := e.Apply(b, mustMove(t, s))
		require.NoError(t, err, "move %s", s)
		b = next
	}
	return b
}

func TestParseUCI(t *testing.T) {
	tests := []struct {
		in      string
		want    Move
		wantErr bool
	}{
		{in: "e2e4", want: Move{From: "e2", To: "e4"}},
		{in: " E7E8Q ", want: Move{From: "e7", To: "e8", Promotion: "q"}},
		{in: "e2", wantErr: true},
		{in: "i2e4", wantErr: true},
		{in: "e7e8k", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseUCI(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrIllegalMove))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	e := NewEngine()
	start := e.NewBoard()
	before := start.FEN()

	next, applied, err := e.Apply(start, Move{From: "e2", To: "e4"})
	require.NoError(t, err)
	assert.Equal(t, before, start.FEN())
	assert.NotEqual(t, before, next.FEN())
	assert.Equal(t, "e4", applied.SAN)
	assert.Equal(t, White, applied.Color)
	assert.Equal(t, 1, applied.Ply)
	assert.Equal(t, Black, e.Status(next).Turn)
}

func TestIllegalMoveLeavesBoard(t *testing.T) {
	e := NewEngine()
	b := e.NewBoard()

	_, _, err := e.Apply(b, Move{From: "e2", To: "e5"})
	require.ErrorIs(t, err, ErrIllegalMove)
	assert.False(t, e.IsLegal(b, Move{From: "e2", To: "e5"}))
	assert.True(t, e.IsLegal(b, Move{From: "g1", To: "f3"}))

	hints := e.LegalMoves(b, "e2")
	sans := make([]string, 0, len(hints))
	for _, h := range hints {
		sans = append(sans, h.SAN)
	}
	assert.ElementsMatch(t, []string{"e3", "e4"}, sans)
	assert.Empty(t, e.LegalMoves(b, "e4"))
}

func TestPromotionHints(t *testing.T) {
	e := NewEngine()
	b, err := e.FromFEN("8/P6k/8/8/8/8/8/K7 w - - 0 1")
	require.NoError(t, err)

	hints := e.LegalMoves(b, "a7")
	promos := make([]string, 0, len(hints))
	for _, h := range hints {
		promos = append(promos, h.Promotion)
	}
	assert.ElementsMatch(t, []string{"q", "r", "b", "n"}, promos)
}

func TestTerminations(t *testing.T) {
	e := NewEngine()

	t.Run("checkmate", func(t *testing.T) {
		b := play(t, e, e.NewBoard(), "f2f3", "e7e5", "g2g4", "d8h4")
		st := e.Status(b)
		assert.Equal(t, Checkmate, st.Outcome.Termination)
		assert.Equal(t, Black, st.Outcome.Winner)
		assert.True(t, st.InCheck)
		assert.Equal(t, "0-1", st.Outcome.PGNResult())
	})

	t.Run("stalemate", func(t *testing.T) {
		b, err := e.FromFEN("7k/8/6Q1/8/8/8/8/K7 w - - 0 1")
		require.NoError(t, err)
		b = play(t, e, b, "g6f7")
		st := e.Status(b)
		assert.Equal(t, Stalemate, st.Outcome.Termination)
		assert.True(t, st.Outcome.Draw())
	})

	t.Run("insufficient material", func(t *testing.T) {
		b, err := e.FromFEN("8/8/8/8/8/8/1r6/K6k w - - 0 1")
		require.NoError(t, err)
		b = play(t, e, b, "a1b2")
		assert.Equal(t, InsufficientMaterial, e.Status(b).Outcome.Termination)
	})

	t.Run("threefold repetition", func(t *testing.T) {
		b := play(t, e, e.NewBoard(),
			"g1f3", "g8f6", "f3g1", "f6g8",
			"g1f3", "g8f6", "f3g1", "f6g8",
		)
		st := e.Status(b)
		assert.Equal(t, ThreefoldRepetition, st.Outcome.Termination)
		assert.Equal(t, "1/2-1/2", st.Outcome.PGNResult())

		_, _, err := e.Apply(b, Move{From: "e2", To: "e4"})
		assert.ErrorIs(t, err, ErrIllegalMove)
	})
}

func TestReplayRoundTrip(t *testing.T) {
	e := NewEngine()
	ucis := []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1b5", "a7a6"}
	b := play(t, e, e.NewBoard(), ucis...)

	moves := make([]Move, 0, len(ucis))
	for _, s := range ucis {
		moves = append(moves, mustMove(t, s))
	}
	replayed, err := e.Replay(moves)
	require.NoError(t, err)
	assert.Equal(t, b.FEN(), replayed.FEN())
	assert.Equal(t, len(ucis), e.Status(replayed).Ply)

	eco, title := e.Opening(replayed)
	assert.NotEmpty(t, eco)
	assert.NotEmpty(t, title)

	_, err = e.Replay([]Move{{From: "e2", To: "e5"}})
	assert.ErrorIs(t, err, ErrIllegalMove)
}
