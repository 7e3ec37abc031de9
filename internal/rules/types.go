package rules

import (
	"fmt"
	"strings"
)

// Color is the side to move or the owner of a seat.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) Valid() bool { return c == White || c == Black }

// Move is a candidate move in coordinate form (e2 -> e4, optional promotion piece).
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// UCI renders the move as e2e4 / e7e8q.
func (m Move) UCI() string {
	return strings.ToLower(strings.TrimSpace(m.From) + strings.TrimSpace(m.To) + strings.TrimSpace(m.Promotion))
}

func (m Move) String() string { return m.UCI() }

// ParseUCI splits a UCI move string into its parts.
func ParseUCI(s string) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 4 && len(s) != 5 {
		return Move{}, fmt.Errorf("parse uci %q: %w", s, ErrIllegalMove)
	}
	m := Move{From: s[0:2], To: s[2:4]}
	if len(s) == 5 {
		m.Promotion = s[4:5]
	}
	if !validSquare(m.From) || !validSquare(m.To) || !validPromotion(m.Promotion) {
		return Move{}, fmt.Errorf("parse uci %q: %w", s, ErrIllegalMove)
	}
	return m, nil
}

func validSquare(sq string) bool {
	return len(sq) == 2 && sq[0] >= 'a' && sq[0] <= 'h' && sq[1] >= '1' && sq[1] <= '8'
}

func validPromotion(p string) bool {
	switch p {
	case "", "q", "r", "b", "n":
		return true
	default:
		return false
	}
}

// AppliedMove is a move the engine accepted, with its SAN rendering.
type AppliedMove struct {
	Move
	SAN   string `json:"san"`
	Color Color  `json:"color"`
	Ply   int    `json:"ply"`
}

// Termination names how a game ended. Every draw kind is distinct.
type Termination string

const (
	NotTerminated        Termination = ""
	Checkmate            Termination = "checkmate"
	Stalemate            Termination = "stalemate"
	ThreefoldRepetition  Termination = "threefold_repetition"
	FivefoldRepetition   Termination = "fivefold_repetition"
	FiftyMoveRule        Termination = "fifty_move_rule"
	SeventyFiveMoveRule  Termination = "seventy_five_move_rule"
	InsufficientMaterial Termination = "insufficient_material"
	Resignation          Termination = "resignation"
	Abandonment          Termination = "abandonment"
)

// Outcome is the result of a game. Winner is empty for draws and unfinished games.
type Outcome struct {
	Termination Termination `json:"termination,omitempty"`
	Winner      Color       `json:"winner,omitempty"`
}

func (o Outcome) Terminal() bool { return o.Termination != NotTerminated }

func (o Outcome) Draw() bool { return o.Terminal() && o.Winner == "" }

// PGNResult maps the outcome to a PGN result token.
func (o Outcome) PGNResult() string {
	switch {
	case !o.Terminal():
		return "*"
	case o.Winner == White:
		return "1-0"
	case o.Winner == Black:
		return "0-1"
	default:
		return "1/2-1/2"
	}
}

// Status is everything derived from a board.
type Status struct {
	FEN     string  `json:"fen"`
	Turn    Color   `json:"turn"`
	InCheck bool    `json:"inCheck"`
	Ply     int     `json:"ply"`
	Outcome Outcome `json:"outcome"`
}
