package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

const ErrIllegalMove staticErr = "illegal move"

// Board is an opaque position handle. Engines never mutate a Board they are given.
type Board struct {
	game *nchess.Game
}

// FEN returns the serialized position.
func (b *Board) FEN() string {
	if b == nil || b.game == nil {
		return ""
	}
	return b.game.FEN()
}

// Engine is the move-legality and state-derivation authority a Room delegates to.
type Engine interface {
	NewBoard() *Board
	IsLegal(b *Board, m Move) bool
	Apply(b *Board, m Move) (*Board, AppliedMove, error)
	LegalMoves(b *Board, from string) []AppliedMove
	Status(b *Board) Status
	Replay(moves []Move) (*Board, error)
	Opening(b *Board) (eco, title string)
}

// ChessEngine implements Engine on top of corentings/chess.
type ChessEngine struct {
	book *opening.BookECO
}

func NewEngine() *ChessEngine {
	return &ChessEngine{book: opening.NewBookECO()}
}

func (e *ChessEngine) NewBoard() *Board {
	return &Board{game: nchess.NewGame()}
}

// FromFEN starts a board from an arbitrary position.
func (e *ChessEngine) FromFEN(fen string) (*Board, error) {
	opt, err := nchess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	return &Board{game: nchess.NewGame(opt)}, nil
}

func (e *ChessEngine) IsLegal(b *Board, m Move) bool {
	_, _, err := e.Apply(b, m)
	return err == nil
}

// Apply plays m on a copy of b. Claimable draws (threefold, fifty-move) are claimed at once.
func (e *ChessEngine) Apply(b *Board, m Move) (*Board, AppliedMove, error) {
	if b == nil || b.game == nil {
		return nil, AppliedMove{}, fmt.Errorf("apply %s: nil board", m.UCI())
	}
	if _, err := ParseUCI(m.UCI()); err != nil {
		return nil, AppliedMove{}, err
	}
	if b.game.Outcome() != nchess.NoOutcome {
		return nil, AppliedMove{}, fmt.Errorf("apply %s: game finished: %w", m.UCI(), ErrIllegalMove)
	}

	game := b.game.Clone()
	pos := game.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, m.UCI())
	if err != nil {
		return nil, AppliedMove{}, fmt.Errorf("decode %s: %w", m.UCI(), ErrIllegalMove)
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	mover := colorFrom(pos.Turn())
	if err := game.Move(mv, nil); err != nil {
		return nil, AppliedMove{}, fmt.Errorf("move %s: %w", m.UCI(), ErrIllegalMove)
	}
	claimDraws(game)

	applied := AppliedMove{
		Move:  Move{From: m.From, To: m.To, Promotion: m.Promotion},
		SAN:   san,
		Color: mover,
		Ply:   len(game.Moves()),
	}
	return &Board{game: game}, applied, nil
}

// LegalMoves lists every legal move leaving the given square.
func (e *ChessEngine) LegalMoves(b *Board, from string) []AppliedMove {
	if b == nil || b.game == nil || b.game.Outcome() != nchess.NoOutcome {
		return nil
	}
	from = strings.ToLower(strings.TrimSpace(from))
	pos := b.game.Position()
	mover := colorFrom(pos.Turn())
	ply := len(b.game.Moves()) + 1

	var out []AppliedMove
	for _, valid := range b.game.ValidMoves() {
		if valid.S1().String() != from {
			continue
		}
		uci := valid.S1().String() + valid.S2().String()
		if valid.Promo() != nchess.NoPieceType {
			uci += strings.ToLower(valid.Promo().String())
		}
		mv, err := nchess.UCINotation{}.Decode(pos, uci)
		if err != nil {
			continue
		}
		parsed, err := ParseUCI(uci)
		if err != nil {
			continue
		}
		out = append(out, AppliedMove{
			Move:  parsed,
			SAN:   nchess.AlgebraicNotation{}.Encode(pos, mv),
			Color: mover,
			Ply:   ply,
		})
	}
	return out
}

func (e *ChessEngine) Status(b *Board) Status {
	if b == nil || b.game == nil {
		return Status{}
	}
	st := Status{
		FEN:     b.game.FEN(),
		Turn:    colorFrom(b.game.Position().Turn()),
		Ply:     len(b.game.Moves()),
		Outcome: outcomeOf(b.game),
	}
	if moves := b.game.Moves(); len(moves) > 0 {
		st.InCheck = moves[len(moves)-1].HasTag(nchess.Check)
	}
	return st
}

// Replay rebuilds a board from the start position.
func (e *ChessEngine) Replay(moves []Move) (*Board, error) {
	b := e.NewBoard()
	for i, m := range moves {
		next, _, err := e.Apply(b, m)
		if err != nil {
			return nil, fmt.Errorf("replay ply %d: %w", i+1, err)
		}
		b = next
	}
	return b, nil
}

func (e *ChessEngine) Opening(b *Board) (string, string) {
	if e == nil || e.book == nil || b == nil || b.game == nil {
		return "", ""
	}
	if o := e.book.Find(b.game.Moves()); o != nil {
		return o.Code(), o.Title()
	}
	return "", ""
}

func claimDraws(game *nchess.Game) {
	if game.Outcome() != nchess.NoOutcome {
		return
	}
	for _, m := range game.EligibleDraws() {
		if m == nchess.ThreefoldRepetition || m == nchess.FiftyMoveRule {
			_ = game.Draw(m)
			return
		}
	}
}

func outcomeOf(game *nchess.Game) Outcome {
	var o Outcome
	switch game.Outcome() {
	case nchess.NoOutcome:
		return o
	case nchess.WhiteWon:
		o.Winner = White
	case nchess.BlackWon:
		o.Winner = Black
	}
	switch game.Method() {
	case nchess.Checkmate:
		o.Termination = Checkmate
	case nchess.Stalemate:
		o.Termination = Stalemate
	case nchess.ThreefoldRepetition:
		o.Termination = ThreefoldRepetition
	case nchess.FivefoldRepetition:
		o.Termination = FivefoldRepetition
	case nchess.FiftyMoveRule:
		o.Termination = FiftyMoveRule
	case nchess.SeventyFiveMoveRule:
		o.Termination = SeventyFiveMoveRule
	case nchess.InsufficientMaterial:
		o.Termination = InsufficientMaterial
	case nchess.Resignation:
		o.Termination = Resignation
	default:
		o.Termination = Termination(strings.ToLower(game.Method().String()))
	}
	return o
}

func colorFrom(c nchess.Color) Color {
	if c == nchess.White {
		return White
	}
	return Black
}
