package store

import (
	"context"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/park285/cheese-arena/internal/room"
	"github.com/park285/cheese-arena/internal/rules"
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

const (
	ErrNotFound  staticErr = "game_not_found"
	ErrStaleMove staticErr = "stale_move"
)

const gameTTL = 24 * time.Hour

type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Record is the persisted form of one room's game.
type Record struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	FEN         string    `json:"fen"`
	White       *Player   `json:"white,omitempty"`
	Black       *Player   `json:"black,omitempty"`
	MovesUCI    []string  `json:"movesUci"`
	MovesSAN    []string  `json:"movesSan"`
	Termination string    `json:"termination,omitempty"`
	Winner      string    `json:"winner,omitempty"`
	Result      string    `json:"result,omitempty"`
	ECO         string    `json:"eco,omitempty"`
	Opening     string    `json:"opening,omitempty"`
	Version     uint64    `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (r *Record) Open() bool { return r.Status != string(room.StatusTerminated) }

// MoveEntry is one accepted move. Ply must extend the stored history by exactly one.
type MoveEntry struct {
	Ply     int
	UCI     string
	SAN     string
	FEN     string
	Version uint64
	At      time.Time
}

// Patch mutates a loaded record inside the store's transaction.
type Patch func(*Record)

// GameStore keeps the live state of each room outside the process.
type GameStore interface {
	Create(ctx context.Context, rec *Record) error
	Find(ctx context.Context, id string) (*Record, error)
	Update(ctx context.Context, id string, patch Patch) error
	AppendMove(ctx context.Context, id string, mv MoveEntry) error
	Remove(ctx context.Context, id string) error
	Lobby(ctx context.Context) ([]string, error)
	Close() error
}

// RecordFromState snapshots a room state.
func RecordFromState(st room.State) *Record {
	rec := &Record{
		ID:        st.ID,
		Status:    string(st.Status),
		FEN:       st.FEN,
		White:     playerOf(st.White),
		Black:     playerOf(st.Black),
		MovesUCI:  lo.Map(st.Moves, func(m rules.AppliedMove, _ int) string { return m.UCI() }),
		MovesSAN:  lo.Map(st.Moves, func(m rules.AppliedMove, _ int) string { return m.SAN }),
		ECO:       st.ECO,
		Opening:   st.Opening,
		Version:   st.Version,
		CreatedAt: st.CreatedAt,
		UpdatedAt: st.UpdatedAt,
	}
	applyOutcome(rec, st.Outcome)
	return rec
}

func applyOutcome(rec *Record, o rules.Outcome) {
	rec.Termination = string(o.Termination)
	rec.Winner = string(o.Winner)
	rec.Result = ""
	if o.Terminal() {
		rec.Result = o.PGNResult()
	}
}

func playerOf(o *room.Occupant) *Player {
	if o == nil {
		return nil
	}
	return &Player{ID: o.ID, Name: o.DisplayName()}
}

func (p *Player) name() string {
	if p == nil {
		return "?"
	}
	return p.Name
}

func gameKey(id string) string { return "arena:game:" + strings.TrimSpace(id) }

const lobbyKey = "arena:lobby"
