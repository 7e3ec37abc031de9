package room

import (
	"errors"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/park285/cheese-arena/internal/rules"
)

// Room is the authoritative state of one game: board, history, seats and spectators.
// Every operation runs under the room mutex and publishes its events before releasing it,
// so all observers see one total order per room.
type Room struct {
	id     string
	engine rules.Engine
	sink   Sink
	now    func() time.Time

	mu         sync.Mutex
	board      *rules.Board
	history    []rules.AppliedMove
	white      *Occupant
	black      *Occupant
	spectators []Occupant
	status     Status
	outcome    rules.Outcome
	closed     bool
	version    uint64
	createdAt  time.Time
	updatedAt  time.Time
}

func newRoom(id string, engine rules.Engine, sink Sink, now func() time.Time) *Room {
	if sink == nil {
		sink = nopSink{}
	}
	if now == nil {
		now = time.Now
	}
	ts := now()
	return &Room{
		id:        id,
		engine:    engine,
		sink:      sink,
		now:       now,
		board:     engine.NewBoard(),
		status:    StatusWaiting,
		createdAt: ts,
		updatedAt: ts,
	}
}

func (r *Room) ID() string { return r.id }

// JoinAsPlayer seats o in the first free seat, white first.
func (r *Room) JoinAsPlayer(o Occupant) (rules.Color, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrRoomClosed
	}
	c, started, err := r.takeSeatLocked(o)
	if err != nil {
		return "", err
	}
	r.publishSeatedLocked(o, c, started)
	return c, nil
}

// JoinAsSpectator adds o to the spectators. Repeated calls are no-ops.
func (r *Room) JoinAsSpectator(o Occupant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	if r.seatOfLocked(o.ID) != "" {
		return ErrAlreadySeated
	}
	if r.addSpectatorLocked(o) {
		r.touchLocked()
	}
	r.sink.Publish(SpectatorJoined{base: base{r.id}, Occupant: o, State: r.snapshotLocked()})
	return nil
}

// Join is the entry point used by connections. A player request on a room with both
// seats taken demotes the caller to spectator instead of failing. A caller who already
// holds a seat keeps it; a spectator asking to play is promoted when a seat is free.
func (r *Room) Join(o Occupant, asSpectator bool) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return JoinResult{}, ErrRoomClosed
	}

	if c := r.seatOfLocked(o.ID); c != "" {
		r.sink.Publish(PlayerJoined{base: base{r.id}, Occupant: o, Color: c, State: r.snapshotLocked()})
		return JoinResult{Role: RolePlayer, Color: c}, nil
	}

	if !asSpectator {
		if r.isSpectatorLocked(o.ID) && r.freeSeatLocked() != "" {
			r.removeSpectatorLocked(o.ID)
		}
		c, started, err := r.takeSeatLocked(o)
		switch {
		case err == nil:
			r.publishSeatedLocked(o, c, started)
			return JoinResult{Role: RolePlayer, Color: c, Started: started}, nil
		case errors.Is(err, ErrRoomFull), errors.Is(err, ErrSpectating):
		default:
			return JoinResult{}, err
		}
	}

	if r.addSpectatorLocked(o) {
		r.touchLocked()
	}
	r.sink.Publish(SpectatorJoined{base: base{r.id}, Occupant: o, Demoted: !asSpectator, State: r.snapshotLocked()})
	return JoinResult{Role: RoleSpectator, Demoted: !asSpectator}, nil
}

// Leave detaches id from whatever role it holds. A seated player leaving an active
// game ends it by abandonment in the opponent's favour.
func (r *Room) Leave(id string) LeaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res LeaveResult
	var who Occupant
	switch c := r.seatOfLocked(id); {
	case c != "":
		who = *r.occupantAtLocked(c)
		r.setSeatLocked(c, nil)
		res.Role, res.Color = RolePlayer, c
		if r.status == StatusActive {
			r.status = StatusTerminated
			r.outcome = rules.Outcome{Termination: rules.Abandonment, Winner: c.Opponent()}
			res.Abandoned = true
		}
	case r.isSpectatorLocked(id):
		who, _ = lo.Find(r.spectators, func(s Occupant) bool { return s.ID == id })
		r.removeSpectatorLocked(id)
		res.Role = RoleSpectator
	default:
		res.Empty = r.occupantsLocked() == 0
		return res
	}

	r.touchLocked()
	res.Empty = r.occupantsLocked() == 0
	if !r.closed {
		st := r.snapshotLocked()
		r.sink.Publish(PlayerLeft{base: base{r.id}, Occupant: who, Role: res.Role, State: st})
		if res.Abandoned {
			r.sink.Publish(GameOver{base: base{r.id}, Outcome: r.outcome, State: st, Leaver: &who})
		}
	}
	return res
}

// AttemptMove validates and applies a move for the identity's seat.
func (r *Room) AttemptMove(id string, m rules.Move) (MoveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return MoveResult{}, ErrRoomClosed
	}
	c := r.seatOfLocked(id)
	if c == "" {
		return MoveResult{}, ErrNotAPlayer
	}
	if r.status != StatusActive {
		return MoveResult{}, ErrGameNotActive
	}
	if r.engine.Status(r.board).Turn != c {
		return MoveResult{}, ErrNotYourTurn
	}

	next, applied, err := r.engine.Apply(r.board, m)
	if err != nil {
		return MoveResult{}, &IllegalMoveError{Move: m, Hints: r.engine.LegalMoves(r.board, m.From)}
	}
	r.board = next
	r.history = append(r.history, applied)
	if out := r.engine.Status(next).Outcome; out.Terminal() {
		r.status = StatusTerminated
		r.outcome = out
	}
	r.touchLocked()

	st := r.snapshotLocked()
	r.sink.Publish(MoveMade{base: base{r.id}, Actor: *r.occupantAtLocked(c), Move: applied, State: st})
	if r.status == StatusTerminated {
		r.sink.Publish(GameOver{base: base{r.id}, Outcome: r.outcome, State: st})
	}
	return MoveResult{Move: applied, State: st}, nil
}

// Resign ends an active game in the opponent's favour.
func (r *Room) Resign(id string) (rules.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return rules.Outcome{}, ErrRoomClosed
	}
	c := r.seatOfLocked(id)
	if c == "" {
		return rules.Outcome{}, ErrNotAPlayer
	}
	if r.status != StatusActive {
		return rules.Outcome{}, ErrGameNotActive
	}
	r.status = StatusTerminated
	r.outcome = rules.Outcome{Termination: rules.Resignation, Winner: c.Opponent()}
	r.touchLocked()
	r.sink.Publish(GameOver{base: base{r.id}, Outcome: r.outcome, State: r.snapshotLocked()})
	return r.outcome, nil
}

// Reset restores the start position and clears history. Occupants stay.
func (r *Room) Reset() (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return State{}, ErrRoomClosed
	}
	r.board = r.engine.NewBoard()
	r.history = nil
	r.outcome = rules.Outcome{}
	r.status = StatusWaiting
	if r.white != nil && r.black != nil {
		r.status = StatusActive
	}
	r.touchLocked()
	st := r.snapshotLocked()
	r.sink.Publish(GameReset{base: base{r.id}, State: st})
	return st, nil
}

func (r *Room) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Occupants returns the number of attached identities.
func (r *Room) Occupants() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.occupantsLocked()
}

// close marks the room closed and publishes RoomClosed. With ifEmpty set it refuses
// to close a room that still has occupants.
func (r *Room) close(ifEmpty bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return !ifEmpty || r.occupantsLocked() == 0
	}
	if ifEmpty && r.occupantsLocked() > 0 {
		return false
	}
	r.closed = true
	r.touchLocked()
	r.sink.Publish(RoomClosed{base: base{r.id}, State: r.snapshotLocked()})
	return true
}

func (r *Room) summary() (Summary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Summary{}, false
	}
	s := Summary{ID: r.id, Status: r.status, Spectators: len(r.spectators), Moves: len(r.history)}
	if r.white != nil {
		s.White = r.white.DisplayName()
	}
	if r.black != nil {
		s.Black = r.black.DisplayName()
	}
	return s, true
}

func (r *Room) takeSeatLocked(o Occupant) (rules.Color, bool, error) {
	if r.seatOfLocked(o.ID) != "" {
		return "", false, ErrAlreadySeated
	}
	if r.isSpectatorLocked(o.ID) {
		return "", false, ErrSpectating
	}
	c := r.freeSeatLocked()
	if c == "" {
		return "", false, ErrRoomFull
	}
	seated := o
	r.setSeatLocked(c, &seated)
	started := false
	if r.white != nil && r.black != nil && r.status == StatusWaiting {
		r.status = StatusActive
		started = true
	}
	r.touchLocked()
	return c, started, nil
}

func (r *Room) publishSeatedLocked(o Occupant, c rules.Color, started bool) {
	st := r.snapshotLocked()
	r.sink.Publish(PlayerJoined{base: base{r.id}, Occupant: o, Color: c, State: st})
	if started {
		r.sink.Publish(GameStarted{base: base{r.id}, State: st})
	}
}

func (r *Room) freeSeatLocked() rules.Color {
	switch {
	case r.white == nil:
		return rules.White
	case r.black == nil:
		return rules.Black
	default:
		return ""
	}
}

func (r *Room) seatOfLocked(id string) rules.Color {
	switch {
	case r.white != nil && r.white.ID == id:
		return rules.White
	case r.black != nil && r.black.ID == id:
		return rules.Black
	default:
		return ""
	}
}

func (r *Room) occupantAtLocked(c rules.Color) *Occupant {
	if c == rules.White {
		return r.white
	}
	return r.black
}

func (r *Room) setSeatLocked(c rules.Color, o *Occupant) {
	if c == rules.White {
		r.white = o
		return
	}
	r.black = o
}

func (r *Room) isSpectatorLocked(id string) bool {
	return lo.ContainsBy(r.spectators, func(s Occupant) bool { return s.ID == id })
}

func (r *Room) addSpectatorLocked(o Occupant) bool {
	if r.isSpectatorLocked(o.ID) {
		return false
	}
	r.spectators = append(r.spectators, o)
	return true
}

func (r *Room) removeSpectatorLocked(id string) {
	r.spectators = lo.Reject(r.spectators, func(s Occupant, _ int) bool { return s.ID == id })
}

func (r *Room) occupantsLocked() int {
	n := len(r.spectators)
	if r.white != nil {
		n++
	}
	if r.black != nil {
		n++
	}
	return n
}

func (r *Room) touchLocked() {
	r.version++
	r.updatedAt = r.now()
}

func (r *Room) snapshotLocked() State {
	st := r.engine.Status(r.board)
	out := State{
		ID:         r.id,
		Status:     r.status,
		FEN:        st.FEN,
		Turn:       st.Turn,
		InCheck:    st.InCheck,
		Outcome:    st.Outcome,
		Moves:      append([]rules.AppliedMove(nil), r.history...),
		Spectators: append([]Occupant{}, r.spectators...),
		Version:    r.version,
		CreatedAt:  r.createdAt,
		UpdatedAt:  r.updatedAt,
	}
	if r.outcome.Terminal() {
		out.Outcome = r.outcome
	}
	if r.white != nil {
		out.White = lo.ToPtr(*r.white)
	}
	if r.black != nil {
		out.Black = lo.ToPtr(*r.black)
	}
	if len(r.history) > 0 {
		out.ECO, out.Opening = r.engine.Opening(r.board)
	}
	return out
}
