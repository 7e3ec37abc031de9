package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/room"
	"github.com/park285/cheese-arena/internal/rules"
)

type job struct {
	name string
	room string
	run  func(ctx context.Context) error
}

// Recorder is a room.Sink decorator that mirrors room events into a GameStore and a
// ResultRepository. Publish never blocks: jobs go to a bounded queue drained by one
// worker, and a full queue drops the job with a warning.
type Recorder struct {
	next    room.Sink
	games   GameStore
	results ResultRepository
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan job
	done   chan struct{}
}

type RecorderOption func(*Recorder)

func WithResults(r ResultRepository) RecorderOption {
	return func(rc *Recorder) { rc.results = r }
}

func WithJobTimeout(d time.Duration) RecorderOption {
	return func(rc *Recorder) { rc.timeout = d }
}

// NewRecorder starts the worker. next may be nil; games may be nil when only results are kept.
func NewRecorder(next room.Sink, games GameStore, queueSize int, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		next:    next,
		games:   games,
		timeout: 5 * time.Second,
		queue:   make(chan job, max(queueSize, 1)),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.loop()
	return r
}

func (r *Recorder) Publish(ev room.Event) {
	if r.next != nil {
		r.next.Publish(ev)
	}
	for _, j := range r.jobsFor(ev) {
		r.enqueue(j)
	}
}

// Close stops accepting jobs and waits for the queue to drain or ctx to expire.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) enqueue(j job) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- j:
	default:
		obslog.L().Warn("store_queue_full", zap.String("job", j.name), zap.String("room_id", j.room))
	}
}

func (r *Recorder) loop() {
	defer close(r.done)
	for j := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		err := j.run(ctx)
		cancel()
		if err != nil {
			obslog.L().Error("store_job_failed", zap.String("job", j.name), zap.String("room_id", j.room), zap.Error(err))
		}
	}
}

func (r *Recorder) jobsFor(ev room.Event) []job {
	id := ev.RoomID()
	var jobs []job
	if r.games != nil {
		switch e := ev.(type) {
		case room.PlayerJoined:
			jobs = append(jobs, r.saveJob("save_seat", e.State))
		case room.PlayerLeft:
			jobs = append(jobs, r.saveJob("save_seat", e.State))
		case room.GameStarted:
			jobs = append(jobs, r.saveJob("save_start", e.State))
		case room.GameReset:
			jobs = append(jobs, r.saveJob("save_reset", e.State))
		case room.MoveMade:
			jobs = append(jobs, r.moveJob(e.Move, e.State))
		case room.GameOver:
			st := e.State
			jobs = append(jobs, job{name: "save_outcome", room: id, run: func(ctx context.Context) error {
				err := r.games.Update(ctx, id, func(rec *Record) {
					rec.Status = string(st.Status)
					rec.Version = st.Version
					rec.UpdatedAt = st.UpdatedAt
					applyOutcome(rec, st.Outcome)
				})
				if errors.Is(err, ErrNotFound) {
					return r.games.Create(ctx, RecordFromState(st))
				}
				return err
			}})
		case room.RoomClosed:
			jobs = append(jobs, job{name: "remove", room: id, run: func(ctx context.Context) error {
				return r.games.Remove(ctx, id)
			}})
		}
	}
	if over, ok := ev.(room.GameOver); ok && r.results != nil {
		res := ResultFromRecord(RecordFromState(over.State))
		jobs = append(jobs, job{name: "save_result", room: id, run: func(ctx context.Context) error {
			if err := r.results.SaveResult(ctx, res); err != nil {
				return err
			}
			obslog.L().Info("result_saved", zap.String("game_id", res.GameID), zap.String("result", res.Result), zap.String("termination", res.Termination))
			return nil
		}})
	}
	return jobs
}

func (r *Recorder) saveJob(name string, st room.State) job {
	rec := RecordFromState(st)
	return job{name: name, room: st.ID, run: func(ctx context.Context) error {
		return r.games.Create(ctx, rec)
	}}
}

// moveJob appends the move; a record that is missing or out of step is rewritten whole.
func (r *Recorder) moveJob(mv rules.AppliedMove, st room.State) job {
	entry := MoveEntry{Ply: mv.Ply, UCI: mv.UCI(), SAN: mv.SAN, FEN: st.FEN, Version: st.Version, At: st.UpdatedAt}
	return job{name: "append_move", room: st.ID, run: func(ctx context.Context) error {
		err := r.games.AppendMove(ctx, st.ID, entry)
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStaleMove) {
			return r.games.Create(ctx, RecordFromState(st))
		}
		return err
	}}
}
