package room

import (
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/park285/cheese-arena/internal/rules"
)

// Registry is the single source of truth for which rooms exist.
type Registry struct {
	engine rules.Engine
	sink   Sink
	now    func() time.Time
	newID  func() string

	mu    sync.Mutex
	rooms map[string]*Room
}

type Option func(*Registry)

// WithSink routes every room event to s.
func WithSink(s Sink) Option {
	return func(g *Registry) { g.sink = s }
}

func WithClock(now func() time.Time) Option {
	return func(g *Registry) { g.now = now }
}

func WithIDGenerator(f func() string) Option {
	return func(g *Registry) { g.newID = f }
}

func NewRegistry(engine rules.Engine, opts ...Option) *Registry {
	g := &Registry{
		engine: engine,
		sink:   nopSink{},
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
		rooms:  make(map[string]*Room),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FindOrCreate returns the room for id, creating it when absent. created reports
// whether this call inserted the room. Only Create mints ids.
func (g *Registry) FindOrCreate(id string) (r *Room, created bool, err error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, false, ErrBlankRoomID
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	r, created = g.findOrCreateLocked(id)
	return r, created, nil
}

// Create inserts a new room under a generated id.
func (g *Registry) Create() *Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	for {
		if r, created := g.findOrCreateLocked(g.newID()); created {
			return r
		}
	}
}

func (g *Registry) findOrCreateLocked(id string) (*Room, bool) {
	if r, ok := g.rooms[id]; ok {
		return r, false
	}
	r := newRoom(id, g.engine, g.sink, g.now)
	g.rooms[id] = r
	return r, true
}

// Find looks a room up without creating it.
func (g *Registry) Find(id string) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// Remove closes and drops the room. Unknown ids are ignored.
func (g *Registry) Remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[id]
	if !ok {
		return
	}
	r.close(false)
	delete(g.rooms, id)
}

// RemoveIfEmpty drops the room only if it still has no occupants at this point.
func (g *Registry) RemoveIfEmpty(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[id]
	if !ok {
		return false
	}
	if !r.close(true) {
		return false
	}
	delete(g.rooms, id)
	return true
}

// List yields a summary per live room, ordered by id. Each iteration reads current state.
func (g *Registry) List() iter.Seq[Summary] {
	return func(yield func(Summary) bool) {
		g.mu.Lock()
		ids := make([]string, 0, len(g.rooms))
		for id := range g.rooms {
			ids = append(ids, id)
		}
		rooms := make(map[string]*Room, len(g.rooms))
		for id, r := range g.rooms {
			rooms[id] = r
		}
		g.mu.Unlock()

		slices.Sort(ids)
		for _, id := range ids {
			s, ok := rooms[id].summary()
			if !ok {
				continue
			}
			if !yield(s) {
				return
			}
		}
	}
}

func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}
