package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// MemoryStore is a GameStore for development and tests.
type MemoryStore struct {
	mu    sync.Mutex
	games map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{games: make(map[string]Record)}
}

func (s *MemoryStore) Create(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[rec.ID] = clone(*rec)
	return nil
}

func (s *MemoryStore) Find(_ context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.games[id]
	if !ok {
		return nil, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	out := clone(rec)
	return &out, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.games[id]
	if !ok {
		return fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	rec = clone(rec)
	patch(&rec)
	s.games[id] = rec
	return nil
}

func (s *MemoryStore) AppendMove(_ context.Context, id string, mv MoveEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.games[id]
	if !ok {
		return fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	if mv.Ply != len(rec.MovesUCI)+1 {
		return fmt.Errorf("append ply %d to %d moves: %w", mv.Ply, len(rec.MovesUCI), ErrStaleMove)
	}
	rec = clone(rec)
	appendMove(&rec, mv)
	s.games[id] = rec
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, id)
	return nil
}

func (s *MemoryStore) Lobby(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := lo.FilterMap(lo.Values(s.games), func(r Record, _ int) (string, bool) { return r.ID, r.Open() })
	slices.Sort(ids)
	return ids, nil
}

func (s *MemoryStore) Close() error { return nil }

func clone(r Record) Record {
	r.MovesUCI = slices.Clone(r.MovesUCI)
	r.MovesSAN = slices.Clone(r.MovesSAN)
	if r.White != nil {
		w := *r.White
		r.White = &w
	}
	if r.Black != nil {
		b := *r.Black
		r.Black = &b
	}
	return r
}
