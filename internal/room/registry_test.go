package room

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/cheese-arena/internal/rules"
)

func newTestRegistry(t *testing.T) (*Registry, *recorder) {
	t.Helper()
	rec := &recorder{}
	seq := 0
	g := NewRegistry(rules.NewEngine(),
		WithSink(rec),
		WithIDGenerator(func() string { seq++; return fmt.Sprintf("gen-%d", seq) }),
	)
	return g, rec
}

func TestFindOrCreateIsAtomic(t *testing.T) {
	g, _ := newTestRegistry(t)

	var wg sync.WaitGroup
	rooms := make([]*Room, 32)
	created := make([]bool, 32)
	for i := range rooms {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rooms[i], created[i], _ = g.FindOrCreate("R1")
		}(i)
	}
	wg.Wait()

	n := 0
	for i := range rooms {
		assert.Same(t, rooms[0], rooms[i])
		if created[i] {
			n++
		}
	}
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, g.Len())
}

func TestFindAndCreate(t *testing.T) {
	g, _ := newTestRegistry(t)

	_, err := g.Find("missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.Equal(t, "room_not_found", Code(err))

	r := g.Create()
	assert.Equal(t, "gen-1", r.ID())
	found, err := g.Find("gen-1")
	require.NoError(t, err)
	assert.Same(t, r, found)

	blank, created, err := g.FindOrCreate("  ")
	require.ErrorIs(t, err, ErrBlankRoomID)
	assert.Equal(t, "invalid_room", Code(err))
	assert.Nil(t, blank)
	assert.False(t, created)
	assert.Equal(t, 1, g.Len())
}

func TestRemoveIsIdempotent(t *testing.T) {
	g, rec := newTestRegistry(t)
	r := mustRoom(t, g, "R1")
	_, err := r.JoinAsPlayer(alice)
	require.NoError(t, err)

	g.Remove("R1")
	g.Remove("R1")
	g.Remove("never-existed")

	_, err = g.Find("R1")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.Equal(t, []string{"playerJoined", "roomClosed"}, rec.names())

	_, err = r.JoinAsPlayer(bob)
	assert.ErrorIs(t, err, ErrRoomClosed)
}

func TestRemoveIfEmpty(t *testing.T) {
	g, rec := newTestRegistry(t)
	r := mustRoom(t, g, "R1")
	_, err := r.JoinAsPlayer(alice)
	require.NoError(t, err)
	require.NoError(t, r.JoinAsSpectator(bob))

	assert.False(t, r.Leave("alice").Empty)
	assert.False(t, g.RemoveIfEmpty("R1"))
	assert.Equal(t, 1, g.Len())

	assert.True(t, r.Leave("bob").Empty)
	assert.True(t, g.RemoveIfEmpty("R1"))
	assert.False(t, g.RemoveIfEmpty("R1"))
	assert.Equal(t, 0, g.Len())

	names := rec.names()
	assert.Equal(t, "roomClosed", names[len(names)-1])
}

func TestScenarioFullGameFlow(t *testing.T) {
	g, rec := newTestRegistry(t)

	r, created, err := g.FindOrCreate("R1")
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, StatusWaiting, r.Snapshot().Status)

	res, err := r.Join(alice, false)
	require.NoError(t, err)
	assert.Equal(t, rules.White, res.Color)
	assert.Equal(t, StatusWaiting, r.Snapshot().Status)

	res, err = r.Join(bob, false)
	require.NoError(t, err)
	assert.Equal(t, rules.Black, res.Color)
	assert.True(t, res.Started)
	assert.Equal(t, StatusActive, r.Snapshot().Status)

	mv, err := r.AttemptMove("alice", rules.Move{From: "e2", To: "e4"})
	require.NoError(t, err)
	assert.Equal(t, rules.Black, mv.State.Turn)

	_, err = r.AttemptMove("alice", rules.Move{From: "d2", To: "d4"})
	assert.ErrorIs(t, err, ErrNotYourTurn)

	assert.False(t, r.Leave("bob").Empty)
	assert.False(t, g.RemoveIfEmpty("R1"))
	assert.True(t, r.Leave("alice").Empty)
	assert.True(t, g.RemoveIfEmpty("R1"))

	_, err = g.Find("R1")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.Equal(t, []string{
		"playerJoined", "playerJoined", "gameStarted", "moveMade",
		"playerLeft", "gameOver", "playerLeft", "roomClosed",
	}, rec.names())
}

func TestListIsRestartable(t *testing.T) {
	g, _ := newTestRegistry(t)
	a := mustRoom(t, g, "b-room")
	mustRoom(t, g, "a-room")
	_, err := a.JoinAsPlayer(alice)
	require.NoError(t, err)

	collect := func() []Summary {
		var out []Summary
		for s := range g.List() {
			out = append(out, s)
		}
		return out
	}

	first := collect()
	require.Len(t, first, 2)
	assert.Equal(t, "a-room", first[0].ID)
	assert.Equal(t, "b-room", first[1].ID)
	assert.Equal(t, "Alice", first[1].White)
	assert.Equal(t, 1, first[1].Occupants())

	require.NoError(t, a.JoinAsSpectator(carol))
	g.Remove("a-room")

	second := collect()
	require.Len(t, second, 1)
	assert.Equal(t, 1, second[0].Spectators)

	for range g.List() {
		break
	}
}

func mustRoom(t *testing.T, g *Registry, id string) *Room {
	t.Helper()
	r, _, err := g.FindOrCreate(id)
	require.NoError(t, err)
	return r
}
