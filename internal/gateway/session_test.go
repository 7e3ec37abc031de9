package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/park285/cheese-arena/internal/auth"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/proto"
	"github.com/park285/cheese-arena/internal/room"
)

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	t.Cleanup(obslog.Replace(zap.New(core)))
	return logs
}

func TestBlankRoomIsRejected(t *testing.T) {
	e := newTestEnv(t)
	logs := observeLogs(t)
	alice := e.dial(t, "/ws/game", "alice")

	join(alice, "   ", "Alice", false)
	// the blank join produced no reply: the next frame answers this request
	move(alice, "R1", "e2", "e4")
	assert.Equal(t, "not_joined", decode[proto.Error](t, alice.expect("error")).Code)
	assert.Equal(t, 0, e.reg.Len())
	assert.Equal(t, 1, logs.FilterMessage("ws_drop_frame").Len())

	c := newConn("direct", auth.Identity{ID: "bob"}, nil, 4)
	require.ErrorIs(t, e.gw.handleJoin(c, proto.JoinGame{Room: " \t"}), proto.ErrMalformed)
	assert.Equal(t, 0, e.reg.Len())
	assert.Empty(t, c.currentRoom())

	e.gw.dispatchGame(context.Background(), c, proto.JoinGame{Room: "  "})
	frame, ok := (<-c.out).(proto.Error)
	require.True(t, ok)
	assert.Equal(t, "malformed", frame.Code)
}

func TestSharedSeatAcrossTabs(t *testing.T) {
	e := newTestEnv(t)
	tab1 := e.dial(t, "/ws/game", "alice")
	tab2 := e.dial(t, "/ws/game", "alice")
	bob := e.dial(t, "/ws/game", "bob")

	join(tab1, "R1", "Alice", false)
	tab1.expect("gameJoined")
	join(tab2, "R1", "Alice", false)
	assert.Equal(t, "white", decode[proto.GameJoined](t, tab2.expect("gameJoined")).PlayerColor)
	tab1.expect("gameJoined")

	join(bob, "R1", "Bob", false)
	bob.expect("gameJoined")
	bob.expect("gameStarted")
	for _, tab := range []*client{tab1, tab2} {
		tab.expect("playerJoined")
		tab.expect("gameStarted")
	}

	tab1.close()
	require.Eventually(t, func() bool { return e.gw.Connections() == 2 }, 3*time.Second, 10*time.Millisecond)

	r, err := e.reg.Find("R1")
	require.NoError(t, err)
	st := r.Snapshot()
	require.NotNil(t, st.White)
	assert.Equal(t, "alice", st.White.ID)
	assert.Equal(t, room.StatusActive, st.Status)

	// bob saw no playerLeft: his next frame answers his own request
	move(bob, "nope", "e7", "e5")
	assert.Equal(t, "not_joined", decode[proto.Error](t, bob.expect("error")).Code)

	move(tab2, "R1", "e2", "e4")
	for _, c := range []*client{tab2, bob} {
		assert.Equal(t, "e4", decode[proto.MoveMade](t, c.expect("moveMade")).Move.SAN)
	}

	tab2.close()
	assert.Equal(t, "Alice", decode[proto.PlayerLeft](t, bob.expect("playerLeft")).PlayerName)
	bob.expect("gameOver")
	bob.close()
	require.Eventually(t, func() bool { return e.reg.Len() == 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestLastTabLeavingEvictsRoom(t *testing.T) {
	e := newTestEnv(t)
	tab1 := e.dial(t, "/ws/game", "alice")
	tab2 := e.dial(t, "/ws/game", "alice")
	join(tab1, "R1", "Alice", false)
	tab1.expect("gameJoined")
	join(tab2, "R1", "Alice", false)
	tab2.expect("gameJoined")
	tab1.expect("gameJoined")

	tab1.close()
	require.Eventually(t, func() bool { return e.gw.Connections() == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, e.reg.Len())

	tab2.close()
	require.Eventually(t, func() bool { return e.reg.Len() == 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestErrorFrameDroppedWhenBufferFull(t *testing.T) {
	e := newTestEnv(t)
	logs := observeLogs(t)

	c := newConn("slow", auth.Identity{ID: "alice"}, nil, 1)
	require.True(t, c.Send(proto.ChatJoined{Room: "R1"}))

	e.gw.dispatchGame(context.Background(), c, proto.MakeMove{Room: "R1"})
	e.gw.dispatchChat(context.Background(), c, proto.SendMessage{GameID: "R1", Message: "hi"})

	dropped := logs.FilterMessage("ws_error_frame_dropped").AllUntimed()
	require.Len(t, dropped, 2)
	for _, entry := range dropped {
		assert.Equal(t, "not_joined", entry.ContextMap()["code"])
		assert.Equal(t, "R1", entry.ContextMap()["room_id"])
	}
	assert.Len(t, c.out, 1)
}
