package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-arena/internal/auth"
	"github.com/park285/cheese-arena/internal/fanout"
	"github.com/park285/cheese-arena/internal/gateway"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/proto"
	"github.com/park285/cheese-arena/internal/room"
	"github.com/park285/cheese-arena/internal/rules"
)

func TestWebsocketThroughRouter(t *testing.T) {
	bc := gateway.NewBroadcaster(fanout.NewHub[proto.Outbound](), msgcat.MustDefault())
	reg := room.NewRegistry(rules.NewEngine(), room.WithSink(bc))
	gw := gateway.New(gateway.Options{Registry: reg, Broadcaster: bc, Auth: auth.Insecure{}})
	srv := httptest.NewServer(NewRouter(Deps{Registry: reg, Gateway: gw}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	for _, path := range []string{"/ws/game?token=alice", "/ws/chat"} {
		ws, _, err := websocket.Dial(ctx, base+path, nil)
		require.NoError(t, err, path)

		var env proto.Envelope
		if strings.HasPrefix(path, "/ws/game") {
			require.NoError(t, wsjson.Write(ctx, ws, map[string]any{"event": "joinGame", "data": map[string]string{"room": "R9"}}))
			require.NoError(t, wsjson.Read(ctx, ws, &env))
			assert.Equal(t, "gameJoined", env.Event)
		} else {
			require.NoError(t, wsjson.Write(ctx, ws, map[string]any{"event": "joinChat", "data": "R9"}))
			require.NoError(t, wsjson.Read(ctx, ws, &env))
			assert.Equal(t, "chatJoined", env.Event)
		}
		_ = ws.Close(websocket.StatusNormalClosure, "")
	}

	// REST routes still go through gin
	resp, err := http.Get(srv.URL + "/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
