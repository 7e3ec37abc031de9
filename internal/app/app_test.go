package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-arena/internal/auth"
	"github.com/park285/cheese-arena/internal/config"
	"github.com/park285/cheese-arena/internal/proto"
)

func testConfig(t *testing.T, env map[string]string) *config.AppConfig {
	t.Helper()
	t.Setenv("AUTH_MODE", "none")
	t.Setenv("HTTP_ADDR", "127.0.0.1:0")
	t.Setenv("LOG_TO_CONSOLE", "false")
	for k, v := range env {
		t.Setenv(k, v)
	}
	cfg, err := config.FromEnviron()
	require.NoError(t, err)
	return cfg
}

func TestAuthProviderByMode(t *testing.T) {
	p, err := NewAuthProvider(testConfig(t, nil))
	require.NoError(t, err)
	assert.IsType(t, auth.Insecure{}, p)

	p, err = NewAuthProvider(testConfig(t, map[string]string{"AUTH_MODE": "jwt", "JWT_SECRET": "s"}))
	require.NoError(t, err)
	assert.IsType(t, &auth.JWTProvider{}, p)

	p, err = NewAuthProvider(testConfig(t, map[string]string{"AUTH_MODE": "remote", "AUTH_REMOTE_URL": "http://auth.local/verify"}))
	require.NoError(t, err)
	assert.IsType(t, &auth.RemoteProvider{}, p)
}

func TestGamePersistsToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, map[string]string{
		"REDIS_URL":    "redis://" + mr.Addr(),
		"DATABASE_URL": "file:app_results?mode=memory&cache=shared",
	})
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ws, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/game?token=alice", nil)
	require.NoError(t, err)
	defer ws.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, wsjson.Write(ctx, ws, map[string]any{"event": "joinGame", "data": map[string]string{"room": "R9"}}))
	var env proto.Envelope
	require.NoError(t, wsjson.Read(ctx, ws, &env))
	require.Equal(t, "gameJoined", env.Event)

	require.Eventually(t, func() bool { return mr.Exists("arena:game:R9") }, 3*time.Second, 20*time.Millisecond)

	resp, err := http.Get(srv.URL + "/games/R9")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	require.NoError(t, a.shutdown(sctx))
	assert.Equal(t, 0, a.registry.Len())
}

func TestRunStopsOnCancel(t *testing.T) {
	a, err := New(context.Background(), testConfig(t, nil))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
