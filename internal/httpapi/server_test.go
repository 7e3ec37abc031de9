package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/cheese-arena/internal/room"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/internal/store"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

func init() { gin.SetMode(gin.TestMode) }

func do(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func seededRegistry(t *testing.T) *room.Registry {
	t.Helper()
	reg := room.NewRegistry(rules.NewEngine())
	r, _, err := reg.FindOrCreate("R1")
	require.NoError(t, err)
	_, err = r.Join(room.Occupant{ID: "a", Name: "Alice"}, false)
	require.NoError(t, err)
	_, err = r.Join(room.Occupant{ID: "b", Name: "Bob"}, false)
	require.NoError(t, err)
	_, err = r.AttemptMove("a", rules.Move{From: "e2", To: "e4"})
	require.NoError(t, err)
	return reg
}

func TestRooms(t *testing.T) {
	reg := seededRegistry(t)
	h := NewRouter(Deps{Registry: reg})

	rec := do(t, h, http.MethodGet, "/rooms", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []chessdto.RoomSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, chessdto.RoomSummary{ID: "R1", Status: "active", White: "Alice", Black: "Bob", Moves: 1}, list[0])

	rec = do(t, h, http.MethodGet, "/rooms/R1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var gs chessdto.GameState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gs))
	assert.Equal(t, "black", gs.Turn)
	require.Len(t, gs.Moves, 1)
	assert.Equal(t, "e4", gs.Moves[0].SAN)

	rec = do(t, h, http.MethodGet, "/rooms/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateRoom(t *testing.T) {
	reg := room.NewRegistry(rules.NewEngine())
	h := NewRouter(Deps{Registry: reg})

	rec := do(t, h, http.MethodPost, "/rooms", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var out CreateRoomResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.NotEmpty(t, out.ID)

	rec = do(t, h, http.MethodPost, "/rooms", []byte(`{"id":"lobby-1"}`))
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, h, http.MethodPost, "/rooms", []byte(`{"id":"lobby-1"}`))
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = do(t, h, http.MethodPost, "/rooms", []byte(`{"id":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/rooms", []byte(`{"id":"   "}`))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.NotEqual(t, "   ", out.ID)
	assert.NotEmpty(t, strings.TrimSpace(out.ID))

	assert.Equal(t, 3, reg.Len())
}

func TestBoardPNG(t *testing.T) {
	h := NewRouter(Deps{Registry: seededRegistry(t)})

	rec := do(t, h, http.MethodGet, "/rooms/R1/board.png?size=256", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/rooms/R1/board.png?size=x", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/rooms/nope/board.png", nil).Code)
}

func TestHealth(t *testing.T) {
	h := NewRouter(Deps{Registry: seededRegistry(t)})
	rec := do(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "ok", out.Status)
	assert.Equal(t, 1, out.Rooms)
}

func TestGamesAndResults(t *testing.T) {
	ctx := context.Background()
	games := store.NewMemoryStore()
	reg := seededRegistry(t)
	r, err := reg.Find("R1")
	require.NoError(t, err)
	require.NoError(t, games.Create(ctx, store.RecordFromState(r.Snapshot())))

	results, err := store.OpenResults(ctx, "file:httpapi_results?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = results.Close() })
	now := time.Now().UTC()
	require.NoError(t, results.SaveResult(ctx, store.Result{
		GameID: "R0#9", RoomID: "R0", Result: "0-1", Termination: "resignation",
		White: store.Player{ID: "a", Name: "Alice"}, Black: store.Player{ID: "b", Name: "Bob"},
		StartedAt: now.Add(-time.Minute), EndedAt: now,
	}))

	h := NewRouter(Deps{Registry: reg, Games: games, Results: results})

	rec := do(t, h, http.MethodGet, "/games", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["R1"]`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/games/R1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got store.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"e2e4"}, got.MovesUCI)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/games/none", nil).Code)

	rec = do(t, h, http.MethodGet, "/results?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rs []store.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rs))
	require.Len(t, rs, 1)
	assert.Equal(t, "R0#9", rs[0].GameID)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/results?limit=-1", nil).Code)
}

func TestOptionalStoresDisabled(t *testing.T) {
	h := NewRouter(Deps{Registry: room.NewRegistry(rules.NewEngine())})
	assert.JSONEq(t, `[]`, do(t, h, http.MethodGet, "/games", nil).Body.String())
	assert.JSONEq(t, `[]`, do(t, h, http.MethodGet, "/results", nil).Body.String())
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/games/R1", nil).Code)
}
