package httpapi

import (
	"errors"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/process"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/proto"
	"github.com/park285/cheese-arena/internal/render"
	"github.com/park285/cheese-arena/internal/room"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/internal/store"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

const (
	defaultResultLimit = 20
	maxResultLimit     = 200
)

type handlers struct {
	deps Deps
	self *selfStats
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status      string  `json:"status"`
	Rooms       int     `json:"rooms"`
	Connections int     `json:"connections"`
	RSSBytes    uint64  `json:"rss_bytes"`
	CPUPercent  float64 `json:"cpu_percent"`
}

// CreateRoomRequest is the optional body of POST /rooms.
type CreateRoomRequest struct {
	ID string `json:"id" binding:"omitempty,max=64"`
}

type CreateRoomResponse struct {
	ID string `json:"id"`
}

func (h *handlers) health(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Rooms: h.deps.Registry.Len()}
	if h.deps.Gateway != nil {
		resp.Connections = h.deps.Gateway.Connections()
	}
	if rss, cpu, err := h.self.sample(); err != nil {
		obslog.L().Debug("self_stats_failed", zap.Error(err))
	} else {
		resp.RSSBytes, resp.CPUPercent = rss, cpu
	}
	c.JSON(http.StatusOK, resp)
}

// GET /rooms
func (h *handlers) listRooms(c *gin.Context) {
	out := []chessdto.RoomSummary{}
	for s := range h.deps.Registry.List() {
		out = append(out, proto.Summary(s))
	}
	slices.SortFunc(out, func(a, b chessdto.RoomSummary) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	c.JSON(http.StatusOK, out)
}

// POST /rooms
func (h *handlers) createRoom(c *gin.Context) {
	var req CreateRoomRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}
	}
	if strings.TrimSpace(req.ID) == "" {
		c.JSON(http.StatusCreated, CreateRoomResponse{ID: h.deps.Registry.Create().ID()})
		return
	}
	r, created, err := h.deps.Registry.FindOrCreate(req.ID)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if !created {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "room already exists"})
		return
	}
	obslog.L().Info("room_created", zap.String("room_id", r.ID()))
	c.JSON(http.StatusCreated, CreateRoomResponse{ID: r.ID()})
}

// GET /rooms/:id
func (h *handlers) getRoom(c *gin.Context) {
	r, ok := h.findRoom(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, proto.GameState(r.Snapshot()))
}

// GET /rooms/:id/board.png?size=N
func (h *handlers) board(c *gin.Context) {
	r, ok := h.findRoom(c)
	if !ok {
		return
	}
	size := render.DefaultSize
	if v := c.Query("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid size"})
			return
		}
		size = n
	}

	st := r.Snapshot()
	var last *rules.Move
	if n := len(st.Moves); n > 0 {
		m := st.Moves[n-1].Move
		last = &m
	}
	png, err := h.deps.Renderer.RenderPNG(c.Request.Context(), st.FEN, last, size)
	if err != nil {
		obslog.L().Error("board_render_failed", zap.String("room_id", st.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "render failed"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// GET /games lists open games from the store's lobby index.
func (h *handlers) lobby(c *gin.Context) {
	if h.deps.Games == nil {
		c.JSON(http.StatusOK, []string{})
		return
	}
	ids, err := h.deps.Games.Lobby(c.Request.Context())
	if err != nil {
		obslog.L().Error("lobby_query_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, ids)
}

// GET /games/:id reads the persisted record written by the store recorder.
func (h *handlers) getGame(c *gin.Context) {
	if h.deps.Games == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "game store disabled"})
		return
	}
	rec, err := h.deps.Games.Find(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "game not found"})
		return
	}
	if err != nil {
		obslog.L().Error("game_lookup_failed", zap.String("room_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GET /results?limit=N
func (h *handlers) recentResults(c *gin.Context) {
	if h.deps.Results == nil {
		c.JSON(http.StatusOK, []store.Result{})
		return
	}
	limit := defaultResultLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = min(n, maxResultLimit)
	}
	out, err := h.deps.Results.Recent(c.Request.Context(), limit)
	if err != nil {
		obslog.L().Error("results_query_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if out == nil {
		out = []store.Result{}
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) findRoom(c *gin.Context) (*room.Room, bool) {
	r, err := h.deps.Registry.Find(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return nil, false
	}
	return r, true
}

// selfStats samples this process through gopsutil. The process handle is opened once.
type selfStats struct {
	once sync.Once
	proc *process.Process
	err  error
}

func newSelfStats() *selfStats { return &selfStats{} }

func (s *selfStats) sample() (uint64, float64, error) {
	s.once.Do(func() {
		s.proc, s.err = process.NewProcess(int32(os.Getpid()))
	})
	if s.err != nil {
		return 0, 0, s.err
	}
	mem, err := s.proc.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpu, err := s.proc.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return mem.RSS, cpu, nil
}
