package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/gateway"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/render"
	"github.com/park285/cheese-arena/internal/room"
	"github.com/park285/cheese-arena/internal/store"
)

// Deps are the collaborators behind the HTTP surface. Games and Results are optional.
type Deps struct {
	Registry *room.Registry
	Gateway  *gateway.Gateway
	Renderer *render.Renderer
	Games    store.GameStore
	Results  store.ResultRepository
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewRouter serves the websocket channels from a plain ServeMux and everything else
// through gin. gin's response writer delays WriteHeader past Hijack, which breaks the
// 101 upgrade, so the gateway handlers never go through it.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()
	if d.Gateway != nil {
		mux.Handle("/ws/game", d.Gateway.GameHandler())
		mux.Handle("/ws/chat", d.Gateway.ChatHandler())
	}
	mux.Handle("/", newEngine(d))
	return mux
}

func newEngine(d Deps) *gin.Engine {
	if d.Renderer == nil {
		d.Renderer = render.New()
	}
	h := &handlers{deps: d, self: newSelfStats()}

	r := gin.New()
	r.Use(gin.Recovery(), LoggerMiddleware())

	r.GET("/healthz", h.health)
	r.GET("/rooms", h.listRooms)
	r.POST("/rooms", h.createRoom)
	r.GET("/rooms/:id", h.getRoom)
	r.GET("/rooms/:id/board.png", h.board)
	r.GET("/games", h.lobby)
	r.GET("/games/:id", h.getGame)
	r.GET("/results", h.recentResults)
	return r
}

// NewServer wraps the router in an http.Server.
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// LoggerMiddleware logs each request after it is served. Websocket upgrades log on close.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
		}
		if status >= http.StatusInternalServerError {
			obslog.L().Warn("http_request", fields...)
			return
		}
		obslog.L().Debug("http_request", fields...)
	}
}
