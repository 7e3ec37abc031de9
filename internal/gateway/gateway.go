package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/cheese-arena/internal/auth"
	"github.com/park285/cheese-arena/internal/chat"
	"github.com/park285/cheese-arena/internal/fanout"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/proto"
	"github.com/park285/cheese-arena/internal/room"
)

type Config struct {
	SendBuffer     int
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadLimit      int64
	AllowedOrigins []string
}

type Options struct {
	Registry    *room.Registry
	Broadcaster *Broadcaster
	Auth        auth.Provider
	Chat        *chat.Service
	Catalog     *msgcat.Catalog
	Config      Config
}

// Gateway owns every live connection and the connection -> room association.
// Rooms are always reached through the Registry.
type Gateway struct {
	reg   *room.Registry
	games *fanout.Hub[proto.Outbound]
	chats *fanout.Hub[proto.Outbound]
	auth  auth.Provider
	chat  *chat.Service
	cat   *msgcat.Catalog
	cfg   Config

	mu    sync.Mutex
	conns map[string]*conn
}

func New(opts Options) *Gateway {
	cfg := opts.Config
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 8192
	}
	cat := opts.Catalog
	if cat == nil {
		cat = msgcat.MustDefault()
	}
	chatSvc := opts.Chat
	if chatSvc == nil {
		chatSvc = chat.NewService(chat.Options{})
	}
	return &Gateway{
		reg:   opts.Registry,
		games: opts.Broadcaster.Hub(),
		chats: fanout.NewHub[proto.Outbound](),
		auth:  opts.Auth,
		chat:  chatSvc,
		cat:   cat,
		cfg:   cfg,
		conns: make(map[string]*conn),
	}
}

// Connections counts open websocket sessions on both channels.
func (g *Gateway) Connections() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// Shutdown asks every connection to close with GoingAway and waits until they are gone or ctx ends.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	for _, c := range g.conns {
		c.closeWith(websocket.StatusGoingAway, "server shutting down")
	}
	g.mu.Unlock()

	t := time.NewTicker(20 * time.Millisecond)
	defer t.Stop()
	for g.Connections() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// GameHandler serves /ws/game. An unauthenticated request gets 401 before the upgrade.
func (g *Gateway) GameHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, err := g.auth.Resolve(r.Context(), auth.TokenFromRequest(r))
		if err != nil {
			obslog.L().Info("ws_auth_rejected", zap.String("remote", r.RemoteAddr), zap.Error(err))
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		g.serve(w, r, ident, "game", g.dispatchGame, g.detachGame)
	})
}

// ChatHandler serves /ws/chat. Without a valid token the connection is a guest.
func (g *Gateway) ChatHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, err := g.auth.Resolve(r.Context(), auth.TokenFromRequest(r))
		if err != nil {
			id := "guest-" + uuid.NewString()[:8]
			ident = auth.Identity{ID: id, Name: id, Guest: true}
		}
		g.serve(w, r, ident, "chat", g.dispatchChat, g.detachChat)
	})
}

type dispatchFunc func(ctx context.Context, c *conn, in proto.Inbound)

func (g *Gateway) serve(w http.ResponseWriter, r *http.Request, ident auth.Identity, channel string, dispatch dispatchFunc, detach func(*conn)) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     g.cfg.AllowedOrigins,
		InsecureSkipVerify: len(g.cfg.AllowedOrigins) == 0,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_failed", zap.String("channel", channel), zap.Error(err))
		return
	}
	ws.SetReadLimit(g.cfg.ReadLimit)

	c := newConn(uuid.NewString(), ident, ws, g.cfg.SendBuffer)
	g.mu.Lock()
	g.conns[c.id] = c
	g.mu.Unlock()
	log := obslog.L().With(zap.String("channel", channel), zap.String("conn_id", c.id), zap.String("identity", ident.ID))
	log.Info("ws_connect")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- g.readLoop(ctx, c, dispatch) }()
	go func() { errCh <- c.writeLoop(ctx, g.cfg.PingInterval, g.cfg.WriteTimeout) }()

	err = <-errCh
	cancel()
	<-errCh

	detach(c)
	g.mu.Lock()
	delete(g.conns, c.id)
	g.mu.Unlock()

	status, reason := closeStatus(c, err)
	if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
		log.Warn("ws_disconnect", zap.Int("status", int(status)), zap.String("reason", reason), zap.Error(err))
	} else {
		log.Info("ws_disconnect", zap.Int("status", int(status)))
	}
	_ = ws.Close(status, reason)
}

func closeStatus(c *conn, err error) (websocket.StatusCode, string) {
	switch {
	case errors.Is(err, errClosedByServer):
		return c.closeStatus, c.closeReason
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
		return websocket.StatusNormalClosure, "closing"
	}
	if s := websocket.CloseStatus(err); s == websocket.StatusNormalClosure || s == websocket.StatusGoingAway {
		return s, "closing"
	} else if s == websocket.StatusMessageTooBig {
		return s, "message too big"
	}
	return websocket.StatusInternalError, "internal error"
}

func (g *Gateway) readLoop(ctx context.Context, c *conn, dispatch dispatchFunc) error {
	for {
		typ, raw, err := c.ws.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			obslog.L().Warn("ws_drop_frame", zap.String("conn_id", c.id), zap.String("reason", "binary frame"))
			continue
		}
		in, err := proto.Decode(raw)
		if err != nil {
			obslog.L().Warn("ws_drop_frame", zap.String("conn_id", c.id), zap.Error(err))
			continue
		}
		dispatch(ctx, c, in)
	}
}
