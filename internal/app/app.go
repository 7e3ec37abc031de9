package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/auth"
	"github.com/park285/cheese-arena/internal/chat"
	"github.com/park285/cheese-arena/internal/config"
	"github.com/park285/cheese-arena/internal/fanout"
	"github.com/park285/cheese-arena/internal/gateway"
	"github.com/park285/cheese-arena/internal/httpapi"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/proto"
	"github.com/park285/cheese-arena/internal/render"
	"github.com/park285/cheese-arena/internal/room"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/internal/store"
)

// App owns every long-lived component of the server.
type App struct {
	cfg      *config.AppConfig
	server   *http.Server
	registry *room.Registry
	gateway  *gateway.Gateway
	recorder *store.Recorder
	games    store.GameStore
	results  store.ResultRepository
	rdb      *redis.Client
}

// New builds the component graph. Redis and the results database are used only when configured.
func New(ctx context.Context, cfg *config.AppConfig) (_ *App, err error) {
	a := &App{cfg: cfg}
	defer func() {
		if err != nil {
			a.closeStores()
		}
	}()

	cat, err := msgcat.New(cfg.MsgOverrideDir)
	if err != nil {
		return nil, fmt.Errorf("message catalog: %w", err)
	}
	provider, err := NewAuthProvider(cfg)
	if err != nil {
		return nil, err
	}
	mod, err := chat.NewModerator(cfg.ChatCensoredWords, cfg.CensorRune())
	if err != nil {
		return nil, fmt.Errorf("chat moderator: %w", err)
	}

	var history chat.History
	if cfg.RedisURL != "" {
		a.rdb, err = store.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.games = store.NewRedisStore(a.rdb)
		history = chat.NewRedisHistory(a.rdb, cfg.ChatHistorySize)
		obslog.L().Info("store_backend", zap.String("kind", "redis"))
	} else {
		a.games = store.NewMemoryStore()
		history = chat.NewMemoryHistory(cfg.ChatHistorySize)
		obslog.L().Info("store_backend", zap.String("kind", "memory"))
	}

	var recOpts []store.RecorderOption
	if cfg.DatabaseURL != "" {
		repo, err := store.OpenResults(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.results = repo
		recOpts = append(recOpts, store.WithResults(repo))
	}

	bc := gateway.NewBroadcaster(fanout.NewHub[proto.Outbound](), cat)
	a.recorder = store.NewRecorder(bc, a.games, cfg.StoreQueueSize, recOpts...)
	a.registry = room.NewRegistry(rules.NewEngine(), room.WithSink(a.recorder))
	a.gateway = gateway.New(gateway.Options{
		Registry:    a.registry,
		Broadcaster: bc,
		Auth:        provider,
		Chat: chat.NewService(chat.Options{
			Moderator:   mod,
			History:     history,
			MaxLength:   cfg.ChatMaxMessageLength,
			HistorySize: cfg.ChatHistorySize,
		}),
		Catalog: cat,
		Config: gateway.Config{
			SendBuffer:     cfg.WSSendBuffer,
			PingInterval:   cfg.WSPingInterval,
			ReadLimit:      cfg.WSReadLimit,
			AllowedOrigins: cfg.WSAllowedOrigins,
		},
	})

	router := httpapi.NewRouter(httpapi.Deps{
		Registry: a.registry,
		Gateway:  a.gateway,
		Renderer: render.New(),
		Games:    a.games,
		Results:  a.results,
	})
	a.server = httpapi.NewServer(cfg.HTTPAddr, router)
	return a, nil
}

// NewAuthProvider picks the identity provider for AUTH_MODE.
func NewAuthProvider(cfg *config.AppConfig) (auth.Provider, error) {
	switch cfg.AuthMode {
	case config.AuthJWT:
		return auth.NewJWTProvider(auth.JWTConfig{
			Secret:   []byte(cfg.JWTSecret),
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
			TTL:      cfg.JWTTTL,
		})
	case config.AuthRemote:
		return auth.NewRemoteProvider(cfg.AuthRemoteURL, auth.WithRemoteTimeout(cfg.AuthRemoteTimeout)), nil
	case config.AuthNone:
		obslog.L().Warn("auth_disabled", zap.String("hint", "tokens are trusted as identities"))
		return auth.Insecure{}, nil
	default:
		return nil, fmt.Errorf("unknown AUTH_MODE %q", cfg.AuthMode)
	}
}

func (a *App) Handler() http.Handler { return a.server.Handler }

// Run serves until ctx is cancelled or the listener fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)
	go func() {
		obslog.L().Info("http_listen", zap.String("addr", a.cfg.HTTPAddr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	var runErr error
	select {
	case runErr = <-serverErr:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	return errors.Join(runErr, a.shutdown(shutdownCtx))
}

// shutdown order: stop accepting, close sockets (rooms empty out), drain the recorder, close stores.
func (a *App) shutdown(ctx context.Context) error {
	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.gateway.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("gateway shutdown: %w", err))
	}
	if err := a.recorder.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("recorder drain: %w", err))
	}
	if err := a.closeStores(); err != nil {
		errs = append(errs, err)
	}
	obslog.L().Info("shutdown_complete", zap.Int("rooms_left", a.registry.Len()))
	return errors.Join(errs...)
}

func (a *App) closeStores() error {
	var errs []error
	if a.games != nil {
		errs = append(errs, a.games.Close())
	}
	if a.results != nil {
		errs = append(errs, a.results.Close())
	}
	if a.rdb != nil {
		errs = append(errs, a.rdb.Close())
	}
	return errors.Join(errs...)
}
