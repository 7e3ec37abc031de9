package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/app"
	"github.com/park285/cheese-arena/internal/auth"
	"github.com/park285/cheese-arena/internal/config"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cheese-arena",
		Short:         "Real-time chess rooms over websockets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newRoomsCmd(os.Stdout), newTokenCmd(os.Stdout))
	return root
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the game server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			if err := obslog.Init(cfg.Log()); err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			defer func() { _ = obslog.L().Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg)
			if err != nil {
				obslog.L().Error("startup_failed", zap.Error(err))
				return err
			}
			obslog.L().Info("server_start",
				zap.String("addr", cfg.HTTPAddr),
				zap.String("auth_mode", cfg.AuthMode),
				zap.Bool("redis", cfg.RedisURL != ""),
				zap.Bool("results_db", cfg.DatabaseURL != ""),
			)
			if err := a.Run(ctx); err != nil {
				obslog.L().Error("server_exit", zap.Error(err))
				return err
			}
			obslog.L().Info("server_stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	return cmd
}

func newRoomsCmd(out io.Writer) *cobra.Command {
	var (
		server  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List rooms on a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rooms, err := fetchRooms(strings.TrimRight(server, "/")+"/rooms", timeout)
			if err != nil {
				return err
			}
			renderRooms(out, rooms)
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://127.0.0.1:8080", "server base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}

func fetchRooms(url string, timeout time.Duration) ([]chessdto.RoomSummary, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := fasthttp.DoTimeout(req, resp, timeout); err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("GET %s: status=%d", url, resp.StatusCode())
	}
	var rooms []chessdto.RoomSummary
	if err := json.Unmarshal(resp.Body(), &rooms); err != nil {
		return nil, fmt.Errorf("decode rooms: %w", err)
	}
	return rooms, nil
}

func renderRooms(out io.Writer, rooms []chessdto.RoomSummary) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Room", "Status", "White", "Black", "Spectators", "Moves"})
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")
	for _, r := range rooms {
		table.Append([]string{r.ID, r.Status, dash(r.White), dash(r.Black), strconv.Itoa(r.Spectators), strconv.Itoa(r.Moves)})
	}
	table.Render()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newTokenCmd(out io.Writer) *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a JWT for local testing",
		RunE: func(_ *cobra.Command, _ []string) error {
			if strings.TrimSpace(id) == "" {
				return errors.New("--id is required")
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			p, err := auth.NewJWTProvider(auth.JWTConfig{
				Secret:   []byte(cfg.JWTSecret),
				Issuer:   cfg.JWTIssuer,
				Audience: cfg.JWTAudience,
				TTL:      cfg.JWTTTL,
			})
			if err != nil {
				return err
			}
			tok, err := p.Issue(id, name)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, tok)
			return err
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "user id (subject)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	return cmd
}
