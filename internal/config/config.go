package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"

	"github.com/park285/cheese-arena/internal/obslog"
)

const (
	AuthJWT    = "jwt"
	AuthRemote = "remote"
	AuthNone   = "none"
)

type AppConfig struct {
	HTTPAddr        string        `env:"HTTP_ADDR,default=:8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`

	RedisURL    string `env:"REDIS_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	AuthMode          string        `env:"AUTH_MODE,default=jwt"`
	JWTSecret         string        `env:"JWT_SECRET"`
	JWTIssuer         string        `env:"JWT_ISSUER,default=cheese-arena"`
	JWTAudience       string        `env:"JWT_AUDIENCE"`
	JWTTTL            time.Duration `env:"JWT_TTL,default=24h"`
	AuthRemoteURL     string        `env:"AUTH_REMOTE_URL"`
	AuthRemoteTimeout time.Duration `env:"AUTH_REMOTE_TIMEOUT,default=3s"`

	WSSendBuffer      int           `env:"WS_SEND_BUFFER,default=64"`
	WSPingInterval    time.Duration `env:"WS_PING_INTERVAL,default=30s"`
	WSReadLimit       int64         `env:"WS_READ_LIMIT,default=8192"`
	WSAllowedOriginsS string        `env:"WS_ALLOWED_ORIGINS"`

	ChatHistorySize      int    `env:"CHAT_HISTORY_SIZE,default=50"`
	ChatMaxMessageLength int    `env:"CHAT_MAX_MESSAGE_LENGTH,default=500"`
	ChatCensoredWordsS   string `env:"CHAT_CENSORED_WORDS"`
	ChatCensorChar       string `env:"CHAT_CENSOR_CHAR,default=*"`

	StoreQueueSize int `env:"STORE_QUEUE_SIZE,default=256"`

	MsgOverrideDir string `env:"MSG_OVERRIDE_DIR"`

	LogLevel   string `env:"LOG_LEVEL,default=info"`
	LogFormat  string `env:"LOG_FORMAT,default=legacy"`
	LogConsole bool   `env:"LOG_TO_CONSOLE,default=true"`
	LogFile    string `env:"LOG_FILE"`
	LogCaller  bool   `env:"LOG_CALLER,default=false"`

	// comma lists, split by Load
	WSAllowedOrigins  []string
	ChatCensoredWords []string
}

// Load reads an optional .env file, then the process environment.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnviron()
}

// FromEnviron binds the current environment without touching .env.
func FromEnviron() (*AppConfig, error) {
	cfg := &AppConfig{}
	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) normalize() {
	c.HTTPAddr = strings.TrimSpace(c.HTTPAddr)
	c.RedisURL = strings.TrimSpace(c.RedisURL)
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.AuthMode = strings.ToLower(strings.TrimSpace(c.AuthMode))
	c.JWTSecret = strings.TrimSpace(c.JWTSecret)
	c.AuthRemoteURL = strings.TrimSpace(c.AuthRemoteURL)
	c.MsgOverrideDir = strings.TrimSpace(c.MsgOverrideDir)
	c.WSAllowedOrigins = splitList(c.WSAllowedOriginsS)
	c.ChatCensoredWords = splitList(c.ChatCensoredWordsS)
}

func (c *AppConfig) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR is required"))
	}
	switch c.AuthMode {
	case AuthJWT:
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required when AUTH_MODE=jwt"))
		}
	case AuthRemote:
		if c.AuthRemoteURL == "" {
			errs = append(errs, errors.New("AUTH_REMOTE_URL is required when AUTH_MODE=remote"))
		}
	case AuthNone:
	default:
		errs = append(errs, fmt.Errorf("AUTH_MODE must be jwt, remote or none (got %q)", c.AuthMode))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	if c.WSSendBuffer <= 0 {
		errs = append(errs, errors.New("WS_SEND_BUFFER must be positive"))
	}
	if c.WSReadLimit <= 0 {
		errs = append(errs, errors.New("WS_READ_LIMIT must be positive"))
	}
	if c.ChatHistorySize < 0 || c.ChatMaxMessageLength <= 0 {
		errs = append(errs, errors.New("CHAT_HISTORY_SIZE and CHAT_MAX_MESSAGE_LENGTH are out of range"))
	}
	if len([]rune(c.ChatCensorChar)) != 1 {
		errs = append(errs, errors.New("CHAT_CENSOR_CHAR must be a single character"))
	}
	if c.StoreQueueSize <= 0 {
		errs = append(errs, errors.New("STORE_QUEUE_SIZE must be positive"))
	}
	return errors.Join(errs...)
}

// CensorRune is the replacement rune for moderated words.
func (c *AppConfig) CensorRune() rune {
	for _, r := range c.ChatCensorChar {
		return r
	}
	return '*'
}

func (c *AppConfig) Log() obslog.Config {
	return obslog.Config{
		Level:   c.LogLevel,
		Format:  c.LogFormat,
		Console: c.LogConsole,
		File:    c.LogFile,
		Caller:  c.LogCaller,
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
