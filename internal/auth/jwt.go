package auth

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the player identity. Subject is the stable id.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Guest bool   `json:"guest,omitempty"`
	jwt.RegisteredClaims
}

type JWTConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
}

// JWTProvider validates HS256 tokens issued by the surrounding web layer.
type JWTProvider struct {
	cfg JWTConfig
	now func() time.Time
}

func NewJWTProvider(cfg JWTConfig) (*JWTProvider, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &JWTProvider{cfg: cfg, now: time.Now}, nil
}

// Issue signs a token for id. Used by the token CLI and tests.
func (p *JWTProvider) Issue(id, name string) (string, error) {
	now := p.now()
	claims := Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			Issuer:    p.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.cfg.TTL)),
		},
	}
	if p.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{p.cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.cfg.Secret)
}

func (p *JWTProvider) Resolve(_ context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.cfg.Secret, nil
	}, jwt.WithTimeFunc(p.now))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, fmt.Errorf("%w: invalid claims", ErrUnauthenticated)
	}
	if p.cfg.Issuer != "" && claims.Issuer != p.cfg.Issuer {
		return Identity{}, fmt.Errorf("%w: invalid issuer", ErrUnauthenticated)
	}
	if p.cfg.Audience != "" && !slices.Contains(claims.Audience, p.cfg.Audience) {
		return Identity{}, fmt.Errorf("%w: invalid audience", ErrUnauthenticated)
	}
	return Identity{ID: claims.Subject, Name: claims.Name, Guest: claims.Guest}, nil
}
