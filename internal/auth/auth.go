package auth

import (
	"context"
	"net/http"
	"strings"
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

const ErrUnauthenticated staticErr = "unauthenticated"

// Identity is the stable identity bound to a connection.
type Identity struct {
	ID    string
	Name  string
	Guest bool
}

// Provider resolves a handshake token into an Identity.
type Provider interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

// TokenFromRequest reads a bearer token from the Authorization header, falling back
// to the token query parameter (browsers cannot set headers on websocket upgrades).
func TokenFromRequest(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// Insecure trusts the token as the identity itself. Development only.
type Insecure struct{}

func (Insecure) Resolve(_ context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{ID: token, Name: token}, nil
}
