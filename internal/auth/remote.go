package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// RemoteProvider asks the web layer's session endpoint who a token belongs to.
type RemoteProvider struct {
	url  string
	http *fasthttp.Client

	timeout  time.Duration
	retryMax int
}

type RemoteOption func(*RemoteProvider)

func WithRemoteTimeout(d time.Duration) RemoteOption {
	return func(p *RemoteProvider) { p.timeout = d }
}

func WithRemoteRetry(n int) RemoteOption {
	return func(p *RemoteProvider) { p.retryMax = n }
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Guest  bool   `json:"guest"`
}

// NewRemoteProvider builds a provider that POSTs {"token"} to verifyURL and expects
// {"userId","name"} back. 401/403 mean the token is rejected.
func NewRemoteProvider(verifyURL string, opts ...RemoteOption) *RemoteProvider {
	p := &RemoteProvider{
		url:      strings.TrimSpace(verifyURL),
		http:     &fasthttp.Client{ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second, MaxConnsPerHost: 32},
		timeout:  3 * time.Second,
		retryMax: 3,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *RemoteProvider) Resolve(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}
	payload, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return Identity{}, fmt.Errorf("marshal verify request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(p.url)
	req.Header.SetContentType("application/json")
	req.SetBody(payload)

	attempts := max(p.retryMax, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := p.http.DoDeadline(req, resp, p.deadline(ctx))
		switch {
		case err != nil:
			lastErr = fmt.Errorf("verify request: %w", err)
		case resp.StatusCode() == fasthttp.StatusUnauthorized, resp.StatusCode() == fasthttp.StatusForbidden:
			return Identity{}, ErrUnauthenticated
		case resp.StatusCode() < 200 || resp.StatusCode() >= 300:
			lastErr = fmt.Errorf("verify status=%d", resp.StatusCode())
			if !shouldRetryStatus(resp.StatusCode()) {
				return Identity{}, lastErr
			}
		default:
			var out verifyResponse
			if err := json.Unmarshal(resp.Body(), &out); err != nil {
				return Identity{}, fmt.Errorf("decode verify response: %w", err)
			}
			if strings.TrimSpace(out.UserID) == "" {
				return Identity{}, fmt.Errorf("%w: empty user id", ErrUnauthenticated)
			}
			return Identity{ID: out.UserID, Name: out.Name, Guest: out.Guest}, nil
		}
		if attempt == attempts {
			break
		}
		if err := sleepWithContext(ctx, backoffDuration(attempt)); err != nil {
			return Identity{}, errors.Join(lastErr, err)
		}
	}
	return Identity{}, lastErr
}

func (p *RemoteProvider) deadline(ctx context.Context) time.Time {
	dl := time.Now().Add(p.timeout)
	if ctxDL, ok := ctx.Deadline(); ok && ctxDL.Before(dl) {
		return ctxDL
	}
	return dl
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// 100ms, 200ms, 400ms ... capped at 3.2s
func backoffDuration(attempt int) time.Duration {
	attempt = min(max(attempt, 1), 6)
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
