// Package csrf acquires, caches and attaches the anti-forgery token that
// every state-mutating request must carry.
package csrf

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"bistro/internal/apperrors"
	"bistro/internal/client"
	"bistro/internal/logger"
	"bistro/internal/monitoring"
	"bistro/internal/session"
	"bistro/internal/storage"

	"golang.org/x/sync/singleflight"
)

const (
	HeaderName    = "X-CSRF-Token"
	AltHeaderName = "X-XSRF-TOKEN"
	CookieName    = "XSRF-TOKEN"
	TokenPath     = "/api/csrf-token"
)

// CookieSource reads cookies the backend has set on the client
type CookieSource interface {
	Cookie(name string) string
}

// Manager is the only writer of the anti-forgery token. The token lives in
// the session context and in short-lived session storage.
type Manager struct {
	doer    client.Doer
	cookies CookieSource
	sess    *session.Context
	cache   storage.Store
	group   singleflight.Group
	log     *logger.Logger
	monitor *monitoring.Monitor
}

// NewManager fetches tokens through doer and falls back to cookies. cache is
// the session-scoped store; it may be nil.
func NewManager(doer client.Doer, cookies CookieSource, sess *session.Context, cache storage.Store, log *logger.Logger, monitor *monitoring.Monitor) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		doer:    doer,
		cookies: cookies,
		sess:    sess,
		cache:   cache,
		log:     log,
		monitor: monitor,
	}
}

// EnsureToken returns the cached token, fetching one if none is cached.
// Concurrent callers share a single outbound request.
func (m *Manager) EnsureToken(ctx context.Context) (string, error) {
	if token := m.sess.CSRFToken(); token != "" {
		return token, nil
	}
	if m.cache != nil {
		if token, err := m.cache.Get(ctx, storage.KeyCSRFToken); err == nil && token != "" {
			m.sess.SetCSRFToken(token)
			return token, nil
		}
	}
	return m.fetch(ctx)
}

// FreshToken discards any cached token and acquires a new one. Tokens are not
// reused across logical operations.
func (m *Manager) FreshToken(ctx context.Context) (string, error) {
	m.Invalidate()
	return m.EnsureToken(ctx)
}

// Invalidate forgets the cached token
func (m *Manager) Invalidate() {
	m.sess.SetCSRFToken("")
	if m.cache != nil {
		_ = m.cache.Delete(context.Background(), storage.KeyCSRFToken)
	}
}

// Attach decorates outgoing headers with token
func Attach(h http.Header, token string) {
	h.Set(HeaderName, token)
	h.Set(AltHeaderName, token)
}

type tokenResponse struct {
	CSRFToken string `json:"csrfToken"`
	Token     string `json:"token"`
}

func (m *Manager) fetch(ctx context.Context) (string, error) {
	v, err, _ := m.group.Do("token", func() (interface{}, error) {
		token, source := m.fromEndpoint(ctx), "endpoint"
		if token == "" && m.cookies != nil {
			token, source = m.cookies.Cookie(CookieName), "cookie"
		}
		if token == "" {
			m.monitor.TokenFetched("missing")
			return "", &apperrors.SecurityTokenError{Message: "no anti-forgery token available"}
		}

		m.sess.SetCSRFToken(token)
		if m.cache != nil {
			if err := m.cache.Set(ctx, storage.KeyCSRFToken, token); err != nil {
				m.log.Error("csrf_fetch", "", "failed to cache token", err)
			}
		}
		m.monitor.TokenFetched(source)
		m.log.Debug("csrf_fetch", "", "anti-forgery token acquired", slog.String("source", source))
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) fromEndpoint(ctx context.Context) string {
	resp, err := m.doer.Do(ctx, client.NewRequest(http.MethodGet, TokenPath, nil))
	if err != nil {
		m.log.Warn("csrf_fetch", "", "token endpoint unreachable", slog.String("error", err.Error()))
		return ""
	}
	if !resp.OK() {
		m.log.Warn("csrf_fetch", "", "token endpoint refused", slog.Int("status", resp.StatusCode))
		return ""
	}

	var body tokenResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return ""
	}
	if body.CSRFToken != "" {
		return body.CSRFToken
	}
	return body.Token
}

// Send dispatches a mutating request with a freshly acquired token. If the
// backend rejects the token the request is replayed exactly once with a new
// one; a second rejection is a SecurityTokenError.
func (m *Manager) Send(ctx context.Context, doer client.Doer, req *client.Request) (*client.Response, error) {
	defer m.Invalidate()

	resp, err := m.sendWithFreshToken(ctx, doer, req)
	if err != nil {
		return nil, err
	}
	if !apperrors.IsCSRFRejection(resp.StatusCode, resp.Body) {
		return resp, nil
	}

	m.log.Warn("csrf_replay", "", "anti-forgery token rejected, replaying once",
		slog.String("method", req.Method), slog.String("path", req.Path))

	resp, err = m.sendWithFreshToken(ctx, doer, req)
	if err != nil {
		return nil, err
	}
	if apperrors.IsCSRFRejection(resp.StatusCode, resp.Body) {
		return resp, &apperrors.SecurityTokenError{Message: apperrors.ServerMessage(resp.Body)}
	}
	return resp, nil
}

func (m *Manager) sendWithFreshToken(ctx context.Context, doer client.Doer, req *client.Request) (*client.Response, error) {
	token, err := m.FreshToken(ctx)
	if err != nil {
		var tokenErr *apperrors.SecurityTokenError
		if errors.As(err, &tokenErr) {
			return nil, err
		}
		return nil, &apperrors.SecurityTokenError{Message: err.Error()}
	}

	out := req.Clone()
	Attach(out.Header, token)
	return doer.Do(ctx, out)
}
