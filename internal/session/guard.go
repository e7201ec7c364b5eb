package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"bistro/internal/apperrors"
	"bistro/internal/client"
	"bistro/internal/logger"
	"bistro/internal/monitoring"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

var errThrottled = &apperrors.AuthenticationError{Throttled: true}

// Options tunes a Guard
type Options struct {
	// MinRefreshInterval throttles refresh attempts
	MinRefreshInterval time.Duration
	// MaxFailures consecutive refresh failures force a logout
	MaxFailures int
	Now         func() time.Time
	Logger      *logger.Logger
	Monitor     *monitoring.Monitor
}

// Guard wraps every remote call. On a 401 it refreshes the session once and
// replays the call once. Concurrent refreshes share one in-flight attempt.
type Guard struct {
	doer      client.Doer
	sess      *Context
	refresher Refresher
	limiter   *rate.Limiter
	group     singleflight.Group
	opts      Options

	hooksMu  sync.Mutex
	onLogout []func()
}

// NewGuard creates a guard over the raw transport
func NewGuard(doer client.Doer, sess *Context, refresher Refresher, opts Options) *Guard {
	if opts.MinRefreshInterval <= 0 {
		opts.MinRefreshInterval = 5 * time.Second
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 3
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	return &Guard{
		doer:      doer,
		sess:      sess,
		refresher: refresher,
		limiter:   rate.NewLimiter(rate.Every(opts.MinRefreshInterval), 1),
		opts:      opts,
	}
}

// Session exposes the guarded session state
func (g *Guard) Session() *Context {
	return g.sess
}

// OnLogout registers a hook run after a forced logout
func (g *Guard) OnLogout(fn func()) {
	g.hooksMu.Lock()
	defer g.hooksMu.Unlock()
	g.onLogout = append(g.onLogout, fn)
}

// Do sends req with the current credentials
func (g *Guard) Do(ctx context.Context, req *client.Request) (*client.Response, error) {
	if g.sess.LoggedOut() {
		return nil, &apperrors.AuthenticationError{LoggedOut: true}
	}

	if token := g.sess.AccessToken(); token != "" && g.expired(token) {
		// a failed proactive refresh is not fatal; the server gets the last word
		if err := g.refresh(ctx, token); err != nil {
			g.opts.Logger.Debug("session_refresh", "", "proactive refresh failed", slog.String("error", err.Error()))
		}
	}

	used := g.sess.AccessToken()
	resp, err := g.send(ctx, req, used)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	if err := g.refresh(ctx, used); err != nil {
		return nil, err
	}

	replay, err := g.send(ctx, req, g.sess.AccessToken())
	if err != nil {
		return nil, err
	}
	if replay.StatusCode == http.StatusUnauthorized {
		g.fail(ctx)
	}
	return replay, nil
}

func (g *Guard) send(ctx context.Context, req *client.Request, token string) (*client.Response, error) {
	out := req.Clone()
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	return g.doer.Do(ctx, out)
}

// refresh rotates the access token unless another caller already did so
// after stale was issued
func (g *Guard) refresh(ctx context.Context, stale string) error {
	_, err, shared := g.group.Do("refresh", func() (interface{}, error) {
		if current := g.sess.AccessToken(); current != "" && current != stale {
			return nil, nil
		}
		if !g.limiter.AllowN(g.opts.Now(), 1) {
			g.opts.Monitor.SessionRefreshed("throttled")
			return nil, errThrottled
		}

		access, refresh, err := g.refresher.Refresh(ctx, g.sess.RefreshToken())
		if err != nil {
			g.opts.Logger.Error("session_refresh", "", "session refresh failed", err)
			g.opts.Monitor.SessionRefreshed("failed")
			g.fail(ctx)
			return nil, err
		}

		g.sess.SetTokens(access, refresh)
		g.sess.recordRefresh(g.opts.Now())
		g.opts.Monitor.SessionRefreshed("success")
		g.opts.Logger.Info("session_refresh", "", "session refreshed")
		return nil, nil
	})
	if shared {
		g.opts.Logger.Debug("session_refresh", "", "joined in-flight refresh")
	}
	if err == nil {
		return nil
	}

	var authErr *apperrors.AuthenticationError
	if errors.As(err, &authErr) {
		if g.sess.LoggedOut() {
			return &apperrors.AuthenticationError{Message: authErr.Message, LoggedOut: true}
		}
		return err
	}
	return &apperrors.AuthenticationError{Message: err.Error(), LoggedOut: g.sess.LoggedOut()}
}

func (g *Guard) fail(ctx context.Context) {
	if n := g.sess.recordFailure(); n >= g.opts.MaxFailures {
		g.Logout(ctx)
	}
}

// Logout clears all session and anti-forgery state unconditionally
func (g *Guard) Logout(ctx context.Context) {
	g.sess.Clear()
	g.opts.Monitor.SessionRefreshed("logout")
	g.opts.Logger.Warn("session_logout", "", "session cleared after repeated authentication failures")

	g.hooksMu.Lock()
	hooks := append([]func(){}, g.onLogout...)
	g.hooksMu.Unlock()
	for _, hook := range hooks {
		hook()
	}
}

// expired reports whether a JWT access token's exp claim has passed. Opaque
// tokens are never considered expired.
func (g *Guard) expired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return false
	}
	if _, ok := claims["exp"]; !ok {
		return false
	}
	return !claims.VerifyExpiresAt(g.opts.Now().Unix(), true)
}
