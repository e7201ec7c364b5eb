// Package session owns authentication state and the guard that every remote
// call passes through.
package session

import (
	"sync"
	"time"
)

// Context is the explicit session state: auth tokens, the cached
// anti-forgery token, the consecutive refresh-failure counter and the time
// of the last successful refresh. The guard and the CSRF manager are its
// only writers.
type Context struct {
	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	csrfToken    string
	failures     int
	lastRefresh  time.Time
	loggedOut    bool
}

// NewContext starts a session with the given tokens
func NewContext(accessToken, refreshToken string) *Context {
	return &Context{accessToken: accessToken, refreshToken: refreshToken}
}

func (c *Context) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

func (c *Context) RefreshToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshToken
}

// SetTokens installs new credentials and revives a logged-out session
func (c *Context) SetTokens(accessToken, refreshToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = accessToken
	if refreshToken != "" {
		c.refreshToken = refreshToken
	}
	c.loggedOut = false
}

func (c *Context) CSRFToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.csrfToken
}

func (c *Context) SetCSRFToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.csrfToken = token
}

// Failures returns the consecutive refresh-failure count
func (c *Context) Failures() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failures
}

func (c *Context) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh
}

func (c *Context) LoggedOut() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loggedOut
}

func (c *Context) recordRefresh(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = 0
	c.lastRefresh = at
}

func (c *Context) recordFailure() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	return c.failures
}

// Clear wipes every credential and marks the session logged out
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = ""
	c.refreshToken = ""
	c.csrfToken = ""
	c.failures = 0
	c.loggedOut = true
}
