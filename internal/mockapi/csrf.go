package mockapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	csrfHeader    = "X-CSRF-Token"
	csrfAltHeader = "X-XSRF-TOKEN"
	csrfCookie    = "XSRF-TOKEN"
)

// issueCSRFToken hands out a single-use token, also set as a cookie
func (s *Server) issueCSRFToken(c *gin.Context) {
	token := uuid.NewString()

	s.mu.Lock()
	s.tokens[token] = struct{}{}
	s.mu.Unlock()

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(csrfCookie, token, 600, "/", "", false, false)
	c.JSON(http.StatusOK, gin.H{"csrfToken": token})
}

// IssueCSRFToken mints a token without a request, for tests
func (s *Server) IssueCSRFToken() string {
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = struct{}{}
	s.mu.Unlock()
	return token
}

// consumeToken reports whether token was outstanding and retires it
func (s *Server) consumeToken(token string) bool {
	if token == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[token]; !ok {
		return false
	}
	delete(s.tokens, token)
	return true
}

func (s *Server) csrfMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(csrfHeader)
		if token == "" {
			token = c.GetHeader(csrfAltHeader)
		}
		if !s.consumeToken(token) {
			c.JSON(http.StatusForbidden, gin.H{"code": "CSRF_INVALID", "error": "invalid csrf token"})
			c.Abort()
			return
		}
		c.Next()
	}
}
