package mockapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Fault overrides the response of one route. Path is the route pattern as
// registered, e.g. /api/orders/:id/status.
type Fault struct {
	Method string `json:"method" binding:"required"`
	Path   string `json:"path" binding:"required"`
	// Status and Body replace the response
	Status int    `json:"status"`
	Body   string `json:"body"`
	// Drop closes the connection without answering, after the handler ran
	// when AfterHandler is set
	Drop         bool `json:"drop"`
	AfterHandler bool `json:"afterHandler"`
	// Times limits how often the fault fires; 0 means until cleared
	Times int `json:"times"`
}

func faultKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// InjectFault registers f, replacing any fault on the same route
func (s *Server) InjectFault(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[faultKey(f.Method, f.Path)] = &f
}

// ClearFaults removes every injected fault
func (s *Server) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[string]*Fault)
}

func (s *Server) takeFault(method, path string) (Fault, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := faultKey(method, path)
	f, ok := s.faults[key]
	if !ok {
		return Fault{}, false
	}
	if f.Times > 0 {
		f.Times--
		if f.Times == 0 {
			delete(s.faults, key)
		}
	}
	return *f, true
}

func (s *Server) faultInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		fault, ok := s.takeFault(c.Request.Method, c.FullPath())
		if !ok {
			c.Next()
			return
		}

		s.log.Debug("mock_fault", "", "injecting fault on "+faultKey(c.Request.Method, c.FullPath()))
		switch {
		case fault.Drop && fault.AfterHandler:
			// the mutation happens, the client never hears about it
			c.Writer = &discardWriter{ResponseWriter: c.Writer}
			c.Next()
			drop(c)
		case fault.Drop:
			drop(c)
			c.Abort()
		default:
			c.Data(fault.Status, "application/json", []byte(fault.Body))
			c.Abort()
		}
	}
}

// discardWriter swallows the handler's response so the connection can be
// dropped afterwards
type discardWriter struct {
	gin.ResponseWriter
}

func (w *discardWriter) Write(b []byte) (int, error)       { return len(b), nil }
func (w *discardWriter) WriteString(s string) (int, error) { return len(s), nil }
func (w *discardWriter) WriteHeader(int)                   {}
func (w *discardWriter) WriteHeaderNow()                   {}

func drop(c *gin.Context) {
	conn, _, err := c.Writer.Hijack()
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	conn.Close()
}

func (s *Server) handleInjectFault(c *gin.Context) {
	var f Fault
	if err := c.ShouldBindJSON(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !f.Drop && f.Status == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status or drop is required"})
		return
	}
	s.InjectFault(f)
	c.JSON(http.StatusCreated, gin.H{"success": true})
}

func (s *Server) handleClearFaults(c *gin.Context) {
	s.ClearFaults()
	c.Status(http.StatusNoContent)
}
