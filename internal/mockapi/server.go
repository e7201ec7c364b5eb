// Package mockapi is an in-memory implementation of the restaurant backend
// the checkout client talks to. It backs the integration tests and the
// mock-server command.
package mockapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"bistro/internal/logger"
	"bistro/internal/models"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Options configure the mock backend
type Options struct {
	// Secret signs access and refresh tokens
	Secret string
	// RequireAuth protects the order and payment routes with a bearer JWT
	RequireAuth bool
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	// Users maps usernames to passwords for /api/auth/login
	Users map[string]string
	// TaxRate is used to recompute order totals
	TaxRate decimal.Decimal
	Logger  *logger.Logger
}

// Server is the mock restaurant backend
type Server struct {
	router *gin.Engine
	opts   Options
	log    *logger.Logger

	mu       sync.Mutex
	tokens   map[string]struct{}
	orders   map[int64]*order
	orderIDs []int64
	nextID   int64
	payments []payment
	faults   map[string]*Fault

	hub *hub
}

// NewServer creates a mock backend with its routes registered
func NewServer(opts Options) *Server {
	if opts.Secret == "" {
		opts.Secret = "bistro-mock-secret"
	}
	if opts.AccessTTL == 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.RefreshTTL == 0 {
		opts.RefreshTTL = 24 * time.Hour
	}
	if opts.Users == nil {
		opts.Users = map[string]string{"staff": "bistro"}
	}
	if opts.TaxRate.IsZero() {
		opts.TaxRate = decimal.RequireFromString("0.10")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	s := &Server{
		router: gin.New(),
		opts:   opts,
		log:    opts.Logger,
		tokens: make(map[string]struct{}),
		orders: make(map[int64]*order),
		nextID: 1000,
		faults: make(map[string]*Fault),
	}
	s.hub = newHub(s.log)
	s.setupRoutes()
	return s
}

// Router returns the Gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Close disconnects every stream subscriber
func (s *Server) Close() {
	s.hub.close()
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery(), s.requestLogger(), s.faultInjector())

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "bistro mock backend is running"})
	})

	api := s.router.Group("/api")
	{
		api.GET("/csrf-token", s.issueCSRFToken)
		api.POST("/auth/login", s.login)
		api.POST("/auth/refresh", s.refresh)

		api.POST("/_faults", s.handleInjectFault)
		api.DELETE("/_faults", s.handleClearFaults)
	}

	protected := api.Group("")
	if s.opts.RequireAuth {
		protected.Use(s.AuthMiddleware())
	}
	{
		protected.GET("/orders", s.listOrders)
		protected.GET("/orders/stream", s.handleStream)
		protected.GET("/orders/:id", s.getOrder)
	}

	mutating := protected.Group("")
	mutating.Use(s.csrfMiddleware())
	{
		mutating.POST("/orders", s.createOrder)
		mutating.PUT("/orders/:id", s.updateOrder)
		mutating.PUT("/orders/:id/status", s.updateOrderStatus)
		mutating.DELETE("/orders/:id", s.deleteOrder)

		mutating.POST("/payments/process-card", s.processCard)
		mutating.POST("/payments/cash", s.registerCash)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("mock_request", c.GetHeader("X-Request-ID"), "request served",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)))
	}
}

type tokenClaims struct {
	Kind string `json:"kind"`
	jwt.StandardClaims
}

// IssueTokens signs an access and a refresh token for subject
func (s *Server) IssueTokens(subject string) (access, refresh string, err error) {
	access, err = s.sign(subject, "access", s.opts.AccessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err = s.sign(subject, "refresh", s.opts.RefreshTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (s *Server) sign(subject, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Kind: kind,
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.opts.Secret))
}

func (s *Server) parse(tokenString, kind string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.opts.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %v", err)
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("expected a %s token", kind)
	}
	return claims, nil
}

// AuthMiddleware handles JWT authentication
func (s *Server) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		claims, err := s.parse(strings.TrimPrefix(header, "Bearer "), "access")
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set("subject", claims.Subject)
		c.Next()
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if password, ok := s.opts.Users[req.Username]; !ok || password != req.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	s.respondWithTokens(c, req.Username)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (s *Server) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Refresh token required"})
		return
	}
	claims, err := s.parse(req.RefreshToken, "refresh")
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}
	s.respondWithTokens(c, claims.Subject)
}

func (s *Server) respondWithTokens(c *gin.Context, subject string) {
	access, refresh, err := s.IssueTokens(subject)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessToken": access, "refreshToken": refresh})
}

// broadcastStatus pushes a status change to stream subscribers
func (s *Server) broadcastStatus(id int64, status models.OrderStatus) {
	s.hub.broadcast(statusEvent{OrderID: fmt.Sprint(id), Status: status, At: time.Now().UTC()})
}
