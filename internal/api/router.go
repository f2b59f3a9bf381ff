package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/to-wer/media-renamer/internal/config"
	"github.com/to-wer/media-renamer/internal/httpauth"
	"github.com/to-wer/media-renamer/internal/service"
	"github.com/to-wer/media-renamer/internal/watcher"
)

// Scanner is the part of the watcher the API drives.
type Scanner interface {
	TriggerScan() bool
	GetStatus() watcher.Status
}

// Compile-time verification
var _ Scanner = (*watcher.Service)(nil)

// Server represents the REST API server
type Server struct {
	router    *gin.Engine
	proposals *service.ProposalService
	scanner   Scanner // Optional: nil when the watcher is not running
	auth      config.AuthConfig
}

// Option configures a Server.
type Option func(*Server)

// WithScanner enables /api/scan and adds watcher state to /api/status.
func WithScanner(sc Scanner) Option {
	return func(s *Server) {
		s.scanner = sc
	}
}

// WithAuth protects every route with basic auth.
func WithAuth(cfg config.AuthConfig) Option {
	return func(s *Server) {
		s.auth = cfg
	}
}

// NewServer creates a new API server
func NewServer(proposals *service.ProposalService, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:    gin.New(),
		proposals: proposals,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.router.Use(gin.Recovery())

	// Logging middleware
	s.router.Use(func(c *gin.Context) {
		c.Next()
		slog.Info("API request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	})

	// CORS for development
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")

	// Proposals
	api.GET("/proposals", s.listProposals)
	api.DELETE("/proposals", s.clearProposals)
	api.GET("/proposals/pending", s.listPending)
	api.GET("/proposals/history", s.listHistory)
	api.GET("/proposals/stats", s.getStats)
	api.POST("/proposals/delete", s.deleteProposals)
	api.GET("/proposals/:id", s.getProposal)
	api.DELETE("/proposals/:id", s.deleteProposal)
	api.POST("/proposals/:id/approve", s.approveProposal)
	api.POST("/proposals/:id/reject", s.rejectProposal)
	api.PUT("/proposals/:id/name", s.renameProposal)

	// Tools
	api.POST("/parse", s.parseFilename)
	api.POST("/scan", s.triggerScan)

	// Status
	api.GET("/status", s.getStatus)
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return httpauth.Wrap(s.router, s.auth, "media-renamer")
}

// Error response helper
func errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
