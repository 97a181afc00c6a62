// Package server wires the reranking service into an HTTP API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rerankd/rerankd"
	"github.com/rerankd/rerankd/pkg/config"
	"github.com/rerankd/rerankd/pkg/server/handlers"
)

// Server serves the reranking HTTP API.
type Server struct {
	cfg        *config.Config
	svc        *rerankd.Service
	logger     *slog.Logger
	engine     *gin.Engine
	httpServer *http.Server
}

// New creates a new server around svc.
func New(cfg *config.Config, svc *rerankd.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		svc:    svc,
		logger: logger,
	}
}

// Setup configures the gin engine, middleware, and routes.
func (s *Server) Setup() {
	switch s.cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestIDMiddleware())
	engine.Use(requestLoggingMiddleware(s.logger))

	RegisterRoutes(engine, s.svc)

	s.engine = engine
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler: engine,
		// Scoring a large batch on CPU can be slow; keep the write window
		// generous.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
}

// RegisterRoutes mounts the API routes on engine. Split out so tests can
// build an engine without a listening server.
func RegisterRoutes(engine *gin.Engine, svc *rerankd.Service) {
	rankHandler := handlers.NewRankHandler(svc)
	healthHandler := handlers.NewHealthHandler(svc)
	adminHandler := handlers.NewAdminHandler(svc)

	engine.GET("/", handlers.Instructions)
	engine.POST("/rank", rankHandler.Rank)
	engine.GET("/health", healthHandler.Health)
	engine.POST("/unload", adminHandler.Unload)
	engine.GET("/selftest", adminHandler.SelfTest)
}

// Start begins serving. Blocks until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server and unloads the model.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}
	s.svc.Unload()
	s.logger.Info("HTTP server stopped")
	return nil
}

// requestIDMiddleware tags every request with an ID, honoring one supplied
// by the client.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// requestLoggingMiddleware logs each request after it completes.
func requestLoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"duration", time.Since(start),
			"request_id", c.GetString("request_id"),
		)
	}
}
