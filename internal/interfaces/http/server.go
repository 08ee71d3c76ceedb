// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/flow-forge/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// DefaultCallerHeader carries the authenticated caller identity
const DefaultCallerHeader = "X-Caller-Identity"

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	Mode            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CallerHeader    string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		Mode:            gin.ReleaseMode,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		CallerHeader:    DefaultCallerHeader,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config          ServerConfig
	httpServer      *http.Server
	router          *gin.Engine
	workflowService service.WorkflowService
	templateService service.TemplateService
	logger          Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	workflowService service.WorkflowService,
	templateService service.TemplateService,
	logger Logger,
) *Server {
	if config.Mode == "" {
		config.Mode = gin.ReleaseMode
	}
	if config.CallerHeader == "" {
		config.CallerHeader = DefaultCallerHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}
	gin.SetMode(config.Mode)

	server := &Server{
		config:          config,
		router:          gin.New(),
		workflowService: workflowService,
		templateService: templateService,
		logger:          logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"caller", c.GetString(callerKey),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.workflowService, s.templateService, s.logger)

	s.router.GET("/health", handlers.HealthCheck)

	api := s.router.Group("/api")
	api.Use(callerIdentity(s.config.CallerHeader))
	{
		api.POST("/workflows", handlers.CreateWorkflow)
		api.GET("/workflows/:id", handlers.GetWorkflow)
		api.GET("/workflows/:id/state", handlers.GetWorkflowState)
		api.GET("/workflows/:id/transitions", handlers.ListTransitionRules)
		api.GET("/workflows/:id/transitions/:state", handlers.GetTransitionRule)
		api.PUT("/workflows/:id/transitions/:state", handlers.DefineTransitions)
		api.POST("/workflows/:id/transition", handlers.TransitionWorkflow)

		api.POST("/templates", handlers.CreateTemplate)
		api.GET("/templates/:id", handlers.GetTemplate)
		api.POST("/templates/:id/workflows", handlers.CreateWorkflowFromTemplate)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled or the
// listener fails
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
