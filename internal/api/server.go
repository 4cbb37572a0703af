// Package api exposes the assessment service over HTTP: catalog navigation, evaluation,
// progress, export and a websocket session for incremental scoring.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/clinical-assessment-engine/internal/domain"
	"github.com/clinical-assessment-engine/internal/middleware"
	"github.com/clinical-assessment-engine/internal/service"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	service       *service.AssessmentService
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
	upgrader      websocket.Upgrader
	started       time.Time
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, svc *service.AssessmentService, logger *logrus.Logger) (*Server, error) {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.AuditLogger(logger))
	if cfg.RateLimit.Enabled {
		limiter, err := middleware.NewRateLimiter(cfg.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		router.Use(limiter.Middleware())
	}

	s := &Server{
		configManager: configManager,
		service:       svc,
		logger:        logger,
		router:        router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		started: time.Now(),
	}
	s.setupRoutes(cfg.Server.WriteTimeout)

	return s, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithFields(logrus.Fields{
			"addr": addr,
			"tls":  cfg.TLSEnabled,
		}).Info("HTTP server listening")

		var err error
		if cfg.TLSEnabled {
			err = s.server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes(requestTimeout time.Duration) {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/assessments", s.handleListAssessments)
		v1.GET("/assessments/:id", s.handleGetAssessment)
		// The websocket session outlives any request timeout.
		v1.GET("/assessments/:id/live", s.handleLive)

		scored := v1.Group("/assessments/:id", middleware.RequestTimeout(requestTimeout))
		scored.POST("/evaluate", s.handleEvaluate)
		scored.POST("/progress", s.handleProgress)
		scored.POST("/export", s.handleExport)
	}
}
