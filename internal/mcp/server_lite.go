package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clinical-assessment-engine/internal/cache"
	"github.com/clinical-assessment-engine/internal/catalog"
	litecfg "github.com/clinical-assessment-engine/internal/config"
	"github.com/clinical-assessment-engine/internal/definitionstore"
	"github.com/clinical-assessment-engine/internal/domain"
	"github.com/clinical-assessment-engine/internal/service"
)

// LiteServer is a lightweight MCP server that requires no external databases.
// It uses an in-memory result cache and a SQLite definition store.
type LiteServer struct {
	config  *litecfg.LiteConfig
	server  *Server
	service *service.AssessmentService
	store   definitionstore.Store
	cache   *cache.MemoryCache
	logger  *logrus.Logger
}

// LiteServerOption is a functional option for LiteServer.
type LiteServerOption func(*LiteServer) error

// WithDefinitionStore sets a custom definition store.
func WithDefinitionStore(store definitionstore.Store) LiteServerOption {
	return func(s *LiteServer) error {
		s.store = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) LiteServerOption {
	return func(s *LiteServer) error {
		s.logger = logger
		return nil
	}
}

// NewLiteServer creates a new lightweight MCP server instance.
func NewLiteServer(ctx context.Context, cfg *litecfg.LiteConfig, opts ...LiteServerOption) (*LiteServer, error) {
	server := &LiteServer{config: cfg}

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.logger == nil {
		logger, err := litecfg.NewLogger(cfg.Logging())
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		server.logger = logger
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if server.store == nil {
		store, err := definitionstore.NewSQLiteStore(cfg.DefinitionsDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to create definition store: %w", err)
		}
		server.store = store
	}

	loader, err := catalog.NewLoader(server.logger, cfg.Strict, catalog.Sources(cfg.Catalog(), server.store)...)
	if err != nil {
		server.Close()
		return nil, fmt.Errorf("failed to create catalog loader: %w", err)
	}
	registry, _, err := loader.Load(ctx)
	if err != nil {
		server.Close()
		return nil, fmt.Errorf("failed to load assessment catalog: %w", err)
	}

	server.cache = cache.NewMemoryCache(cfg.CacheMaxItems, cfg.CacheTTL)
	server.service = service.NewAssessmentService(registry, nil, server.cache, cfg.CacheTTL, server.logger)
	server.server = NewServer(server.service, domain.MCPConfig{
		ServerName:     "clinical-assessment-engine-lite",
		ServerVersion:  "1.0.0",
		RequestTimeout: 30 * time.Second,
	}, server.logger)

	server.logger.WithFields(logrus.Fields{
		"data_dir":    cfg.DataDir,
		"assessments": registry.Len(),
	}).Info("Lite server initialized successfully")
	return server, nil
}

// Start serves MCP over stdio until ctx is cancelled.
func (s *LiteServer) Start(ctx context.Context) error {
	s.logger.Info("Starting clinical assessment MCP server (lite)")
	return s.server.RunStdio(ctx)
}

// Close cleans up server resources.
func (s *LiteServer) Close() error {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close definition store")
			return err
		}
	}
	return nil
}

// Service returns the assessment service for external access.
func (s *LiteServer) Service() *service.AssessmentService {
	return s.service
}

// Cache returns the memory cache for external access.
func (s *LiteServer) Cache() *cache.MemoryCache {
	return s.cache
}
