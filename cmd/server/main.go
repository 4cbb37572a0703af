package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/clinical-assessment-engine/internal/api"
	"github.com/clinical-assessment-engine/internal/cache"
	"github.com/clinical-assessment-engine/internal/catalog"
	"github.com/clinical-assessment-engine/internal/config"
	"github.com/clinical-assessment-engine/internal/database"
	"github.com/clinical-assessment-engine/internal/definitionstore"
	"github.com/clinical-assessment-engine/internal/domain"
	"github.com/clinical-assessment-engine/internal/service"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager(os.Getenv("ASSESSMENT_CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openDefinitionStore(ctx, configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open definition store")
	}
	defer closeStore()

	loader, err := catalog.NewLoader(logger, cfg.Catalog.Strict, catalog.Sources(cfg.Catalog, store)...)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create catalog loader")
	}
	registry, _, err := loader.Load(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load assessment catalog")
	}

	resultCache, closeCache := newResultCache(cfg.Cache, logger)
	defer closeCache()

	svc := service.NewAssessmentService(registry, nil, resultCache, cfg.Cache.DefaultTTL, logger)
	server, err := api.NewServer(configManager, svc, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create server")
	}

	logger.WithFields(logrus.Fields{
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
		"environment": cfg.Server.Environment,
		"assessments": registry.Len(),
	}).Info("Starting clinical assessment server")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

// openDefinitionStore opens the configured definition store. PostgreSQL stores are
// migrated before use.
func openDefinitionStore(ctx context.Context, configManager domain.ConfigManager, logger *logrus.Logger) (definitionstore.Store, func(), error) {
	cfg := configManager.GetConfig()
	switch cfg.Catalog.Store {
	case "sqlite":
		store, err := definitionstore.NewSQLiteStore(cfg.Catalog.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil

	case "postgres":
		runner, err := database.NewMigrationRunner(configManager.GetDatabaseConnectionString(), cfg.Database.MigrationsPath, logger)
		if err != nil {
			return nil, nil, err
		}
		err = runner.Up(ctx)
		runner.Close()
		if err != nil {
			return nil, nil, err
		}

		db, err := database.NewConnection(ctx, database.ConfigFrom(cfg.Database), logger)
		if err != nil {
			return nil, nil, err
		}
		store, err := definitionstore.NewPostgresStore(db.SQL())
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() {
			store.Close()
			db.Close()
		}, nil

	case "":
		return nil, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown catalog store %q", cfg.Catalog.Store)
	}
}

// newResultCache builds the memory tier and, when a Redis URL is configured, a Redis tier
// behind it. An unreachable Redis leaves the memory tier alone.
func newResultCache(cfg domain.CacheConfig, logger *logrus.Logger) (domain.ResultCache, func()) {
	if !cfg.Enabled {
		return nil, func() {}
	}
	memory := cache.NewMemoryCache(cfg.MaxItems, cfg.DefaultTTL)
	if cfg.RedisURL == "" {
		return memory, func() {}
	}

	redisCache, err := cache.NewRedisCache(cfg, logger)
	if err != nil {
		logger.WithError(err).Warn("Redis cache unavailable, using memory cache only")
		return memory, func() {}
	}
	return cache.NewTiered(memory, redisCache), func() { redisCache.Close() }
}
