package domain

import (
	"context"
	"time"
)

// Catalog is the read-only registry of validated assessment definitions.
type Catalog interface {
	Get(id string) (*AssessmentDefinition, error)
	List() []Summary
	Categories() []string
}

// Evaluator turns a response set into an evaluation result. Implementations never
// mutate either argument.
type Evaluator interface {
	Evaluate(def *AssessmentDefinition, responses *ResponseSet) (*EvaluationResult, error)
	Progress(def *AssessmentDefinition, responses *ResponseSet) *Progress
}

// ResultCache memoizes evaluation results by key.
type ResultCache interface {
	Get(ctx context.Context, key string) (*EvaluationResult, bool)
	Set(ctx context.Context, key string, result *EvaluationResult, ttl time.Duration)
	Clear(ctx context.Context) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
