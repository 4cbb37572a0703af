package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clinical-assessment-engine/internal/domain"
	"github.com/clinical-assessment-engine/internal/report"
)

// AssessmentService is the facade used by the HTTP, MCP and CLI surfaces. It looks up
// definitions, memoizes evaluations and renders exports.
type AssessmentService struct {
	catalog  domain.Catalog
	engine   domain.Evaluator
	cache    domain.ResultCache
	cacheTTL time.Duration
	logger   *logrus.Logger
}

// NewAssessmentService creates the service. cache may be nil to disable memoization.
func NewAssessmentService(
	catalog domain.Catalog,
	engine domain.Evaluator,
	cache domain.ResultCache,
	cacheTTL time.Duration,
	logger *logrus.Logger,
) *AssessmentService {
	if engine == nil {
		engine = NewEngine()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &AssessmentService{
		catalog:  catalog,
		engine:   engine,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// ListAssessments returns the catalog summaries, optionally restricted to one category.
func (s *AssessmentService) ListAssessments(category string) []domain.Summary {
	all := s.catalog.List()
	if category == "" {
		return all
	}
	var out []domain.Summary
	for _, summary := range all {
		if strings.EqualFold(summary.Category, category) {
			out = append(out, summary)
		}
	}
	return out
}

// Categories returns the catalog categories.
func (s *AssessmentService) Categories() []string {
	return s.catalog.Categories()
}

// GetAssessment returns a definition. The definition is shared and must not be modified.
func (s *AssessmentService) GetAssessment(id string) (*domain.AssessmentDefinition, error) {
	return s.catalog.Get(id)
}

// Evaluate scores a response set against the named assessment.
func (s *AssessmentService) Evaluate(ctx context.Context, id string, responses *domain.ResponseSet) (*domain.EvaluationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	def, err := s.catalog.Get(id)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	key, keyErr := CacheKey(def, responses)
	if keyErr != nil {
		s.logger.WithError(keyErr).Warn("Failed to compute result cache key")
	}
	if s.cache != nil && keyErr == nil {
		if cached, ok := s.cache.Get(ctx, key); ok {
			s.logger.WithFields(logrus.Fields{
				"assessment_id":  def.ID,
				"classification": cached.Classification.Label,
			}).Debug("Evaluation served from cache")
			return cached, nil
		}
	}

	result, err := s.engine.Evaluate(def, responses)
	if err != nil {
		fields := logrus.Fields{
			"assessment_id": def.ID,
			"code":          domain.ErrorCode(err),
		}
		if domain.IsInputError(err) {
			s.logger.WithFields(fields).WithError(err).Debug("Evaluation stopped on input")
		} else {
			s.logger.WithFields(fields).WithError(err).Error("Evaluation failed")
		}
		return nil, err
	}

	if s.cache != nil && keyErr == nil {
		s.cache.Set(ctx, key, result, s.cacheTTL)
	}

	s.logger.WithFields(logrus.Fields{
		"assessment_id":  def.ID,
		"status":         result.Status,
		"classification": result.Classification.Label,
		"stage":          result.Classification.Stage,
		"duration":       time.Since(startTime),
	}).Info("Assessment evaluated")
	return result, nil
}

// Progress reports how far a response set has advanced through the named assessment.
func (s *AssessmentService) Progress(ctx context.Context, id string, responses *domain.ResponseSet) (*domain.Progress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	def, err := s.catalog.Get(id)
	if err != nil {
		return nil, err
	}
	return s.engine.Progress(def, responses), nil
}

// Export evaluates and renders the result in the requested format.
func (s *AssessmentService) Export(ctx context.Context, id string, responses *domain.ResponseSet, format report.Format, opts report.Options) ([]byte, error) {
	result, err := s.Evaluate(ctx, id, responses)
	if err != nil {
		return nil, err
	}
	if opts.Time.IsZero() {
		opts.Time = time.Now()
	}
	out, err := report.Render(result, format, opts)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"assessment_id": id,
		"format":        format,
	}).Debug("Evaluation exported")
	return out, nil
}

// ClearCache drops every memoized result.
func (s *AssessmentService) ClearCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Clear(ctx)
}

// CacheKey identifies an evaluation by definition id, version and the canonical JSON of
// the answers (keys sorted).
func CacheKey(def *domain.AssessmentDefinition, responses *domain.ResponseSet) (string, error) {
	answers, err := json.Marshal(responses)
	if err != nil {
		return "", fmt.Errorf("failed to encode responses: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(def.ID))
	h.Write([]byte{'|'})
	h.Write([]byte(def.Version))
	h.Write([]byte{'|'})
	h.Write(answers)
	return hex.EncodeToString(h.Sum(nil)), nil
}
