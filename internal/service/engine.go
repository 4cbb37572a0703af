package service

import (
	"errors"

	"github.com/clinical-assessment-engine/internal/domain"
)

// Engine is the pure evaluation core. It performs no I/O, holds no mutable state and may
// be shared by any number of goroutines.
type Engine struct {
	controller *StageController
}

var _ domain.Evaluator = (*Engine)(nil)

// NewEngine creates an evaluation engine.
func NewEngine() *Engine {
	return &Engine{controller: NewStageController()}
}

// Evaluate scores every applicable stage and returns the final result, or a typed error
// (IncompleteResponseError, OutOfDomainError, NoMatchingPartitionError, InvalidAnswerError).
func (e *Engine) Evaluate(def *domain.AssessmentDefinition, responses *domain.ResponseSet) (*domain.EvaluationResult, error) {
	result, err := e.controller.run(def, responses)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Progress reports which stage the response set has reached and what it still needs.
func (e *Engine) Progress(def *domain.AssessmentDefinition, responses *domain.ResponseSet) *domain.Progress {
	result, err := e.controller.run(def, responses)

	p := &domain.Progress{
		AssessmentID: def.ID,
		Missing:      []string{},
		ScoredStages: []string{},
	}
	for _, s := range result.Stages {
		if s.Status == domain.STAGE_SCORED {
			p.ScoredStages = append(p.ScoredStages, s.ID)
		}
	}
	if err == nil {
		p.Complete = true
		return p
	}

	if len(result.Stages) < len(def.Stages) {
		p.CurrentStage = def.Stages[len(result.Stages)].ID
	}
	var incomplete *domain.IncompleteResponseError
	if errors.As(err, &incomplete) {
		p.Missing = append(p.Missing, incomplete.Missing...)
		return p
	}
	p.Error = err.Error()
	return p
}
