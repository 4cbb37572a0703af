package service

import (
	"fmt"

	"github.com/clinical-assessment-engine/internal/domain"
)

// StageController walks the stages of a definition in order. Each run starts from an
// empty scope, so re-scoring after an answer changes re-evaluates every downstream gate.
type StageController struct {
	scorer      *ScoreEvaluator
	interpreter *Interpreter
}

// NewStageController creates a controller.
func NewStageController() *StageController {
	return &StageController{
		scorer:      NewScoreEvaluator(),
		interpreter: NewInterpreter(),
	}
}

// run returns the result built so far together with the first error. On success the
// result is complete; on error it holds only the stages finished before the failure.
func (c *StageController) run(def *domain.AssessmentDefinition, responses *domain.ResponseSet) (*domain.EvaluationResult, error) {
	result := &domain.EvaluationResult{
		AssessmentID: def.ID,
		Name:         def.Name,
		Version:      def.Version,
		Status:       domain.RESULT_COMPLETE,
		Stages:       make([]domain.StageResult, 0, len(def.Stages)),
	}
	sc := newScope(def, responses)

	for i := range def.Stages {
		stage := &def.Stages[i]
		sc.stage = stage.ID

		if i > 0 && stage.Gate != nil && !c.gateOpen(sc, result, stage.Gate) {
			c.close(result, def, i, stage.Gate)
			break
		}

		if missing := sc.missing(stage.RequiredItems(def)); len(missing) > 0 {
			return result, sc.incomplete(missing)
		}

		sr := domain.StageResult{
			ID:     stage.ID,
			Name:   stage.Name,
			Status: domain.STAGE_SCORED,
			Scores: make([]domain.SubScore, 0, len(stage.Rules)),
		}
		for _, rule := range stage.Rules {
			value, label, err := c.scorer.score(sc, rule)
			if err != nil {
				return result, err
			}
			sc.scores[rule.Score] = value
			if label != "" {
				sc.labels[rule.Score] = label
			}
			sr.Scores = append(sr.Scores, domain.SubScore{
				Name:    rule.Score,
				Label:   rule.Label,
				Value:   &value,
				Derived: label,
			})
		}

		if stage.Interpretation != nil {
			band, err := c.interpreter.interpret(sc, stage.Interpretation)
			if err != nil {
				return result, err
			}
			sr.Band = band
		}
		result.Stages = append(result.Stages, sr)
	}

	if result.Status == domain.RESULT_COMPLETE {
		for i := len(result.Stages) - 1; i >= 0; i-- {
			s := &result.Stages[i]
			if s.Status == domain.STAGE_SCORED && s.Band != nil {
				result.Classification = domain.Classification{Label: s.Band.Label, Stage: s.ID, Band: s.Band}
				break
			}
		}
	}
	return result, nil
}

// gateOpen tests a gate against the scores and bands produced by earlier stages.
func (c *StageController) gateOpen(sc *scope, result *domain.EvaluationResult, gate *domain.GateCondition) bool {
	if gate.Stage != "" {
		prior, ok := result.Stage(gate.Stage)
		if !ok || prior.Band == nil {
			return false
		}
		return contains(gate.Bands, prior.Band.Label)
	}
	value, ok := sc.scores[gate.Score]
	if !ok {
		return false
	}
	return gate.Op.Compare(value, gate.Value)
}

// close marks stage idx with the gate's outcome and every later stage not applicable.
// Their score names are kept with nil values so that reports show them as absent rather
// than zero.
func (c *StageController) close(result *domain.EvaluationResult, def *domain.AssessmentDefinition, idx int, gate *domain.GateCondition) {
	gated := &def.Stages[idx]
	status := domain.STAGE_NOT_APPLICABLE
	reason := gate.Label
	if reason == "" {
		reason = gateReason(gate)
	}
	if gate.Otherwise == domain.OUTCOME_NOT_ASSESSABLE {
		status = domain.STAGE_NOT_ASSESSABLE
		result.Status = domain.RESULT_NOT_ASSESSABLE
		result.Classification = domain.Classification{Label: gate.Label, Stage: gated.ID}
	}
	result.Stages = append(result.Stages, skippedStage(gated, status, reason))
	for j := idx + 1; j < len(def.Stages); j++ {
		result.Stages = append(result.Stages, skippedStage(&def.Stages[j], domain.STAGE_NOT_APPLICABLE,
			fmt.Sprintf("stage %s did not run", gated.ID)))
	}
}

func skippedStage(stage *domain.Stage, status domain.StageStatus, reason string) domain.StageResult {
	scores := make([]domain.SubScore, len(stage.Rules))
	for i, rule := range stage.Rules {
		scores[i] = domain.SubScore{Name: rule.Score, Label: rule.Label}
	}
	return domain.StageResult{
		ID:     stage.ID,
		Name:   stage.Name,
		Status: status,
		Scores: scores,
		Reason: reason,
	}
}

func gateReason(gate *domain.GateCondition) string {
	if gate.Stage != "" {
		return fmt.Sprintf("requires stage %s band in %v", gate.Stage, gate.Bands)
	}
	return fmt.Sprintf("requires %s %s %g", gate.Score, gate.Op, gate.Value)
}
