// Package domain contains the core entities of the clinical assessment engine:
// assessment definitions (items, scoring rules, lookup tables, stages), response sets,
// and the immutable evaluation results derived from them.
//
// Definitions are loaded once at process start and never mutated. Response sets are
// owned by the caller. Evaluation results are produced per evaluation and discarded.
package domain

import (
	"errors"
	"strings"
)

// ItemKind identifies how an item is answered.
type ItemKind string

const (
	SINGLE_CHOICE ItemKind = "single-choice"
	INTEGER_RANGE ItemKind = "integer-range"
	BOOLEAN       ItemKind = "boolean"
)

// Strategy is the aggregation shape used by a ScoringRule.
type Strategy string

const (
	SUM_OF_WEIGHTS Strategy = "sum-of-weights"
	COUNT_MATCHING Strategy = "count-matching"
	DIRECT_VALUE   Strategy = "direct-value"
	TERM_SUM       Strategy = "term-sum"
	LOOKUP         Strategy = "lookup"
)

// GateOperator compares a prior score against a gate threshold.
type GateOperator string

const (
	OP_LT GateOperator = "lt"
	OP_LE GateOperator = "le"
	OP_GT GateOperator = "gt"
	OP_GE GateOperator = "ge"
	OP_EQ GateOperator = "eq"
	OP_NE GateOperator = "ne"
)

// GateOutcome is what happens to a stage (and the run) when its gate is not satisfied.
type GateOutcome string

const (
	// OUTCOME_NOT_APPLICABLE completes the run; this and later stages are not applicable.
	OUTCOME_NOT_APPLICABLE GateOutcome = "not-applicable"
	// OUTCOME_NOT_ASSESSABLE completes the run with a distinguished terminal label.
	OUTCOME_NOT_ASSESSABLE GateOutcome = "not-assessable"
)

// MatchMode combines reclassification conditions.
type MatchMode string

const (
	MATCH_ANY MatchMode = "any"
	MATCH_ALL MatchMode = "all"
)

// Rounding selects how a derived lookup value is rounded.
type Rounding string

const (
	ROUND_NONE    Rounding = ""
	ROUND_HALF_UP Rounding = "half-up"
)

// StageStatus records what happened to one stage during a run.
type StageStatus string

const (
	STAGE_SCORED         StageStatus = "scored"
	STAGE_NOT_APPLICABLE StageStatus = "not-applicable"
	STAGE_NOT_ASSESSABLE StageStatus = "not-assessable"
)

// ResultStatus is the terminal state of an evaluation run.
type ResultStatus string

const (
	RESULT_COMPLETE       ResultStatus = "complete"
	RESULT_NOT_ASSESSABLE ResultStatus = "not-assessable"
)

// ReclassificationStatus distinguishes "never evaluated" from "evaluated, no shift".
type ReclassificationStatus string

const (
	RECLASS_NOT_DEFINED   ReclassificationStatus = "not-defined"
	RECLASS_NOT_EVALUATED ReclassificationStatus = "not-evaluated"
	RECLASS_NO_SHIFT      ReclassificationStatus = "no-shift"
	RECLASS_SHIFTED       ReclassificationStatus = "shifted"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidItemKind  = errors.New("invalid item kind")
	ErrInvalidStrategy  = errors.New("invalid scoring strategy")
	ErrInvalidOperator  = errors.New("invalid gate operator")
	ErrInvalidOutcome   = errors.New("invalid gate outcome")
	ErrInvalidMatchMode = errors.New("invalid match mode")
)

// IsValid reports whether the kind is one the score evaluator understands.
func (k ItemKind) IsValid() bool {
	switch k {
	case SINGLE_CHOICE, INTEGER_RANGE, BOOLEAN:
		return true
	default:
		return false
	}
}

func (k ItemKind) String() string {
	return string(k)
}

// IsValid reports whether the strategy is supported.
func (s Strategy) IsValid() bool {
	switch s {
	case SUM_OF_WEIGHTS, COUNT_MATCHING, DIRECT_VALUE, TERM_SUM, LOOKUP:
		return true
	default:
		return false
	}
}

func (s Strategy) String() string {
	return string(s)
}

// IsValid reports whether the operator is supported.
func (o GateOperator) IsValid() bool {
	switch o {
	case OP_LT, OP_LE, OP_GT, OP_GE, OP_EQ, OP_NE:
		return true
	default:
		return false
	}
}

// Compare applies the operator to (value op threshold).
func (o GateOperator) Compare(value, threshold float64) bool {
	switch o {
	case OP_LT:
		return value < threshold
	case OP_LE:
		return value <= threshold
	case OP_GT:
		return value > threshold
	case OP_GE:
		return value >= threshold
	case OP_EQ:
		return value == threshold
	case OP_NE:
		return value != threshold
	default:
		return false
	}
}

// IsValid reports whether the outcome is supported.
func (o GateOutcome) IsValid() bool {
	switch o {
	case OUTCOME_NOT_APPLICABLE, OUTCOME_NOT_ASSESSABLE:
		return true
	default:
		return false
	}
}

// IsValid reports whether the match mode is supported. The empty mode means "any".
func (m MatchMode) IsValid() bool {
	switch m {
	case "", MATCH_ANY, MATCH_ALL:
		return true
	default:
		return false
	}
}

// IsValid reports whether the rounding mode is supported.
func (r Rounding) IsValid() bool {
	switch r {
	case ROUND_NONE, ROUND_HALF_UP:
		return true
	default:
		return false
	}
}

// ParseFlagWord interprets the textual forms of a boolean answer.
func ParseFlagWord(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "1":
		return true, true
	case "no", "n", "false", "0":
		return false, true
	default:
		return false, false
	}
}

// FlagWord is the canonical textual form of a boolean answer, used as a partition key
// and in reclassification conditions.
func FlagWord(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
