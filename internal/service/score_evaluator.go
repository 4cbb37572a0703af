package service

import (
	"fmt"
	"math"
	"sort"

	"github.com/clinical-assessment-engine/internal/domain"
)

// scope carries the answers and the values produced so far in one evaluation run.
type scope struct {
	def       *domain.AssessmentDefinition
	responses *domain.ResponseSet
	stage     string
	scores    map[string]float64
	// labels holds the band label of lookup-derived scores, used as partition keys.
	labels map[string]string
}

func newScope(def *domain.AssessmentDefinition, responses *domain.ResponseSet) *scope {
	return &scope{
		def:       def,
		responses: responses,
		scores:    make(map[string]float64),
		labels:    make(map[string]string),
	}
}

// answer returns the supplied answer, or the item's default when it has one.
func (s *scope) answer(item *domain.Item) (domain.Value, bool) {
	if v, ok := s.responses.Get(item.ID); ok {
		return v, true
	}
	if item.Default != nil {
		return domain.Number(*item.Default), true
	}
	return domain.Value{}, false
}

func (s *scope) missing(ids []string) []string {
	var missing []string
	for _, id := range ids {
		item, ok := s.def.Item(id)
		if !ok {
			continue
		}
		if _, answered := s.answer(item); !answered {
			missing = append(missing, id)
		}
	}
	return missing
}

func (s *scope) incomplete(missing []string) error {
	return &domain.IncompleteResponseError{AssessmentID: s.def.ID, Stage: s.stage, Missing: missing}
}

// integerValue returns an integer-range answer clamped to the item's bounds.
func (s *scope) integerValue(item *domain.Item) (float64, error) {
	n, err := s.integer(item)
	if err != nil {
		return 0, err
	}
	return item.Clamp(n), nil
}

// integer returns an integer-range answer as entered.
func (s *scope) integer(item *domain.Item) (float64, error) {
	v, ok := s.answer(item)
	if !ok {
		return 0, s.incomplete([]string{item.ID})
	}
	n, ok := v.AsNumber()
	if !ok {
		return 0, domain.NewInvalidAnswerError(item.ID, fmt.Sprintf("expected an integer, got %q", v.String()))
	}
	if n != math.Trunc(n) {
		return 0, domain.NewInvalidAnswerError(item.ID, fmt.Sprintf("expected an integer, got %g", n))
	}
	return n, nil
}

func (s *scope) option(item *domain.Item) (*domain.Option, error) {
	v, ok := s.answer(item)
	if !ok {
		return nil, s.incomplete([]string{item.ID})
	}
	value, ok := v.AsChoice()
	if !ok {
		return nil, domain.NewInvalidAnswerError(item.ID, fmt.Sprintf("expected an option value, got %s", v.String()))
	}
	opt, ok := item.Option(value)
	if !ok {
		return nil, domain.NewInvalidAnswerError(item.ID, fmt.Sprintf("%q is not an option", value))
	}
	return opt, nil
}

func (s *scope) flag(item *domain.Item) (bool, error) {
	v, ok := s.answer(item)
	if !ok {
		return false, s.incomplete([]string{item.ID})
	}
	b, ok := v.AsFlag()
	if !ok {
		return false, domain.NewInvalidAnswerError(item.ID, fmt.Sprintf("expected yes or no, got %q", v.String()))
	}
	return b, nil
}

// numeric returns the numeric reading of an item: integer value, option weight, or 1/0
// for a boolean answered with or against its polarity.
func (s *scope) numeric(item *domain.Item) (float64, error) {
	switch item.Kind {
	case domain.INTEGER_RANGE:
		return s.integerValue(item)
	case domain.SINGLE_CHOICE:
		opt, err := s.option(item)
		if err != nil {
			return 0, err
		}
		return opt.Weight, nil
	case domain.BOOLEAN:
		b, err := s.flag(item)
		if err != nil {
			return 0, err
		}
		if b == item.PolarityFlag() {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("item %s: %w %q", item.ID, domain.ErrInvalidItemKind, item.Kind)
	}
}

// source resolves a name that is either an earlier score or an item.
func (s *scope) source(name string) (float64, error) {
	if v, ok := s.scores[name]; ok {
		return v, nil
	}
	item, ok := s.def.Item(name)
	if !ok {
		return 0, fmt.Errorf("%q is neither an item nor a computed score of %s", name, s.def.ID)
	}
	return s.numeric(item)
}

// category resolves a partition source: a choice or boolean item, or the label of an
// earlier lookup-derived score.
func (s *scope) category(name string) (string, error) {
	if label, ok := s.labels[name]; ok {
		return label, nil
	}
	item, ok := s.def.Item(name)
	if !ok {
		return "", fmt.Errorf("%q is neither an item nor a labelled score of %s", name, s.def.ID)
	}
	switch item.Kind {
	case domain.BOOLEAN:
		b, err := s.flag(item)
		if err != nil {
			return "", err
		}
		return domain.FlagWord(b), nil
	default:
		opt, err := s.option(item)
		if err != nil {
			return "", err
		}
		return opt.Value, nil
	}
}

// lookupKey resolves the numeric key of a table lookup. Integer items are read unclamped
// so that an entry outside the table domain fails as out of domain with the entered value.
func (s *scope) lookupKey(name string) (float64, error) {
	if _, ok := s.scores[name]; !ok {
		if item, ok := s.def.Item(name); ok && item.Kind == domain.INTEGER_RANGE {
			return s.integer(item)
		}
	}
	return s.source(name)
}

func (s *scope) partitionKeys(sources map[string]string) (map[string]string, error) {
	keys := make(map[string]string, len(sources))
	for axis, src := range sources {
		v, err := s.category(src)
		if err != nil {
			return nil, err
		}
		keys[axis] = v
	}
	return keys, nil
}

// ScoreEvaluator computes sub-scores from scoring rules. It never logs and never mutates
// its inputs.
type ScoreEvaluator struct {
	resolver TableResolver
}

// NewScoreEvaluator creates a score evaluator.
func NewScoreEvaluator() *ScoreEvaluator {
	return &ScoreEvaluator{}
}

// Evaluate computes one rule against a response set. Rules that reference other scores
// need the full stage run; use Engine.Evaluate for those.
func (e *ScoreEvaluator) Evaluate(def *domain.AssessmentDefinition, rule domain.ScoringRule, responses *domain.ResponseSet) (float64, error) {
	sc := newScope(def, responses)
	value, _, err := e.score(sc, rule)
	return value, err
}

// score returns the rule's value and, for lookup rules, the resolved band label.
func (e *ScoreEvaluator) score(sc *scope, rule domain.ScoringRule) (float64, string, error) {
	if missing := sc.missing(ruleItems(sc.def, rule)); len(missing) > 0 {
		return 0, "", sc.incomplete(missing)
	}

	switch rule.Strategy {
	case domain.SUM_OF_WEIGHTS:
		v, err := e.sumOfWeights(sc, rule.Items)
		return v, "", err
	case domain.COUNT_MATCHING:
		v, err := e.countMatching(sc, rule.Items)
		return v, "", err
	case domain.DIRECT_VALUE:
		if len(rule.Items) != 1 {
			return 0, "", fmt.Errorf("rule %s: direct-value takes exactly one item", rule.Score)
		}
		item, ok := sc.def.Item(rule.Items[0])
		if !ok {
			return 0, "", fmt.Errorf("rule %s: unknown item %q", rule.Score, rule.Items[0])
		}
		v, err := sc.integerValue(item)
		return v, "", err
	case domain.TERM_SUM:
		v, err := e.termSum(sc, rule)
		return v, "", err
	case domain.LOOKUP:
		return e.lookup(sc, rule)
	default:
		return 0, "", fmt.Errorf("rule %s: %w %q", rule.Score, domain.ErrInvalidStrategy, rule.Strategy)
	}
}

func (e *ScoreEvaluator) sumOfWeights(sc *scope, ids []string) (float64, error) {
	var total float64
	for _, id := range ids {
		item, ok := sc.def.Item(id)
		if !ok {
			return 0, fmt.Errorf("unknown item %q", id)
		}
		switch item.Kind {
		case domain.SINGLE_CHOICE:
			opt, err := sc.option(item)
			if err != nil {
				return 0, err
			}
			total += opt.Weight
		case domain.BOOLEAN:
			b, err := sc.flag(item)
			if err != nil {
				return 0, err
			}
			if b == item.PolarityFlag() {
				total += item.ItemWeight()
			}
		case domain.INTEGER_RANGE:
			v, err := sc.integerValue(item)
			if err != nil {
				return 0, err
			}
			total += v
		}
	}
	return total, nil
}

func (e *ScoreEvaluator) countMatching(sc *scope, ids []string) (float64, error) {
	var count float64
	for _, id := range ids {
		item, ok := sc.def.Item(id)
		if !ok {
			return 0, fmt.Errorf("unknown item %q", id)
		}
		switch item.Kind {
		case domain.BOOLEAN:
			b, err := sc.flag(item)
			if err != nil {
				return 0, err
			}
			if b == item.PolarityFlag() {
				count++
			}
		case domain.SINGLE_CHOICE:
			opt, err := sc.option(item)
			if err != nil {
				return 0, err
			}
			if opt.Value == item.Polarity {
				count++
			}
		default:
			return 0, fmt.Errorf("item %s: count-matching cannot use %s items", id, item.Kind)
		}
	}
	return count, nil
}

func (e *ScoreEvaluator) termSum(sc *scope, rule domain.ScoringRule) (float64, error) {
	total := rule.Constant
	for _, term := range rule.Terms {
		product := term.Coefficient
		for _, f := range term.Factors {
			v, err := sc.source(f)
			if err != nil {
				return 0, err
			}
			product *= v
		}
		total += product
	}
	return total, nil
}

func (e *ScoreEvaluator) lookup(sc *scope, rule domain.ScoringRule) (float64, string, error) {
	ref := rule.Lookup
	if ref == nil {
		return 0, "", fmt.Errorf("rule %s: lookup rule has no lookup reference", rule.Score)
	}
	table, ok := sc.def.Table(ref.Table)
	if !ok {
		return 0, "", fmt.Errorf("rule %s: unknown table %q", rule.Score, ref.Table)
	}
	key, err := sc.lookupKey(ref.Key)
	if err != nil {
		return 0, "", err
	}
	keys, err := sc.partitionKeys(ref.Partition)
	if err != nil {
		return 0, "", err
	}
	band, idx, err := e.resolver.Resolve(table, ref.Key, key, keys)
	if err != nil {
		return 0, "", err
	}

	value := float64(idx)
	if band.Value != nil {
		value = *band.Value
	}

	if ref.Adjust != nil {
		adjTable, ok := sc.def.Table(ref.Adjust.Table)
		if !ok {
			return 0, "", fmt.Errorf("rule %s: unknown adjustment table %q", rule.Score, ref.Adjust.Table)
		}
		adjKey, err := sc.lookupKey(ref.Adjust.Key)
		if err != nil {
			return 0, "", err
		}
		adj, _, err := e.resolver.Resolve(adjTable, ref.Adjust.Key, adjKey, nil)
		if err != nil {
			return 0, "", err
		}
		if adj.Value == nil {
			return 0, "", fmt.Errorf("rule %s: adjustment band %s of table %s has no multiplier", rule.Score, adj.Range, adjTable.ID)
		}
		value *= *adj.Value
	}

	if ref.Round == domain.ROUND_HALF_UP {
		value = roundHalfUp(value)
	}
	return value, band.Label, nil
}

// roundHalfUp rounds to the nearest integer with halves going up (4.5 -> 5, -4.5 -> -4).
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

// ruleItems lists the items a rule reads directly, so that missing answers are reported
// together rather than one at a time.
func ruleItems(def *domain.AssessmentDefinition, rule domain.ScoringRule) []string {
	var ids []string
	add := func(name string) {
		if _, ok := def.Item(name); ok {
			ids = append(ids, name)
		}
	}
	switch rule.Strategy {
	case domain.SUM_OF_WEIGHTS, domain.COUNT_MATCHING, domain.DIRECT_VALUE:
		for _, id := range rule.Items {
			add(id)
		}
	case domain.TERM_SUM:
		for _, term := range rule.Terms {
			for _, f := range term.Factors {
				add(f)
			}
		}
	case domain.LOOKUP:
		if rule.Lookup != nil {
			add(rule.Lookup.Key)
			axes := make([]string, 0, len(rule.Lookup.Partition))
			for axis := range rule.Lookup.Partition {
				axes = append(axes, axis)
			}
			sort.Strings(axes)
			for _, axis := range axes {
				add(rule.Lookup.Partition[axis])
			}
			if rule.Lookup.Adjust != nil {
				add(rule.Lookup.Adjust.Key)
			}
		}
	}
	return dedupe(ids)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
