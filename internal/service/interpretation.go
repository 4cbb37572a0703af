package service

import (
	"fmt"
	"strconv"

	"github.com/clinical-assessment-engine/internal/domain"
)

// Interpreter maps a sub-score to a labelled band and applies reclassification rules.
type Interpreter struct {
	resolver TableResolver
}

// NewInterpreter creates an interpreter.
func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

// interpret resolves the interpretation score to its band, then reclassifies it.
func (in *Interpreter) interpret(sc *scope, interp *domain.Interpretation) (*domain.BandResult, error) {
	table, ok := sc.def.Table(interp.Table)
	if !ok {
		return nil, fmt.Errorf("interpretation of %s: unknown table %q", interp.Score, interp.Table)
	}
	score, ok := sc.scores[interp.Score]
	if !ok {
		return nil, fmt.Errorf("interpretation of %s: score was not computed", interp.Score)
	}
	keys, err := sc.partitionKeys(interp.Partition)
	if err != nil {
		return nil, err
	}
	partition, err := in.resolver.Partition(table, keys)
	if err != nil {
		return nil, err
	}
	band, idx, err := in.resolver.Band(table, partition, interp.Score, score)
	if err != nil {
		return nil, err
	}

	result := &domain.BandResult{
		Table:        table.ID,
		Label:        band.Label,
		Index:        idx,
		PrimaryLabel: band.Label,
		PrimaryIndex: idx,
	}

	final, status, ruleID, err := in.reclassify(sc, interp.Reclassification, partition.Bands, idx)
	if err != nil {
		return nil, err
	}
	result.Reclassification = status
	result.RuleID = ruleID
	result.Index = final
	result.Label = partition.Bands[final].Label
	return result, nil
}

// reclassify applies the first matching rule, shifting the band index by at most one step
// and clamping it to the partition's bands. When a rule cannot be decided because its
// condition items were never answered, reclassification is not evaluated.
func (in *Interpreter) reclassify(sc *scope, rules []domain.ReclassificationRule, bands []domain.LookupBand, idx int) (int, domain.ReclassificationStatus, string, error) {
	if len(rules) == 0 {
		return idx, domain.RECLASS_NOT_DEFINED, "", nil
	}

	primary := bands[idx].Label
	for _, rule := range rules {
		if len(rule.Bands) > 0 && !contains(rule.Bands, primary) {
			continue
		}
		outcome, err := in.matches(sc, rule)
		if err != nil {
			return idx, "", "", err
		}
		switch outcome {
		case undecided:
			return idx, domain.RECLASS_NOT_EVALUATED, "", nil
		case unmatched:
			continue
		}
		shifted := clampIndex(idx+rule.Shift, len(bands))
		if shifted == idx {
			return idx, domain.RECLASS_NO_SHIFT, rule.ID, nil
		}
		return shifted, domain.RECLASS_SHIFTED, rule.ID, nil
	}
	return idx, domain.RECLASS_NO_SHIFT, "", nil
}

type ruleOutcome int

const (
	unmatched ruleOutcome = iota
	matched
	undecided
)

// matches combines the rule's conditions. An unanswered condition leaves the rule
// undecided unless the answered ones already settle it.
func (in *Interpreter) matches(sc *scope, rule domain.ReclassificationRule) (ruleOutcome, error) {
	all := rule.Match == domain.MATCH_ALL
	unknown := false
	for _, c := range rule.When {
		item, ok := sc.def.Item(c.Item)
		if !ok {
			return unmatched, fmt.Errorf("reclassification %s: unknown item %q", rule.ID, c.Item)
		}
		if _, answered := sc.answer(item); !answered {
			unknown = true
			continue
		}
		holds, err := conditionHolds(sc, item, c)
		if err != nil {
			return unmatched, err
		}
		if all && !holds {
			return unmatched, nil
		}
		if !all && holds {
			return matched, nil
		}
	}
	switch {
	case unknown:
		return undecided, nil
	case all:
		return matched, nil
	default:
		return unmatched, nil
	}
}

func conditionHolds(sc *scope, item *domain.Item, c domain.Condition) (bool, error) {
	switch item.Kind {
	case domain.BOOLEAN:
		want, ok := domain.ParseFlagWord(c.Equals)
		if !ok {
			return false, fmt.Errorf("condition on %s: %q is not yes or no", c.Item, c.Equals)
		}
		got, err := sc.flag(item)
		if err != nil {
			return false, err
		}
		return got == want, nil
	case domain.SINGLE_CHOICE:
		opt, err := sc.option(item)
		if err != nil {
			return false, err
		}
		return opt.Value == c.Equals, nil
	default:
		want, err := strconv.ParseFloat(c.Equals, 64)
		if err != nil {
			return false, fmt.Errorf("condition on %s: %q is not a number", c.Item, c.Equals)
		}
		got, err := sc.integerValue(item)
		if err != nil {
			return false, err
		}
		return got == want, nil
	}
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
