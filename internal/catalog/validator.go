package catalog

import (
	"fmt"
	"math"
	"sort"

	"github.com/clinical-assessment-engine/internal/domain"
)

// gridEpsilon absorbs float error when mapping half-point and integer bounds onto a grid.
const gridEpsilon = 1e-9

// Validate checks every structural invariant of a definition and returns a
// *domain.StructuralDefinitionError listing all problems, or nil.
func Validate(def *domain.AssessmentDefinition) error {
	problems := Problems(def)
	if len(problems) == 0 {
		return nil
	}
	return &domain.StructuralDefinitionError{Definition: def.ID, Problems: problems}
}

// Problems returns the structural problems of a definition in a stable order.
func Problems(def *domain.AssessmentDefinition) []string {
	v := &validator{
		def:        def,
		itemStage:  make(map[string]int),
		itemUsed:   make(map[string]bool),
		scoreStage: make(map[string]int),
		labeled:    make(map[string]string),
	}
	v.checkHeader()
	v.checkItems()
	v.checkTables()
	v.checkStages()
	v.checkItemUsage()
	return v.problems
}

type validator struct {
	def      *domain.AssessmentDefinition
	problems []string

	itemStage map[string]int
	itemUsed  map[string]bool
	// scoreStage maps a produced sub-score to the index of the stage producing it.
	scoreStage map[string]int
	// labeled maps lookup-derived scores to the table whose labels they carry.
	labeled map[string]string
}

func (v *validator) addf(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) checkHeader() {
	if v.def.ID == "" {
		v.addf("definition has no id")
	}
	if v.def.Name == "" {
		v.addf("definition has no name")
	}
	if len(v.def.Items) == 0 {
		v.addf("definition declares no items")
	}
	if len(v.def.Stages) == 0 {
		v.addf("definition declares no stages")
	}
}

func (v *validator) checkItems() {
	seen := make(map[string]bool, len(v.def.Items))
	for _, item := range v.def.Items {
		if item.ID == "" {
			v.addf("item with prompt %q has no id", item.Prompt)
			continue
		}
		if seen[item.ID] {
			v.addf("duplicate item id %q", item.ID)
		}
		seen[item.ID] = true

		if !item.Kind.IsValid() {
			v.addf("item %s: %v %q", item.ID, domain.ErrInvalidItemKind, item.Kind)
			continue
		}

		switch item.Kind {
		case domain.SINGLE_CHOICE:
			if len(item.Options) == 0 {
				v.addf("item %s: single-choice item has no options", item.ID)
			}
			values := make(map[string]bool, len(item.Options))
			for _, o := range item.Options {
				if values[o.Value] {
					v.addf("item %s: duplicate option value %q", item.ID, o.Value)
				}
				values[o.Value] = true
			}
			if item.Polarity != "" && !values[item.Polarity] {
				v.addf("item %s: polarity %q is not one of its options", item.ID, item.Polarity)
			}
		case domain.INTEGER_RANGE:
			if item.Min == nil || item.Max == nil {
				v.addf("item %s: integer-range item needs min and max", item.ID)
			} else if *item.Min > *item.Max {
				v.addf("item %s: min %g exceeds max %g", item.ID, *item.Min, *item.Max)
			}
			if item.Default != nil {
				if !item.Optional {
					v.addf("item %s: only optional items may declare a default", item.ID)
				}
				if item.Clamp(*item.Default) != *item.Default {
					v.addf("item %s: default %g is outside [min, max]", item.ID, *item.Default)
				}
			}
		case domain.BOOLEAN:
			if item.Polarity != "" {
				if _, ok := domain.ParseFlagWord(item.Polarity); !ok {
					v.addf("item %s: polarity %q must be yes or no", item.ID, item.Polarity)
				}
			}
		}
		if item.Kind != domain.INTEGER_RANGE && item.Default != nil {
			v.addf("item %s: only integer-range items may declare a default", item.ID)
		}
	}
}

func (v *validator) checkTables() {
	ids := make([]string, 0, len(v.def.Tables))
	for id := range v.def.Tables {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		v.checkTable(id, v.def.Tables[id])
	}
}

func (v *validator) checkTable(id string, t *domain.LookupTable) {
	if t == nil {
		v.addf("table %s is empty", id)
		return
	}
	if t.ID != id {
		v.addf("table %s declares id %q", id, t.ID)
	}
	if t.Step < 0 {
		v.addf("table %s: step must not be negative", id)
		return
	}
	if t.Step > 0 && (math.IsInf(t.Domain.Lower, 0) || math.IsInf(t.Domain.Upper, 0)) {
		v.addf("table %s: a stepped table needs a finite domain", id)
		return
	}
	if len(t.Partitions) == 0 {
		v.addf("table %s has no bands", id)
		return
	}
	if len(t.Axes) == 0 && len(t.Partitions) > 1 {
		v.addf("table %s has several partitions but no axes", id)
	}

	axes := make(map[string]bool, len(t.Axes))
	for _, a := range t.Axes {
		if axes[a] {
			v.addf("table %s: duplicate axis %q", id, a)
		}
		axes[a] = true
	}

	seenKeys := make(map[string]bool, len(t.Partitions))
	for i, p := range t.Partitions {
		name := fmt.Sprintf("table %s partition %d", id, i)
		if len(p.Keys) != len(t.Axes) {
			v.addf("%s: keys %v do not match axes %v", name, p.Keys, t.Axes)
		}
		for k := range p.Keys {
			if !axes[k] {
				v.addf("%s: key %q is not an axis", name, k)
			}
		}
		sig := partitionSignature(t.Axes, p.Keys)
		if seenKeys[sig] {
			v.addf("%s: duplicate partition %s", name, sig)
		}
		seenKeys[sig] = true
		v.checkBands(name, t, p.Bands)
	}
}

func partitionSignature(axes []string, keys map[string]string) string {
	sig := ""
	for _, a := range axes {
		sig += a + "=" + keys[a] + ";"
	}
	return sig
}

// checkBands verifies bands are ascending, contiguous, non-overlapping and cover the domain.
// Continuous tables (step 0) must share boundaries with opposite inclusivity; stepped tables
// must leave no grid point uncovered.
func (v *validator) checkBands(name string, t *domain.LookupTable, bands []domain.LookupBand) {
	if len(bands) == 0 {
		v.addf("%s has no bands", name)
		return
	}
	for i, b := range bands {
		if b.Label == "" && b.Value == nil {
			v.addf("%s band %s has neither label nor value", name, b.Range)
		}
		if i == 0 {
			continue
		}
		prev := bands[i-1].Range
		if t.Step == 0 {
			if prev.Upper != b.Range.Lower {
				if prev.Upper < b.Range.Lower {
					v.addf("%s: gap between %s and %s", name, prev, b.Range)
				} else {
					v.addf("%s: %s overlaps or precedes %s", name, b.Range, prev)
				}
				continue
			}
			if prev.UpperInclusive && b.Range.LowerInclusive {
				v.addf("%s: %s and %s overlap at %g", name, prev, b.Range, prev.Upper)
			} else if !prev.UpperInclusive && !b.Range.LowerInclusive {
				v.addf("%s: gap at %g between %s and %s", name, prev.Upper, prev, b.Range)
			}
			continue
		}

		prevLast, okPrev := lastGridPoint(prev, t.Domain.Lower, t.Step)
		nextFirst, okNext := firstGridPoint(b.Range, t.Domain.Lower, t.Step)
		if !okPrev || !okNext {
			continue
		}
		diff := nextFirst - prevLast
		switch {
		case diff <= gridEpsilon:
			v.addf("%s: %s overlaps or precedes %s", name, b.Range, prev)
		case math.Abs(diff-t.Step) > gridEpsilon:
			v.addf("%s: gap between %s and %s", name, prev, b.Range)
		}
	}

	for _, b := range bands {
		if t.Step > 0 {
			if _, ok := firstGridPoint(b.Range, t.Domain.Lower, t.Step); !ok {
				v.addf("%s: band %s contains no value on the %g grid", name, b.Range, t.Step)
			}
		}
	}

	first, last := bands[0].Range, bands[len(bands)-1].Range
	if t.Step == 0 {
		if first.Lower != t.Domain.Lower || first.LowerInclusive != t.Domain.LowerInclusive {
			v.addf("%s: bands start at %s but the domain is %s", name, first, t.Domain)
		}
		if last.Upper != t.Domain.Upper || last.UpperInclusive != t.Domain.UpperInclusive {
			v.addf("%s: bands end at %s but the domain is %s", name, last, t.Domain)
		}
		return
	}

	domainFirst, okA := firstGridPoint(t.Domain, t.Domain.Lower, t.Step)
	domainLast, okB := lastGridPoint(t.Domain, t.Domain.Lower, t.Step)
	bandFirst, okC := firstGridPoint(first, t.Domain.Lower, t.Step)
	bandLast, okD := lastGridPoint(last, t.Domain.Lower, t.Step)
	if !okA || !okB || !okC || !okD {
		return
	}
	if math.Abs(bandFirst-domainFirst) > gridEpsilon {
		v.addf("%s: bands start at %g but the domain starts at %g", name, bandFirst, domainFirst)
	}
	if math.Abs(bandLast-domainLast) > gridEpsilon {
		v.addf("%s: bands end at %g but the domain ends at %g", name, bandLast, domainLast)
	}
}

// firstGridPoint returns the smallest origin + k·step contained in iv.
func firstGridPoint(iv domain.Interval, origin, step float64) (float64, bool) {
	k := math.Ceil((iv.Lower-origin)/step - gridEpsilon)
	if math.IsInf(k, 0) || math.IsNaN(k) {
		return 0, false
	}
	g := origin + k*step
	if !iv.Contains(g) {
		g += step
	}
	return g, iv.Contains(g)
}

// lastGridPoint returns the largest origin + k·step contained in iv.
func lastGridPoint(iv domain.Interval, origin, step float64) (float64, bool) {
	k := math.Floor((iv.Upper-origin)/step + gridEpsilon)
	if math.IsInf(k, 0) || math.IsNaN(k) {
		return 0, false
	}
	g := origin + k*step
	if !iv.Contains(g) {
		g -= step
	}
	return g, iv.Contains(g)
}

func (v *validator) checkStages() {
	stageIndex := make(map[string]int, len(v.def.Stages))
	for i, stage := range v.def.Stages {
		if stage.ID == "" {
			v.addf("stage %d has no id", i)
		} else if _, dup := stageIndex[stage.ID]; dup {
			v.addf("duplicate stage id %q", stage.ID)
		} else {
			stageIndex[stage.ID] = i
		}
		for _, id := range stage.Items {
			if _, ok := v.def.Item(id); !ok {
				v.addf("stage %s collects unknown item %q", stage.ID, id)
				continue
			}
			if prev, dup := v.itemStage[id]; dup {
				v.addf("item %s is collected by stage %s and stage %s", id, v.def.Stages[prev].ID, stage.ID)
				continue
			}
			v.itemStage[id] = i
		}
	}

	for i := range v.def.Stages {
		stage := &v.def.Stages[i]
		v.checkGate(i, stage, stageIndex)
		for _, rule := range stage.Rules {
			v.checkRule(i, stage, rule)
		}
		if stage.Interpretation != nil {
			v.checkInterpretation(i, stage)
		}
	}
}

func (v *validator) checkGate(idx int, stage *domain.Stage, stageIndex map[string]int) {
	g := stage.Gate
	if g == nil {
		return
	}
	if idx == 0 {
		v.addf("stage %s is the first stage and cannot have a gate", stage.ID)
		return
	}
	if !g.Otherwise.IsValid() {
		v.addf("stage %s gate: %v %q", stage.ID, domain.ErrInvalidOutcome, g.Otherwise)
	}
	if g.Otherwise == domain.OUTCOME_NOT_ASSESSABLE && g.Label == "" {
		v.addf("stage %s gate: a not-assessable outcome needs a label", stage.ID)
	}

	switch {
	case g.Score != "" && g.Stage != "":
		v.addf("stage %s gate must test either a score or a stage band, not both", stage.ID)
	case g.Score != "":
		if !g.Op.IsValid() {
			v.addf("stage %s gate: %v %q", stage.ID, domain.ErrInvalidOperator, g.Op)
		}
		producer, ok := v.scoreStage[g.Score]
		if !ok {
			producer, ok = v.laterProducer(g.Score)
		}
		switch {
		case !ok:
			v.addf("stage %s gate references unknown score %q", stage.ID, g.Score)
		case producer >= idx:
			v.addf("stage %s gate references score %q of stage %s which does not precede it (cyclic or forward gate)",
				stage.ID, g.Score, v.def.Stages[producer].ID)
		}
	case g.Stage != "":
		target, ok := stageIndex[g.Stage]
		if !ok {
			v.addf("stage %s gate references unknown stage %q", stage.ID, g.Stage)
			return
		}
		if target >= idx {
			v.addf("stage %s gate references stage %s which does not precede it (cyclic or forward gate)", stage.ID, g.Stage)
			return
		}
		interp := v.def.Stages[target].Interpretation
		if interp == nil {
			v.addf("stage %s gate references stage %s which has no interpretation", stage.ID, g.Stage)
			return
		}
		if len(g.Bands) == 0 {
			v.addf("stage %s gate lists no bands of stage %s", stage.ID, g.Stage)
		}
		labels := v.tableLabels(interp.Table)
		for _, b := range g.Bands {
			if !labels[b] {
				v.addf("stage %s gate band %q is not a band of table %s", stage.ID, b, interp.Table)
			}
		}
	default:
		v.addf("stage %s gate tests neither a score nor a stage", stage.ID)
	}
}

func (v *validator) laterProducer(score string) (int, bool) {
	for i, stage := range v.def.Stages {
		for _, r := range stage.Rules {
			if r.Score == score {
				return i, true
			}
		}
	}
	return 0, false
}

func (v *validator) checkRule(idx int, stage *domain.Stage, rule domain.ScoringRule) {
	where := fmt.Sprintf("stage %s rule %s", stage.ID, rule.Score)
	if rule.Score == "" {
		v.addf("stage %s has a rule without a score name", stage.ID)
		return
	}
	if _, dup := v.scoreStage[rule.Score]; dup {
		v.addf("%s: duplicate score name", where)
	}
	if _, clash := v.def.Item(rule.Score); clash {
		v.addf("%s: score name collides with an item id", where)
	}
	if !rule.Strategy.IsValid() {
		v.addf("%s: %v %q", where, domain.ErrInvalidStrategy, rule.Strategy)
		v.scoreStage[rule.Score] = idx
		return
	}

	switch rule.Strategy {
	case domain.SUM_OF_WEIGHTS, domain.COUNT_MATCHING, domain.DIRECT_VALUE:
		if len(rule.Items) == 0 {
			v.addf("%s: %s rule consumes no items", where, rule.Strategy)
		}
		for _, id := range rule.Items {
			item, ok := v.ruleItem(where, idx, id)
			if !ok {
				continue
			}
			switch rule.Strategy {
			case domain.COUNT_MATCHING:
				if item.Kind == domain.INTEGER_RANGE {
					v.addf("%s: count-matching cannot use integer-range item %s", where, id)
				}
				if item.Kind == domain.SINGLE_CHOICE && item.Polarity == "" {
					v.addf("%s: single-choice item %s needs a polarity option to be counted", where, id)
				}
			case domain.DIRECT_VALUE:
				if item.Kind != domain.INTEGER_RANGE {
					v.addf("%s: direct-value needs an integer-range item, %s is %s", where, id, item.Kind)
				}
			}
		}
		if rule.Strategy == domain.DIRECT_VALUE && len(rule.Items) > 1 {
			v.addf("%s: direct-value takes exactly one item", where)
		}
	case domain.TERM_SUM:
		if len(rule.Terms) == 0 {
			v.addf("%s: term-sum rule has no terms", where)
		}
		for _, term := range rule.Terms {
			if len(term.Factors) == 0 {
				v.addf("%s: term with coefficient %g has no factors", where, term.Coefficient)
			}
			for _, f := range term.Factors {
				v.checkSource(where, idx, f)
			}
		}
	case domain.LOOKUP:
		v.checkLookup(where, idx, rule)
	}
	v.scoreStage[rule.Score] = idx
}

func (v *validator) checkLookup(where string, idx int, rule domain.ScoringRule) {
	ref := rule.Lookup
	if ref == nil {
		v.addf("%s: lookup rule has no lookup reference", where)
		return
	}
	if !ref.Round.IsValid() {
		v.addf("%s: invalid rounding %q", where, ref.Round)
	}
	table, ok := v.def.Table(ref.Table)
	if !ok {
		v.addf("%s: unknown table %q", where, ref.Table)
		return
	}
	v.checkSource(where, idx, ref.Key)
	v.checkPartitionSources(where, idx, table, ref.Partition)

	hasLabels := true
	for _, p := range table.Partitions {
		for _, b := range p.Bands {
			if b.Label == "" {
				hasLabels = false
			}
		}
	}
	if hasLabels {
		v.labeled[rule.Score] = table.ID
	}

	if ref.Adjust == nil {
		return
	}
	adjust, ok := v.def.Table(ref.Adjust.Table)
	if !ok {
		v.addf("%s: unknown adjustment table %q", where, ref.Adjust.Table)
		return
	}
	if len(adjust.Axes) > 0 {
		v.addf("%s: adjustment table %s must not be partitioned", where, adjust.ID)
	}
	for _, p := range adjust.Partitions {
		for _, b := range p.Bands {
			if b.Value == nil {
				v.addf("%s: adjustment table %s band %s has no multiplier", where, adjust.ID, b.Range)
			}
		}
	}
	v.checkSource(where, idx, ref.Adjust.Key)
}

// checkSource verifies a numeric source: an item collected no later than stage idx, or an
// earlier score.
func (v *validator) checkSource(where string, idx int, name string) {
	if _, ok := v.def.Item(name); ok {
		v.ruleItem(where, idx, name)
		return
	}
	if _, ok := v.scoreStage[name]; ok {
		return
	}
	v.addf("%s: %q is neither an item nor an earlier score", where, name)
}

func (v *validator) checkPartitionSources(where string, idx int, table *domain.LookupTable, partition map[string]string) {
	if len(partition) != len(table.Axes) {
		v.addf("%s: partition %v does not match axes %v of table %s", where, partition, table.Axes, table.ID)
	}
	axes := make(map[string]bool, len(table.Axes))
	for _, a := range table.Axes {
		axes[a] = true
	}
	keys := make([]string, 0, len(partition))
	for k := range partition {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, axis := range keys {
		source := partition[axis]
		if !axes[axis] {
			v.addf("%s: %q is not an axis of table %s", where, axis, table.ID)
		}
		if item, ok := v.def.Item(source); ok {
			if item.Kind == domain.INTEGER_RANGE {
				v.addf("%s: partition source %s must be a choice or boolean item", where, source)
			}
			v.ruleItem(where, idx, source)
			continue
		}
		if _, ok := v.labeled[source]; ok {
			continue
		}
		v.addf("%s: partition source %q is neither an item nor an earlier labelled lookup", where, source)
	}
}

// ruleItem marks an item consumed and checks it is collected no later than stage idx.
func (v *validator) ruleItem(where string, idx int, id string) (*domain.Item, bool) {
	item, ok := v.def.Item(id)
	if !ok {
		v.addf("%s: unknown item %q", where, id)
		return nil, false
	}
	v.itemUsed[id] = true
	if stage, collected := v.itemStage[id]; collected && stage > idx {
		v.addf("%s: item %s is collected by a later stage", where, id)
	}
	if item.Optional && item.Default == nil {
		v.addf("%s: optional item %s without a default may only feed reclassification", where, id)
	}
	return item, true
}

func (v *validator) checkInterpretation(idx int, stage *domain.Stage) {
	interp := stage.Interpretation
	where := fmt.Sprintf("stage %s interpretation", stage.ID)
	if _, ok := v.scoreStage[interp.Score]; !ok {
		v.addf("%s: unknown score %q", where, interp.Score)
	}
	table, ok := v.def.Table(interp.Table)
	if !ok {
		v.addf("%s: unknown table %q", where, interp.Table)
		return
	}
	for _, p := range table.Partitions {
		for _, b := range p.Bands {
			if b.Label == "" {
				v.addf("%s: band %s of table %s has no label", where, b.Range, table.ID)
			}
		}
	}
	v.checkPartitionSources(where, idx, table, interp.Partition)

	labels := v.tableLabels(table.ID)
	ruleIDs := make(map[string]bool, len(interp.Reclassification))
	for _, r := range interp.Reclassification {
		rw := fmt.Sprintf("%s reclassification %s", where, r.ID)
		if ruleIDs[r.ID] {
			v.addf("%s: duplicate rule id", rw)
		}
		ruleIDs[r.ID] = true
		if r.Shift != 1 && r.Shift != -1 {
			v.addf("%s: shift must be +1 or -1, got %d", rw, r.Shift)
		}
		if !r.Match.IsValid() {
			v.addf("%s: %v %q", rw, domain.ErrInvalidMatchMode, r.Match)
		}
		if len(r.When) == 0 {
			v.addf("%s: no conditions", rw)
		}
		for _, c := range r.When {
			item, ok := v.def.Item(c.Item)
			if !ok {
				v.addf("%s: unknown item %q", rw, c.Item)
				continue
			}
			v.itemUsed[c.Item] = true
			if stageIdx, ok := v.itemStage[c.Item]; !ok || stageIdx > idx {
				v.addf("%s: item %s is not collected by this or an earlier stage", rw, c.Item)
			}
			switch item.Kind {
			case domain.BOOLEAN:
				if _, ok := domain.ParseFlagWord(c.Equals); !ok {
					v.addf("%s: %q is not a yes/no value for item %s", rw, c.Equals, c.Item)
				}
			case domain.SINGLE_CHOICE:
				if _, ok := item.Option(c.Equals); !ok {
					v.addf("%s: %q is not an option of item %s", rw, c.Equals, c.Item)
				}
			}
		}
		for _, b := range r.Bands {
			if !labels[b] {
				v.addf("%s: band %q is not a band of table %s", rw, b, table.ID)
			}
		}
	}
}

func (v *validator) tableLabels(id string) map[string]bool {
	labels := make(map[string]bool)
	table, ok := v.def.Table(id)
	if !ok {
		return labels
	}
	for _, p := range table.Partitions {
		for _, b := range p.Bands {
			labels[b.Label] = true
		}
	}
	return labels
}

func (v *validator) checkItemUsage() {
	for _, item := range v.def.Items {
		if _, collected := v.itemStage[item.ID]; !collected {
			v.addf("item %s is not collected by any stage", item.ID)
			continue
		}
		if !v.itemUsed[item.ID] {
			v.addf("item %s is not used by any rule or reclassification", item.ID)
		}
	}
}
