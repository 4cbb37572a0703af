package domain

// AssessmentDefinition describes one clinical scale: its items, the named lookup tables it
// resolves against, and the ordered stages that score and interpret it.
// Definitions are immutable after loading and may be shared across goroutines.
type AssessmentDefinition struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	Version     string                  `json:"version"`
	Category    string                  `json:"category,omitempty"`
	Description string                  `json:"description,omitempty"`
	Items       []Item                  `json:"items"`
	Tables      map[string]*LookupTable `json:"tables,omitempty"`
	Stages      []Stage                 `json:"stages"`

	itemIndex map[string]int
}

// Item is one question of an assessment.
type Item struct {
	ID       string   `json:"id"`
	Prompt   string   `json:"prompt"`
	Kind     ItemKind `json:"kind"`
	Options  []Option `json:"options,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Polarity string   `json:"polarity,omitempty"`
	Weight   *float64 `json:"weight,omitempty"`
	Optional bool     `json:"optional,omitempty"`
	Default  *float64 `json:"default,omitempty"`
}

// Option is one selectable answer of a single-choice item.
type Option struct {
	Value  string  `json:"value"`
	Label  string  `json:"label"`
	Weight float64 `json:"weight"`
}

// ScoringRule produces one named sub-score. Which fields apply depends on Strategy:
// Items for sum-of-weights, count-matching and direct-value; Terms and Constant for
// term-sum; Lookup for lookup.
type ScoringRule struct {
	Score    string     `json:"score"`
	Label    string     `json:"label,omitempty"`
	Strategy Strategy   `json:"strategy"`
	Items    []string   `json:"items,omitempty"`
	Terms    []Term     `json:"terms,omitempty"`
	Constant float64    `json:"constant,omitempty"`
	Lookup   *LookupRef `json:"lookup,omitempty"`
}

// Term is coefficient × Π factors. A factor names an item or an earlier sub-score.
type Term struct {
	Coefficient float64  `json:"coefficient"`
	Factors     []string `json:"factors"`
}

// LookupRef resolves a key through a table, optionally partitioned, and optionally scaled
// by a chained multiplier table.
type LookupRef struct {
	Table     string            `json:"table"`
	Key       string            `json:"key"`
	Partition map[string]string `json:"partition,omitempty"`
	Adjust    *Adjustment       `json:"adjust,omitempty"`
	Round     Rounding          `json:"round,omitempty"`
}

// Adjustment multiplies a lookup result by the value of a second table keyed by Key.
type Adjustment struct {
	Table string `json:"table"`
	Key   string `json:"key"`
}

// LookupTable maps a numeric key to a band, within the partition selected by categorical keys.
type LookupTable struct {
	ID         string      `json:"id"`
	Domain     Interval    `json:"domain"`
	Step       float64     `json:"step,omitempty"`
	Axes       []string    `json:"axes,omitempty"`
	Partitions []Partition `json:"partitions"`
}

// Partition is the band list for one combination of categorical keys.
type Partition struct {
	Keys  map[string]string `json:"keys,omitempty"`
	Bands []LookupBand      `json:"bands"`
}

// LookupBand maps an interval to a label and/or numeric value.
type LookupBand struct {
	Range Interval `json:"range"`
	Label string   `json:"label,omitempty"`
	Value *float64 `json:"value,omitempty"`
}

// Stage is one phase of an assessment. Stage 0 has no gate.
type Stage struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Items          []string        `json:"items"`
	Rules          []ScoringRule   `json:"rules"`
	Gate           *GateCondition  `json:"gate,omitempty"`
	Interpretation *Interpretation `json:"interpretation,omitempty"`
}

// GateCondition decides whether a stage runs. Either Score/Op/Value compares an earlier
// sub-score, or Stage/Bands tests an earlier stage's interpreted band label.
type GateCondition struct {
	Score     string       `json:"score,omitempty"`
	Op        GateOperator `json:"op,omitempty"`
	Value     float64      `json:"value,omitempty"`
	Stage     string       `json:"stage,omitempty"`
	Bands     []string     `json:"bands,omitempty"`
	Otherwise GateOutcome  `json:"otherwise"`
	Label     string       `json:"label,omitempty"`
}

// Interpretation maps a sub-score to a band of an interpretation table and optionally
// reclassifies it using auxiliary criteria.
type Interpretation struct {
	Score            string                 `json:"score"`
	Table            string                 `json:"table"`
	Partition        map[string]string      `json:"partition,omitempty"`
	Reclassification []ReclassificationRule `json:"reclassification,omitempty"`
}

// ReclassificationRule shifts the interpreted band index by Shift (±1) when its
// conditions hold. Bands, when set, restricts the rule to those band labels.
type ReclassificationRule struct {
	ID    string      `json:"id"`
	When  []Condition `json:"when"`
	Match MatchMode   `json:"match,omitempty"`
	Shift int         `json:"shift"`
	Bands []string    `json:"bands,omitempty"`
}

// Condition tests an item's answer against a value (option value, or "yes"/"no").
type Condition struct {
	Item   string `json:"item"`
	Equals string `json:"equals"`
}

// Item returns the item with the given id.
func (d *AssessmentDefinition) Item(id string) (*Item, bool) {
	if d.itemIndex != nil {
		idx, ok := d.itemIndex[id]
		if !ok {
			return nil, false
		}
		return &d.Items[idx], true
	}
	for i := range d.Items {
		if d.Items[i].ID == id {
			return &d.Items[i], true
		}
	}
	return nil, false
}

// Table returns the named lookup table.
func (d *AssessmentDefinition) Table(id string) (*LookupTable, bool) {
	t, ok := d.Tables[id]
	return t, ok
}

// Seal builds the lookup indexes. It is called once by the catalog after validation;
// a sealed definition must not be modified.
func (d *AssessmentDefinition) Seal() {
	d.itemIndex = make(map[string]int, len(d.Items))
	for i, item := range d.Items {
		d.itemIndex[item.ID] = i
	}
}

// IsStaged reports whether the definition has more than one stage.
func (d *AssessmentDefinition) IsStaged() bool {
	return len(d.Stages) > 1
}

// Option returns the option with the given value.
func (it *Item) Option(value string) (*Option, bool) {
	for i := range it.Options {
		if it.Options[i].Value == value {
			return &it.Options[i], true
		}
	}
	return nil, false
}

// Clamp limits v to the item's declared [min, max] bounds.
func (it *Item) Clamp(v float64) float64 {
	if it.Min != nil && v < *it.Min {
		return *it.Min
	}
	if it.Max != nil && v > *it.Max {
		return *it.Max
	}
	return v
}

// ItemWeight is the weight a boolean item contributes when answered with its polarity.
func (it *Item) ItemWeight() float64 {
	if it.Weight == nil {
		return 1
	}
	return *it.Weight
}

// PolarityFlag is the boolean answer that scores for this item. Defaults to "yes".
func (it *Item) PolarityFlag() bool {
	if it.Polarity == "" {
		return true
	}
	b, ok := ParseFlagWord(it.Polarity)
	return !ok || b
}

// MinWeight is the smallest value the item can contribute under sum-of-weights.
func (it *Item) MinWeight() float64 {
	lo, _ := it.weightRange()
	return lo
}

// MaxWeight is the largest value the item can contribute under sum-of-weights.
func (it *Item) MaxWeight() float64 {
	_, hi := it.weightRange()
	return hi
}

func (it *Item) weightRange() (float64, float64) {
	switch it.Kind {
	case SINGLE_CHOICE:
		if len(it.Options) == 0 {
			return 0, 0
		}
		lo, hi := it.Options[0].Weight, it.Options[0].Weight
		for _, o := range it.Options[1:] {
			if o.Weight < lo {
				lo = o.Weight
			}
			if o.Weight > hi {
				hi = o.Weight
			}
		}
		return lo, hi
	case BOOLEAN:
		w := it.ItemWeight()
		if w < 0 {
			return w, 0
		}
		return 0, w
	case INTEGER_RANGE:
		var lo, hi float64
		if it.Min != nil {
			lo = *it.Min
		}
		if it.Max != nil {
			hi = *it.Max
		}
		return lo, hi
	default:
		return 0, 0
	}
}

// RequiredItems lists the stage's items that must be answered before it can be scored.
func (s *Stage) RequiredItems(def *AssessmentDefinition) []string {
	required := make([]string, 0, len(s.Items))
	for _, id := range s.Items {
		item, ok := def.Item(id)
		if !ok || item.Optional {
			continue
		}
		required = append(required, id)
	}
	return required
}

// ScoreNames lists the sub-scores a stage produces, in rule order.
func (s *Stage) ScoreNames() []string {
	names := make([]string, len(s.Rules))
	for i, r := range s.Rules {
		names[i] = r.Score
	}
	return names
}

// PartitionFor returns the partition whose keys equal the supplied keys on every axis.
func (t *LookupTable) PartitionFor(keys map[string]string) (*Partition, bool) {
	for i := range t.Partitions {
		p := &t.Partitions[i]
		matched := true
		for _, axis := range t.Axes {
			supplied, ok := keys[axis]
			if !ok || p.Keys[axis] != supplied {
				matched = false
				break
			}
		}
		if matched {
			return p, true
		}
	}
	return nil, false
}
