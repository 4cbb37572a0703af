package domain

// EvaluationResult is the immutable outcome of one evaluation run. It carries no timestamps
// so that identical inputs produce identical results.
type EvaluationResult struct {
	AssessmentID   string         `json:"assessment_id"`
	Name           string         `json:"name"`
	Version        string         `json:"version"`
	Status         ResultStatus   `json:"status"`
	Stages         []StageResult  `json:"stages"`
	Classification Classification `json:"classification"`
}

// StageResult holds the sub-scores and interpreted band of one stage. Stages that were not
// applicable carry their sub-score names with nil values.
type StageResult struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Status StageStatus `json:"status"`
	Scores []SubScore  `json:"scores"`
	Band   *BandResult `json:"band,omitempty"`
	// Reason explains a not-applicable or not-assessable status.
	Reason string `json:"reason,omitempty"`
}

// SubScore is one named score produced by a scoring rule. Value is nil when the stage did not run.
type SubScore struct {
	Name  string   `json:"name"`
	Label string   `json:"label,omitempty"`
	Value *float64 `json:"value"`
	// Derived is the band label of a lookup-derived score (e.g. an age band).
	Derived string `json:"derived,omitempty"`
}

// BandResult is an interpreted band. Label/Index are the final band after reclassification;
// PrimaryLabel/PrimaryIndex are the band the score resolved to.
type BandResult struct {
	Table            string                 `json:"table"`
	Label            string                 `json:"label"`
	Index            int                    `json:"index"`
	PrimaryLabel     string                 `json:"primary_label"`
	PrimaryIndex     int                    `json:"primary_index"`
	Reclassification ReclassificationStatus `json:"reclassification"`
	RuleID           string                 `json:"rule_id,omitempty"`
}

// Reclassified reports whether a reclassification rule moved the band.
func (b *BandResult) Reclassified() bool {
	return b != nil && b.Reclassification == RECLASS_SHIFTED
}

// Classification is the overall outcome. Band is nil for a terminal not-assessable result.
type Classification struct {
	Label string      `json:"label"`
	Stage string      `json:"stage,omitempty"`
	Band  *BandResult `json:"band,omitempty"`
}

// Clone returns a deep copy that shares no memory with r.
func (r *EvaluationResult) Clone() *EvaluationResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Stages = make([]StageResult, len(r.Stages))
	for i, st := range r.Stages {
		st.Scores = append([]SubScore(nil), st.Scores...)
		for j := range st.Scores {
			if v := st.Scores[j].Value; v != nil {
				value := *v
				st.Scores[j].Value = &value
			}
		}
		st.Band = st.Band.clone()
		c.Stages[i] = st
	}
	c.Classification.Band = r.Classification.Band.clone()
	return &c
}

func (b *BandResult) clone() *BandResult {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

// Stage returns the result of the named stage.
func (r *EvaluationResult) Stage(id string) (*StageResult, bool) {
	for i := range r.Stages {
		if r.Stages[i].ID == id {
			return &r.Stages[i], true
		}
	}
	return nil, false
}

// Score returns the named sub-score from any stage.
func (r *EvaluationResult) Score(name string) (*SubScore, bool) {
	for i := range r.Stages {
		if s, ok := r.Stages[i].Score(name); ok {
			return s, true
		}
	}
	return nil, false
}

// Score returns the named sub-score of the stage.
func (s *StageResult) Score(name string) (*SubScore, bool) {
	for i := range s.Scores {
		if s.Scores[i].Name == name {
			return &s.Scores[i], true
		}
	}
	return nil, false
}

// Progress describes how far a response set has advanced through an assessment.
type Progress struct {
	AssessmentID string   `json:"assessment_id"`
	CurrentStage string   `json:"current_stage,omitempty"`
	Missing      []string `json:"missing"`
	ScoredStages []string `json:"scored_stages"`
	Complete     bool     `json:"complete"`
	// Error is set when the run stopped on an input error other than missing answers.
	Error string `json:"error,omitempty"`
}

// Summary is the catalog view of a definition used for enumeration.
type Summary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Version   string `json:"version"`
	Category  string `json:"category,omitempty"`
	Items     int    `json:"items"`
	Stages    int    `json:"stages"`
	Staged    bool   `json:"staged"`
	Describes string `json:"description,omitempty"`
}

// Summarize builds the catalog summary of a definition.
func (d *AssessmentDefinition) Summarize() Summary {
	return Summary{
		ID:        d.ID,
		Name:      d.Name,
		Version:   d.Version,
		Category:  d.Category,
		Items:     len(d.Items),
		Stages:    len(d.Stages),
		Staged:    d.IsStaged(),
		Describes: d.Description,
	}
}
