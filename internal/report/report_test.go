package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinical-assessment-engine/internal/domain"
)

func fptr(v float64) *float64 { return &v }

var reportTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func reclassifiedResult() *domain.EvaluationResult {
	band := &domain.BandResult{
		Table:            "impairment",
		Label:            "Mild cognitive impairment",
		Index:            1,
		PrimaryLabel:     "Moderate cognitive impairment",
		PrimaryIndex:     2,
		Reclassification: domain.RECLASS_SHIFTED,
		RuleID:           "low_education",
	}
	return &domain.EvaluationResult{
		AssessmentID: "pfeiffer",
		Name:         "Pfeiffer \"SPMSQ\"",
		Version:      "1.0",
		Status:       domain.RESULT_COMPLETE,
		Stages: []domain.StageResult{{
			ID:     "questionnaire",
			Name:   "Questionnaire",
			Status: domain.STAGE_SCORED,
			Scores: []domain.SubScore{{Name: "errors", Label: "Number of errors", Value: fptr(5)}},
			Band:   band,
		}},
		Classification: domain.Classification{Label: band.Label, Stage: "questionnaire", Band: band},
	}
}

func gatedResult() *domain.EvaluationResult {
	band := &domain.BandResult{
		Table:            "screening_level",
		Label:            "Normal nutritional status",
		Index:            2,
		PrimaryLabel:     "Normal nutritional status",
		PrimaryIndex:     2,
		Reclassification: domain.RECLASS_NOT_DEFINED,
	}
	return &domain.EvaluationResult{
		AssessmentID: "mna",
		Name:         "Mini Nutritional Assessment",
		Version:      "1.0",
		Status:       domain.RESULT_COMPLETE,
		Stages: []domain.StageResult{
			{
				ID:     "screening",
				Name:   "Screening",
				Status: domain.STAGE_SCORED,
				Scores: []domain.SubScore{{Name: "screening", Label: "Screening score", Value: fptr(13)}},
				Band:   band,
			},
			{
				ID:     "assessment",
				Name:   "Full assessment",
				Status: domain.STAGE_NOT_APPLICABLE,
				Reason: "requires screening le 11",
				Scores: []domain.SubScore{
					{Name: "assessment", Label: "Assessment score"},
					{Name: "total", Label: "Total MNA score"},
				},
			},
		},
		Classification: domain.Classification{Label: band.Label, Stage: "screening", Band: band},
	}
}

func TestTextDisclosesReclassification(t *testing.T) {
	out := Text(reclassifiedResult(), Options{Subject: "Bed 4", Time: reportTime})

	assert.Contains(t, out, "Pfeiffer \"SPMSQ\" (version 1.0)")
	assert.Contains(t, out, "Subject: Bed 4")
	assert.Contains(t, out, "Date: 2026-03-14 09:30")
	assert.Contains(t, out, "Number of errors: 5")
	assert.Contains(t, out, "Classification: Mild cognitive impairment (reclassified from Moderate cognitive impairment)")
}

func TestTextNotApplicableStage(t *testing.T) {
	out := Text(gatedResult(), Options{Time: reportTime})

	assert.NotContains(t, out, "Subject:")
	assert.Contains(t, out, "Full assessment [not-applicable]")
	assert.Contains(t, out, "requires screening le 11")
	assert.Contains(t, out, "Total MNA score: n/a")
	assert.NotContains(t, out, "Total MNA score: 0")
}

func TestBandTextNotEvaluated(t *testing.T) {
	band := &domain.BandResult{Label: "Severe", PrimaryLabel: "Severe", Reclassification: domain.RECLASS_NOT_EVALUATED}
	assert.Equal(t, "Severe (reclassification not evaluated)", BandText(band))

	band.Reclassification = domain.RECLASS_NO_SHIFT
	assert.Equal(t, "Severe", BandText(band))
}

func TestClassificationTextNotAssessable(t *testing.T) {
	result := &domain.EvaluationResult{
		Status:         domain.RESULT_NOT_ASSESSABLE,
		Classification: domain.Classification{Label: "Not assessable (RASS -4/-5)", Stage: "delirium"},
	}
	assert.Equal(t, "Not assessable (RASS -4/-5)", ClassificationText(result))
}

func TestCSVQuotesEveryField(t *testing.T) {
	out := CSV(reclassifiedResult(), Options{Subject: `Room "B"`, Time: reportTime})
	lines := strings.Split(strings.TrimRight(out, "\r\n"), "\r\n")
	require.Len(t, lines, 2)

	assert.Equal(t,
		`"assessment_id","assessment","version","subject","timestamp","status","errors","questionnaire_band","questionnaire_reclassification","classification","reclassified"`,
		lines[0])
	assert.Equal(t,
		`"pfeiffer","Pfeiffer ""SPMSQ""","1.0","Room ""B""","2026-03-14T09:30:00Z","complete","5","Mild cognitive impairment","shifted","Mild cognitive impairment (reclassified from Moderate cognitive impairment)","yes"`,
		lines[1])
}

func TestCSVNotApplicableScores(t *testing.T) {
	out := CSV(gatedResult(), Options{Time: reportTime})
	lines := strings.Split(strings.TrimRight(out, "\r\n"), "\r\n")
	require.Len(t, lines, 2)

	assert.Contains(t, lines[0], `"assessment","total"`)
	assert.Contains(t, lines[1], `"13","Normal nutritional status","not-defined","n/a","n/a"`)
}

func TestJSONRecord(t *testing.T) {
	data, err := JSON(reclassifiedResult(), Options{Subject: "Bed 4", Time: reportTime})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Bed 4", decoded["subject"])
	assert.Equal(t, true, decoded["reclassified"])
	assert.Equal(t, "2026-03-14T09:30:00Z", decoded["timestamp"])
	result := decoded["result"].(map[string]any)
	assert.Equal(t, "pfeiffer", result["assessment_id"])
}

func TestParseFormatAndRender(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FORMAT_TEXT, f)

	_, err = ParseFormat("xml")
	assert.Equal(t, domain.CodeValidation, domain.ErrorCode(err))

	for _, format := range []Format{FORMAT_TEXT, FORMAT_CSV, FORMAT_JSON} {
		out, err := Render(reclassifiedResult(), format, Options{Time: reportTime})
		require.NoError(t, err)
		assert.NotEmpty(t, out)
	}
	assert.Equal(t, "text/csv; charset=utf-8", FORMAT_CSV.ContentType())
}
