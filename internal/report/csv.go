package report

import (
	"strconv"
	"strings"
	"time"

	"github.com/clinical-assessment-engine/internal/domain"
)

// CSV renders one header row and one data row. Every field is double-quoted with embedded
// quotes doubled.
func CSV(result *domain.EvaluationResult, opts Options) string {
	header := []string{"assessment_id", "assessment", "version", "subject", "timestamp", "status"}
	row := []string{
		result.AssessmentID,
		result.Name,
		result.Version,
		opts.Subject,
		opts.Time.UTC().Format(time.RFC3339),
		string(result.Status),
	}

	for _, stage := range result.Stages {
		for _, score := range stage.Scores {
			header = append(header, score.Name)
			row = append(row, csvScore(score))
		}
		if stage.Band != nil {
			header = append(header, stage.ID+"_band", stage.ID+"_reclassification")
			row = append(row, stage.Band.Label, string(stage.Band.Reclassification))
		}
	}

	header = append(header, "classification", "reclassified")
	reclassified := "no"
	if result.Classification.Band.Reclassified() {
		reclassified = "yes"
	}
	row = append(row, ClassificationText(result), reclassified)

	var b strings.Builder
	writeRecord(&b, header)
	writeRecord(&b, row)
	return b.String()
}

func csvScore(score domain.SubScore) string {
	if score.Value == nil {
		return notApplicable
	}
	return strconv.FormatFloat(*score.Value, 'f', -1, 64)
}

// writeRecord quotes every field. encoding/csv only quotes fields that need it.
func writeRecord(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteString("\r\n")
}
