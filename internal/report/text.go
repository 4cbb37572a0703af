// Package report renders finished evaluation results for people and for export. Every
// format is a pure function of the result plus the subject label and timestamp.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/clinical-assessment-engine/internal/domain"
)

// Options carries report metadata that is not part of the evaluation result.
type Options struct {
	Subject string
	Time    time.Time
}

const notApplicable = "n/a"

// Text renders a line-oriented plain-text report.
func Text(result *domain.EvaluationResult, opts Options) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s (version %s)\n", result.Name, result.Version)
	if opts.Subject != "" {
		fmt.Fprintf(&b, "Subject: %s\n", opts.Subject)
	}
	fmt.Fprintf(&b, "Date: %s\n", opts.Time.Format("2006-01-02 15:04"))

	for _, stage := range result.Stages {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s [%s]\n", stage.Name, stage.Status)
		if stage.Reason != "" && stage.Status != domain.STAGE_SCORED {
			fmt.Fprintf(&b, "  %s\n", stage.Reason)
		}
		for _, score := range stage.Scores {
			fmt.Fprintf(&b, "  %s: %s\n", scoreLabel(score), ScoreValue(score))
		}
		if stage.Band != nil {
			fmt.Fprintf(&b, "  Band: %s\n", BandText(stage.Band))
		}
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "Classification: %s\n", ClassificationText(result))
	return b.String()
}

// BandText renders a band, disclosing any reclassification.
func BandText(band *domain.BandResult) string {
	switch band.Reclassification {
	case domain.RECLASS_SHIFTED:
		return fmt.Sprintf("%s (reclassified from %s)", band.Label, band.PrimaryLabel)
	case domain.RECLASS_NOT_EVALUATED:
		return fmt.Sprintf("%s (reclassification not evaluated)", band.Label)
	default:
		return band.Label
	}
}

// ClassificationText renders the overall classification.
func ClassificationText(result *domain.EvaluationResult) string {
	c := result.Classification
	if c.Band != nil {
		return BandText(c.Band)
	}
	if c.Label == "" {
		return notApplicable
	}
	return c.Label
}

// ScoreValue renders a sub-score value; scores of stages that did not run are "n/a".
func ScoreValue(score domain.SubScore) string {
	if score.Value == nil {
		return notApplicable
	}
	v := strconv.FormatFloat(*score.Value, 'f', -1, 64)
	if score.Derived != "" {
		return fmt.Sprintf("%s (%s)", v, score.Derived)
	}
	return v
}

func scoreLabel(score domain.SubScore) string {
	if score.Label != "" {
		return score.Label
	}
	return score.Name
}
