package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/clinical-assessment-engine/internal/domain"
)

// Record is the structured export of one evaluation.
type Record struct {
	Subject        string                   `json:"subject,omitempty"`
	Timestamp      time.Time                `json:"timestamp"`
	Classification string                   `json:"classification"`
	Reclassified   bool                     `json:"reclassified"`
	Result         *domain.EvaluationResult `json:"result"`
}

// NewRecord builds the export record of a result.
func NewRecord(result *domain.EvaluationResult, opts Options) Record {
	return Record{
		Subject:        opts.Subject,
		Timestamp:      opts.Time.UTC(),
		Classification: ClassificationText(result),
		Reclassified:   result.Classification.Band.Reclassified(),
		Result:         result,
	}
}

// JSON renders the export record as indented JSON.
func JSON(result *domain.EvaluationResult, opts Options) ([]byte, error) {
	data, err := json.MarshalIndent(NewRecord(result, opts), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export record: %w", err)
	}
	return data, nil
}

// Format is an export format name.
type Format string

const (
	FORMAT_TEXT Format = "text"
	FORMAT_CSV  Format = "csv"
	FORMAT_JSON Format = "json"
)

// ParseFormat validates a format name; the empty name means text.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FORMAT_TEXT:
		return FORMAT_TEXT, nil
	case FORMAT_CSV:
		return FORMAT_CSV, nil
	case FORMAT_JSON:
		return FORMAT_JSON, nil
	default:
		return "", domain.NewValidationError("format", "must be text, csv or json", s)
	}
}

// ContentType returns the MIME type of a format.
func (f Format) ContentType() string {
	switch f {
	case FORMAT_CSV:
		return "text/csv; charset=utf-8"
	case FORMAT_JSON:
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Render renders a result in the given format.
func Render(result *domain.EvaluationResult, format Format, opts Options) ([]byte, error) {
	switch format {
	case FORMAT_CSV:
		return []byte(CSV(result, opts)), nil
	case FORMAT_JSON:
		return JSON(result, opts)
	case FORMAT_TEXT, "":
		return []byte(Text(result, opts)), nil
	default:
		return nil, domain.NewValidationError("format", "must be text, csv or json", string(format))
	}
}
