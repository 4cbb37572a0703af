// Package definitionstore persists assessment definition documents so that operators can
// add or replace assessments without rebuilding the binary. It stores catalog source
// documents only; evaluation results and response sets are never persisted.
package definitionstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Record is one stored definition document.
type Record struct {
	AssessmentID string          `json:"assessment_id"`
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Category     string          `json:"category,omitempty"`
	Document     json.RawMessage `json:"document"`
	Checksum     string          `json:"checksum"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Store defines the interface for definition storage operations.
type Store interface {
	// Save stores or replaces the definition with the record's assessment id.
	Save(ctx context.Context, record *Record) error

	// Get retrieves a definition by assessment id. It returns nil, nil when absent.
	Get(ctx context.Context, assessmentID string) (*Record, error)

	// List returns stored definitions ordered by assessment id.
	List(ctx context.Context, limit, offset int) ([]*Record, error)

	// Count returns the number of stored definitions.
	Count(ctx context.Context) (int64, error)

	// Delete removes a definition by assessment id.
	Delete(ctx context.Context, assessmentID string) error

	// ExportJSON exports all definitions to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports definitions from a JSON reader, skipping ids already stored.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// DefinitionExport represents the JSON export format.
type DefinitionExport struct {
	Version     string    `json:"version"`
	ExportedAt  time.Time `json:"exported_at"`
	Count       int       `json:"count"`
	Definitions []*Record `json:"definitions"`
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 100000

// NewRecord builds a record from a JSON definition document, reading the header fields
// from the document itself.
func NewRecord(document []byte) (*Record, error) {
	var header struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Version  string `json:"version"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal(document, &header); err != nil {
		return nil, fmt.Errorf("failed to read definition header: %w", err)
	}
	if header.ID == "" {
		return nil, fmt.Errorf("definition document has no id")
	}
	return &Record{
		AssessmentID: header.ID,
		Name:         header.Name,
		Version:      header.Version,
		Category:     header.Category,
		Document:     json.RawMessage(document),
		Checksum:     Checksum(document),
	}, nil
}

// Checksum returns the hex SHA-256 of a document.
func Checksum(document []byte) string {
	sum := sha256.Sum256(document)
	return hex.EncodeToString(sum[:])
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*Record, error) {
	r := &Record{}
	var document []byte
	err := s.Scan(
		&r.AssessmentID, &r.Name, &r.Version, &r.Category,
		&document, &r.Checksum, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Document = json.RawMessage(document)
	return r, nil
}

func exportAll(ctx context.Context, store Store, writer io.Writer) error {
	all, err := store.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list definitions: %w", err)
	}

	export := &DefinitionExport{
		Version:     "1.0",
		ExportedAt:  time.Now().UTC(),
		Count:       len(all),
		Definitions: all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func importAll(ctx context.Context, store Store, reader io.Reader) (imported int, skipped int, err error) {
	var export DefinitionExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, rec := range export.Definitions {
		existing, err := store.Get(ctx, rec.AssessmentID)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}
		if existing != nil {
			skipped++
			continue
		}
		if rec.Checksum == "" {
			rec.Checksum = Checksum(rec.Document)
		}
		if err := store.Save(ctx, rec); err != nil {
			return imported, skipped, fmt.Errorf("failed to save %s: %w", rec.AssessmentID, err)
		}
		imported++
	}

	return imported, skipped, nil
}
