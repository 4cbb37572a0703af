package definitionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL definition store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL definition store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save stores or replaces a definition.
func (s *PostgresStore) Save(ctx context.Context, record *Record) error {
	now := time.Now().UTC()
	if record.Checksum == "" {
		record.Checksum = Checksum(record.Document)
	}

	query := `
		INSERT INTO assessment_definitions (
			assessment_id, name, version, category, document, checksum, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (assessment_id) DO UPDATE SET
			name = EXCLUDED.name,
			version = EXCLUDED.version,
			category = EXCLUDED.category,
			document = EXCLUDED.document,
			checksum = EXCLUDED.checksum,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		record.AssessmentID,
		record.Name,
		record.Version,
		record.Category,
		string(record.Document),
		record.Checksum,
		now,
		now,
	).Scan(&record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save definition: %w", err)
	}

	record.UpdatedAt = now
	return nil
}

// Get retrieves a definition by assessment id.
func (s *PostgresStore) Get(ctx context.Context, assessmentID string) (*Record, error) {
	query := `
		SELECT assessment_id, name, version, category, document, checksum, created_at, updated_at
		FROM assessment_definitions
		WHERE assessment_id = $1
	`

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, assessmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get definition: %w", err)
	}
	return rec, nil
}

// List returns stored definitions ordered by assessment id.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Record, error) {
	query := `
		SELECT assessment_id, name, version, category, document, checksum, created_at, updated_at
		FROM assessment_definitions
		ORDER BY assessment_id
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	defer rows.Close()

	var result []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rec)
	}

	return result, rows.Err()
}

// Count returns the number of stored definitions.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assessment_definitions").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count definitions: %w", err)
	}
	return count, nil
}

// Delete removes a definition by assessment id.
func (s *PostgresStore) Delete(ctx context.Context, assessmentID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM assessment_definitions WHERE assessment_id = $1", assessmentID)
	if err != nil {
		return fmt.Errorf("failed to delete definition: %w", err)
	}
	return nil
}

// ExportJSON exports all definitions to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportAll(ctx, s, writer)
}

// ImportJSON imports definitions from a JSON reader.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	return importAll(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
