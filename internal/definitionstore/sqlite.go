package definitionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite definition store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS assessment_definitions (
		assessment_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		version TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		document TEXT NOT NULL,
		checksum TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_definitions_category ON assessment_definitions(category);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or replaces a definition.
func (s *SQLiteStore) Save(ctx context.Context, record *Record) error {
	now := time.Now().UTC()
	if record.Checksum == "" {
		record.Checksum = Checksum(record.Document)
	}

	var createdAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT created_at FROM assessment_definitions WHERE assessment_id = ?",
		record.AssessmentID,
	).Scan(&createdAt)

	if err == nil {
		record.CreatedAt = createdAt
		record.UpdatedAt = now

		_, err = s.db.ExecContext(ctx, `
			UPDATE assessment_definitions SET
				name = ?,
				version = ?,
				category = ?,
				document = ?,
				checksum = ?,
				updated_at = ?
			WHERE assessment_id = ?
		`,
			record.Name,
			record.Version,
			record.Category,
			string(record.Document),
			record.Checksum,
			now,
			record.AssessmentID,
		)
		if err != nil {
			return fmt.Errorf("failed to update: %w", err)
		}
		return nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	record.CreatedAt = now
	record.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assessment_definitions (
			assessment_id, name, version, category, document, checksum, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.AssessmentID,
		record.Name,
		record.Version,
		record.Category,
		string(record.Document),
		record.Checksum,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}
	return nil
}

// Get retrieves a definition by assessment id.
func (s *SQLiteStore) Get(ctx context.Context, assessmentID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT assessment_id, name, version, category, document, checksum, created_at, updated_at
		FROM assessment_definitions
		WHERE assessment_id = ?
	`, assessmentID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return rec, nil
}

// List returns stored definitions ordered by assessment id.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT assessment_id, name, version, category, document, checksum, created_at, updated_at
		FROM assessment_definitions
		ORDER BY assessment_id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
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
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assessment_definitions").Scan(&count)
	return count, err
}

// Delete removes a definition by assessment id.
func (s *SQLiteStore) Delete(ctx context.Context, assessmentID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM assessment_definitions WHERE assessment_id = ?", assessmentID)
	return err
}

// ExportJSON exports all definitions to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportAll(ctx, s, writer)
}

// ImportJSON imports definitions from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	return importAll(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
