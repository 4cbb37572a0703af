package definitionstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recordColumns = []string{"assessment_id", "name", "version", "category", "document", "checksum", "created_at", "updated_at"}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	return store, mock
}

func TestNewPostgresStore_RequiresDB(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}

func TestPostgresStore_SaveUpserts(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := testRecord(t, "braden", "1.0")

	mock.ExpectQuery(`INSERT INTO assessment_definitions .* ON CONFLICT \(assessment_id\) DO UPDATE`).
		WithArgs("braden", "Scale braden", "1.0", "screening", sqlmock.AnyArg(), rec.Checksum, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	require.NoError(t, store.Save(context.Background(), rec))
	assert.Equal(t, created, rec.CreatedAt)
	assert.False(t, rec.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT assessment_id, name, version, category, document, checksum, created_at, updated_at\s+FROM assessment_definitions\s+WHERE assessment_id = \$1`).
		WithArgs("mna").
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("mna", "Mini Nutritional Assessment", "1.0", "nutrition", []byte(`{"id":"mna"}`), "abc", now, now))

	rec, err := store.Get(context.Background(), "mna")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Mini Nutritional Assessment", rec.Name)
	assert.JSONEq(t, `{"id":"mna"}`, string(rec.Document))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	mock.ExpectQuery(`FROM assessment_definitions`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	rec, err := store.Get(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestPostgresStore_ListAndCount(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`ORDER BY assessment_id\s+LIMIT \$1 OFFSET \$2`).
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("braden", "Braden", "1.0", "skin", []byte(`{}`), "a", now, now).
			AddRow("downton", "Downton", "1.0", "falls", []byte(`{}`), "b", now, now))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM assessment_definitions`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	list, err := store.List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	mock.ExpectExec(`DELETE FROM assessment_definitions WHERE assessment_id = \$1`).
		WithArgs("braden").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Delete(context.Background(), "braden"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
