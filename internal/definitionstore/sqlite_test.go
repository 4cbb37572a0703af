package definitionstore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "definitions.db"))
	require.NoError(t, err)
	return store
}

func testRecord(t *testing.T, id, version string) *Record {
	t.Helper()
	rec, err := NewRecord([]byte(`{"id":"` + id + `","name":"Scale ` + id + `","version":"` + version + `","category":"screening","items":[],"stages":[]}`))
	require.NoError(t, err)
	return rec
}

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "definitions.db")

	store, err := NewSQLiteStore(dbPath)

	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
}

func TestNewRecord(t *testing.T) {
	rec, err := NewRecord([]byte(`{"id":"braden","name":"Braden Scale","version":"1.0","category":"pressure-injury"}`))
	require.NoError(t, err)

	assert.Equal(t, "braden", rec.AssessmentID)
	assert.Equal(t, "Braden Scale", rec.Name)
	assert.Equal(t, "pressure-injury", rec.Category)
	assert.Len(t, rec.Checksum, 64)

	_, err = NewRecord([]byte(`{"name":"anonymous"}`))
	assert.Error(t, err)

	_, err = NewRecord([]byte(`not json`))
	assert.Error(t, err)
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	rec := testRecord(t, "braden", "1.0")
	require.NoError(t, store.Save(ctx, rec))
	assert.False(t, rec.CreatedAt.IsZero(), "CreatedAt should be set")

	retrieved, err := store.Get(ctx, "braden")
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, "Scale braden", retrieved.Name)
	assert.JSONEq(t, string(rec.Document), string(retrieved.Document))
	assert.Equal(t, rec.Checksum, retrieved.Checksum)
}

func TestSQLiteStore_SaveReplaces(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testRecord(t, "downton", "1.0")))
	require.NoError(t, store.Save(ctx, testRecord(t, "downton", "2.0")))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	retrieved, err := store.Get(ctx, "downton")
	require.NoError(t, err)
	assert.Equal(t, "2.0", retrieved.Version)
}

func TestSQLiteStore_GetNotFound(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	retrieved, err := store.Get(context.Background(), "missing")

	assert.NoError(t, err)
	assert.Nil(t, retrieved, "Should return nil for not found")
}

func TestSQLiteStore_ListCountDelete(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	for _, id := range []string{"pfeiffer", "braden", "mna"} {
		require.NoError(t, store.Save(ctx, testRecord(t, id, "1.0")))
	}

	list, err := store.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "braden", list[0].AssessmentID)
	assert.Equal(t, "pfeiffer", list[2].AssessmentID)

	page, err := store.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "mna", page[0].AssessmentID)

	require.NoError(t, store.Delete(ctx, "mna"))
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSQLiteStore_ExportImport(t *testing.T) {
	source := createTestStore(t)
	defer source.Close()
	ctx := context.Background()

	require.NoError(t, source.Save(ctx, testRecord(t, "braden", "1.0")))
	require.NoError(t, source.Save(ctx, testRecord(t, "mini-cog", "1.0")))

	var buf bytes.Buffer
	require.NoError(t, source.ExportJSON(ctx, &buf))
	assert.Contains(t, buf.String(), `"count": 2`)

	target := createTestStore(t)
	defer target.Close()
	require.NoError(t, target.Save(ctx, testRecord(t, "braden", "0.9")))

	imported, skipped, err := target.ImportJSON(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Equal(t, 1, skipped)

	existing, err := target.Get(ctx, "braden")
	require.NoError(t, err)
	assert.Equal(t, "0.9", existing.Version, "import must not overwrite stored definitions")
}

func TestOpenPicksSQLiteForPaths(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	defer store.Close()

	_, ok := store.(*SQLiteStore)
	assert.True(t, ok)
}
