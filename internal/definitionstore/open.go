package definitionstore

import (
	"strings"
)

// Open picks the store implementation from the DSN: postgres:// and postgresql:// URLs open
// a PostgresStore, anything else is treated as a SQLite file path.
func Open(dsn string) (Store, error) {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return NewPostgresStoreFromURL(dsn)
	}
	return NewSQLiteStore(strings.TrimPrefix(dsn, "sqlite://"))
}
