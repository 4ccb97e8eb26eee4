package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTestSQLite opens a migrated metadata store in t.TempDir() and closes it
// on cleanup. Tests that don't need the read/write split can use writeDB for
// everything.
func OpenTestSQLite(t *testing.T) (writeDB, readDB *sql.DB) {
	t.Helper()

	store, err := OpenMetaStore(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open test metadata store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store.Write, store.Read
}
