package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTestSQLite opens the write/read pool pair on a fresh database in
// t.TempDir(), applies the full migration set, and registers cleanup. Tests
// get the same WAL/foreign-key configuration the server runs with.
func OpenTestSQLite(t *testing.T) (writeDB, readDB *sql.DB) {
	t.Helper()

	writeDB, readDB, err := OpenSQLitePair(filepath.Join(t.TempDir(), "skycrm-test.sqlite"), 0)
	if err != nil {
		t.Fatalf("open test sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = readDB.Close()
		_ = writeDB.Close()
	})

	if err := RunMigrations(writeDB); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return writeDB, readDB
}
