// Package databasetest opens throwaway SQLite databases for tests.
package databasetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tasktrack/tasktrack-go/internal/database"
)

// Open returns a migrated SQLite database stored in the test's temp dir.
func Open(t testing.TB) *database.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "tasks.db") + "?_pragma=busy_timeout(5000)"
	db, err := database.Open(context.Background(), database.Options{
		Driver:       "sqlite",
		DSN:          dsn,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}
