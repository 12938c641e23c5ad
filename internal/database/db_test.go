package database_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tasktrack/tasktrack-go/internal/database"
	"github.com/tasktrack/tasktrack-go/internal/database/databasetest"
)

func countUsers(t *testing.T, db *database.DB) int {
	t.Helper()
	var n int
	if err := db.SQL().QueryRowContext(context.Background(), "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		t.Fatalf("counting users: %v", err)
	}
	return n
}

func insertUser(ctx context.Context, q database.Querier, email string) error {
	_, err := q.ExecContext(ctx, "INSERT INTO users (email, hashed_password) VALUES (?, ?)", email, "x")
	return err
}

func TestSessionCommits(t *testing.T) {
	db := databasetest.Open(t)
	ctx := context.Background()

	err := db.Session(ctx, func(q database.Querier) error {
		return insertUser(ctx, q, "a@example.com")
	})
	if err != nil {
		t.Fatalf("Session() unexpected error: %v", err)
	}
	if n := countUsers(t, db); n != 1 {
		t.Errorf("users = %d, want 1", n)
	}
}

func TestSessionRollsBackOnError(t *testing.T) {
	db := databasetest.Open(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.Session(ctx, func(q database.Querier) error {
		if err := insertUser(ctx, q, "a@example.com"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Session() error = %v, want %v", err, boom)
	}
	if n := countUsers(t, db); n != 0 {
		t.Errorf("users = %d, want 0 after rollback", n)
	}
}

func TestSessionRollsBackOnPanic(t *testing.T) {
	db := databasetest.Open(t)
	ctx := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_ = db.Session(ctx, func(q database.Querier) error {
			if err := insertUser(ctx, q, "a@example.com"); err != nil {
				return err
			}
			panic("boom")
		})
	}()

	if n := countUsers(t, db); n != 0 {
		t.Errorf("users = %d, want 0 after panic", n)
	}
}

func TestSessionReleasesConnection(t *testing.T) {
	db := databasetest.Open(t)
	ctx := context.Background()

	// The test pool holds a single connection; a leaked one would block here.
	for i := 0; i < 5; i++ {
		err := db.Session(ctx, func(q database.Querier) error { return sql.ErrNoRows })
		if !errors.Is(err, sql.ErrNoRows) {
			t.Fatalf("Session() error = %v, want %v", err, sql.ErrNoRows)
		}
	}
	if got := db.SQL().Stats().InUse; got != 0 {
		t.Errorf("connections in use = %d, want 0", got)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := databasetest.Open(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate() unexpected error: %v", err)
	}
}

func TestUniqueViolation(t *testing.T) {
	db := databasetest.Open(t)
	ctx := context.Background()

	if err := db.Session(ctx, func(q database.Querier) error { return insertUser(ctx, q, "dup@example.com") }); err != nil {
		t.Fatalf("first insert unexpected error: %v", err)
	}
	err := db.Session(ctx, func(q database.Querier) error { return insertUser(ctx, q, "dup@example.com") })
	if !database.IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation(%v) = false, want true", err)
	}
	if database.IsUniqueViolation(nil) {
		t.Error("IsUniqueViolation(nil) = true, want false")
	}
}

func TestIsUniqueViolationDriverErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"mysql duplicate entry", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a' for key 'email'"}, true},
		{"mysql other", &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"}, false},
		{"postgres unique", &pgconn.PgError{Code: "23505"}, true},
		{"postgres foreign key", &pgconn.PgError{Code: "23503"}, false},
		{"wrapped", fmt.Errorf("inserting into users: %w", &pgconn.PgError{Code: "23505"}), true},
		{"message only", errors.New("UNIQUE constraint failed: users.email"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := database.IsUniqueViolation(tt.err); got != tt.want {
				t.Errorf("IsUniqueViolation(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestSQLiteEnforcesForeignKeys(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		dsn  string
	}{
		{"plain path", filepath.Join(t.TempDir(), "plain.db")},
		{"other pragmas", filepath.Join(t.TempDir(), "tuned.db") + "?_pragma=busy_timeout(5000)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := database.Open(ctx, database.Options{Driver: "sqlite", DSN: tt.dsn, MaxOpenConns: 2, MaxIdleConns: 2})
			if err != nil {
				t.Fatalf("Open() unexpected error: %v", err)
			}
			t.Cleanup(func() { db.Close() })
			if err := db.Migrate(ctx); err != nil {
				t.Fatalf("Migrate() unexpected error: %v", err)
			}

			err = db.Session(ctx, func(q database.Querier) error {
				_, err := q.ExecContext(ctx, "INSERT INTO tasks (title, owner_id) VALUES (?, ?)", "orphan", 4242)
				return err
			})
			if err == nil {
				t.Fatal("inserting a task for a missing owner succeeded, want a foreign key error")
			}

			var n int
			if err := db.SQL().QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&n); err != nil {
				t.Fatalf("counting tasks: %v", err)
			}
			if n != 0 {
				t.Errorf("tasks = %d, want 0", n)
			}
		})
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := database.Open(context.Background(), database.Options{Driver: "oracle"})
	if !errors.Is(err, database.ErrUnsupportedDriver) {
		t.Errorf("Open() error = %v, want %v", err, database.ErrUnsupportedDriver)
	}
}

func TestPlaceholder(t *testing.T) {
	if got := database.Postgres.Placeholder(3); got != "$3" {
		t.Errorf("Postgres.Placeholder(3) = %q, want $3", got)
	}
	if got := database.MySQL.Placeholder(3); got != "?" {
		t.Errorf("MySQL.Placeholder(3) = %q, want ?", got)
	}
}
