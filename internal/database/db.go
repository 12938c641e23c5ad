package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Querier is the subset of *sql.DB, *sql.Conn and *sql.Tx the repositories use.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect captures the SQL differences between the supported drivers.
type Dialect struct {
	Name string
	// Numbered placeholders ($1, $2, ...) instead of ?.
	Numbered bool
	// Returning reports support for INSERT ... RETURNING.
	Returning bool
}

// Placeholder returns the bind parameter for the n-th (1-based) argument.
func (d Dialect) Placeholder(n int) string {
	if d.Numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

var (
	MySQL    = Dialect{Name: "mysql"}
	Postgres = Dialect{Name: "postgres", Numbered: true, Returning: true}
	SQLite   = Dialect{Name: "sqlite"}
)

// Options configures the connection pool.
type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AcquireTimeout  time.Duration
}

// DB is a bounded connection pool plus the dialect of the server behind it.
type DB struct {
	sql            *sql.DB
	dialect        Dialect
	acquireTimeout time.Duration
}

// Open creates the connection pool for opts.Driver and pings the server.
func Open(ctx context.Context, opts Options) (*DB, error) {
	driverName, dialect, err := resolve(opts.Driver)
	if err != nil {
		return nil, err
	}

	dsn := opts.DSN
	if dialect == SQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s pool: %w", opts.Driver, err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s: %w", opts.Driver, err)
	}

	acquire := opts.AcquireTimeout
	if acquire <= 0 {
		acquire = 30 * time.Second
	}

	return &DB{sql: db, dialect: dialect, acquireTimeout: acquire}, nil
}

func resolve(driver string) (string, Dialect, error) {
	switch driver {
	case "mysql":
		return "mysql", MySQL, nil
	case "postgres":
		return "pgx", Postgres, nil
	case "sqlite":
		return "sqlite", SQLite, nil
	default:
		return "", Dialect{}, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

// sqliteDSN turns on foreign key enforcement for every connection unless the
// DSN already sets the pragma.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

// Dialect returns the SQL dialect of the pool.
func (d *DB) Dialect() Dialect {
	return d.dialect
}

// SQL exposes the underlying pool, e.g. for stats collectors.
func (d *DB) SQL() *sql.DB {
	return d.sql
}

// Ping checks that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

func (d *DB) Close() error {
	return d.sql.Close()
}

// Session runs fn inside one transaction on one pooled connection. The
// connection is acquired within the configured timeout, the transaction is
// committed when fn returns nil and rolled back otherwise (including on
// panic), and the connection always goes back to the pool.
func (d *DB) Session(ctx context.Context, fn func(q Querier) error) (err error) {
	acquireCtx, cancel := context.WithTimeout(ctx, d.acquireTimeout)
	conn, err := d.sql.Conn(acquireCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rolling back: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a unique-constraint violation on
// any of the supported drivers.
func IsUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062 // ER_DUP_ENTRY
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
