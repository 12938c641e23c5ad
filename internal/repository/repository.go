package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tasktrack/tasktrack-go/internal/database"
)

var (
	ErrUnknownField   = errors.New("unknown field")
	ErrImmutableField = errors.New("field cannot be changed")
	ErrEmptyFilter    = errors.New("filter must not be empty")
)

// Filter is a set of column = value predicates that must all hold.
// A nil value matches NULL.
type Filter map[string]any

// Changes maps columns to their new values for a partial update.
type Changes map[string]any

// Schema describes how an entity of type T is stored.
type Schema[T any] struct {
	Table string
	// Key is the server-assigned int64 identity column.
	Key string
	// Columns are the writable columns, in the order Values returns them.
	Columns []string
	// Values returns the insert values for Columns.
	Values func(e *T) []any
	// Targets returns scan destinations for Key (an *int64) followed by Columns.
	Targets func(e *T) []any
}

// Repository provides CRUD over a single table described by a Schema.
// Every method runs against the Querier it is given, normally the session
// transaction of the current operation.
type Repository[T any] struct {
	schema     Schema[T]
	dialect    database.Dialect
	known      map[string]struct{}
	selectList string
}

// New creates a Repository for schema using the given SQL dialect.
func New[T any](schema Schema[T], dialect database.Dialect) *Repository[T] {
	known := make(map[string]struct{}, len(schema.Columns)+1)
	known[schema.Key] = struct{}{}
	for _, c := range schema.Columns {
		known[c] = struct{}{}
	}

	return &Repository[T]{
		schema:     schema,
		dialect:    dialect,
		known:      known,
		selectList: strings.Join(append([]string{schema.Key}, schema.Columns...), ", "),
	}
}

// Create inserts e and returns the stored row, including its new identity.
func (r *Repository[T]) Create(ctx context.Context, q database.Querier, e *T) (*T, error) {
	placeholders := make([]string, len(r.schema.Columns))
	for i := range placeholders {
		placeholders[i] = r.dialect.Placeholder(i + 1)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		r.schema.Table, strings.Join(r.schema.Columns, ", "), strings.Join(placeholders, ", "))
	args := r.schema.Values(e)

	var id int64
	if r.dialect.Returning {
		if err := q.QueryRowContext(ctx, query+" RETURNING "+r.schema.Key, args...).Scan(&id); err != nil {
			return nil, fmt.Errorf("inserting into %s: %w", r.schema.Table, err)
		}
	} else {
		result, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("inserting into %s: %w", r.schema.Table, err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return nil, fmt.Errorf("reading %s id: %w", r.schema.Table, err)
		}
	}

	return r.GetOne(ctx, q, Filter{r.schema.Key: id})
}

// GetOne returns the first entity (by key order) matching f, or nil if none does.
func (r *Repository[T]) GetOne(ctx context.Context, q database.Querier, f Filter) (*T, error) {
	where, args, err := r.where(f, 1)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s LIMIT 1",
		r.selectList, r.schema.Table, where, r.schema.Key)

	e := new(T)
	if err := q.QueryRowContext(ctx, query, args...).Scan(r.schema.Targets(e)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("selecting from %s: %w", r.schema.Table, err)
	}
	return e, nil
}

// GetAll returns every entity matching f in key order. The result is never nil.
func (r *Repository[T]) GetAll(ctx context.Context, q database.Querier, f Filter) ([]T, error) {
	where, args, err := r.where(f, 1)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		r.selectList, r.schema.Table, where, r.schema.Key)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting from %s: %w", r.schema.Table, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var e T
		if err := rows.Scan(r.schema.Targets(&e)...); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", r.schema.Table, err)
		}
		out = append(out, e)
	}

	return out, rows.Err()
}

// Update applies changes to the first entity matching f and returns its new
// state, or nil if nothing matched.
func (r *Repository[T]) Update(ctx context.Context, q database.Querier, f Filter, changes Changes) (*T, error) {
	cols, err := r.columns(changes)
	if err != nil {
		return nil, err
	}

	existing, err := r.GetOne(ctx, q, f)
	if err != nil || existing == nil {
		return nil, err
	}
	if len(cols) == 0 {
		return existing, nil
	}

	id := r.keyOf(existing)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = c + " = " + r.dialect.Placeholder(i+1)
		args = append(args, changes[c])
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		r.schema.Table, strings.Join(sets, ", "), r.schema.Key, r.dialect.Placeholder(len(cols)+1))
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("updating %s: %w", r.schema.Table, err)
	}

	return r.GetOne(ctx, q, Filter{r.schema.Key: id})
}

// Delete removes the first entity matching f and returns its last state, or
// nil if nothing matched.
func (r *Repository[T]) Delete(ctx context.Context, q database.Querier, f Filter) (*T, error) {
	existing, err := r.GetOne(ctx, q, f)
	if err != nil || existing == nil {
		return nil, err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		r.schema.Table, r.schema.Key, r.dialect.Placeholder(1))
	if _, err := q.ExecContext(ctx, query, r.keyOf(existing)); err != nil {
		return nil, fmt.Errorf("deleting from %s: %w", r.schema.Table, err)
	}
	return existing, nil
}

// DeleteAll removes every entity matching f and returns how many were removed.
func (r *Repository[T]) DeleteAll(ctx context.Context, q database.Querier, f Filter) (int64, error) {
	if len(f) == 0 {
		return 0, ErrEmptyFilter
	}

	where, args, err := r.where(f, 1)
	if err != nil {
		return 0, err
	}

	result, err := q.ExecContext(ctx, "DELETE FROM "+r.schema.Table+where, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting from %s: %w", r.schema.Table, err)
	}
	return result.RowsAffected()
}

// where builds a WHERE clause (with leading space) from f. Columns are
// sorted so the generated SQL is stable.
func (r *Repository[T]) where(f Filter, first int) (string, []any, error) {
	if len(f) == 0 {
		return "", nil, nil
	}

	cols := make([]string, 0, len(f))
	for c := range f {
		if _, ok := r.known[c]; !ok {
			return "", nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, r.schema.Table, c)
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)

	preds := make([]string, len(cols))
	args := make([]any, 0, len(cols))
	n := first
	for i, c := range cols {
		if f[c] == nil {
			preds[i] = c + " IS NULL"
			continue
		}
		preds[i] = c + " = " + r.dialect.Placeholder(n)
		args = append(args, f[c])
		n++
	}

	return " WHERE " + strings.Join(preds, " AND "), args, nil
}

// columns validates and sorts the columns named in changes.
func (r *Repository[T]) columns(changes Changes) ([]string, error) {
	cols := make([]string, 0, len(changes))
	for c := range changes {
		if c == r.schema.Key {
			return nil, fmt.Errorf("%w: %s.%s", ErrImmutableField, r.schema.Table, c)
		}
		if _, ok := r.known[c]; !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, r.schema.Table, c)
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols, nil
}

func (r *Repository[T]) keyOf(e *T) int64 {
	return *r.schema.Targets(e)[0].(*int64)
}
