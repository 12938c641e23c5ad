package database

import (
	"context"
	"embed"
	"fmt"
	"strings"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the schema for the pool's dialect. Every statement is
// idempotent so it is safe to run on each deploy.
func (d *DB) Migrate(ctx context.Context) error {
	data, err := migrations.ReadFile("migrations/" + d.dialect.Name + ".sql")
	if err != nil {
		return fmt.Errorf("reading %s schema: %w", d.dialect.Name, err)
	}

	stmts := splitStatements(string(data))
	return d.Session(ctx, func(q Querier) error {
		for _, stmt := range stmts {
			if _, err := q.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("applying schema: %w", err)
			}
		}
		return nil
	})
}

// splitStatements drops comment lines and splits a script on semicolons.
func splitStatements(script string) []string {
	var b strings.Builder
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	var stmts []string
	for _, stmt := range strings.Split(b.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
