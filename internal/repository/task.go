package repository

import (
	"github.com/tasktrack/tasktrack-go/internal/database"
	"github.com/tasktrack/tasktrack-go/internal/model"
)

// TaskSchema maps model.Task onto the tasks table.
var TaskSchema = Schema[model.Task]{
	Table:   "tasks",
	Key:     "id",
	Columns: []string{"title", "description", "is_completed", "owner_id"},
	Values: func(t *model.Task) []any {
		return []any{t.Title, nullable(t.Description), t.IsCompleted, t.OwnerID}
	},
	Targets: func(t *model.Task) []any {
		return []any{&t.ID, &t.Title, &t.Description, &t.IsCompleted, &t.OwnerID}
	},
}

// NewTaskRepository creates the tasks repository for the given dialect.
func NewTaskRepository(d database.Dialect) *Repository[model.Task] {
	return New(TaskSchema, d)
}

// nullable turns a nil *string into an untyped nil so every driver binds NULL.
func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
