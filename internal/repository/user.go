package repository

import (
	"github.com/tasktrack/tasktrack-go/internal/database"
	"github.com/tasktrack/tasktrack-go/internal/model"
)

// UserSchema maps model.User onto the users table.
var UserSchema = Schema[model.User]{
	Table:   "users",
	Key:     "id",
	Columns: []string{"email", "hashed_password"},
	Values: func(u *model.User) []any {
		return []any{u.Email, u.HashedPassword}
	},
	Targets: func(u *model.User) []any {
		return []any{&u.ID, &u.Email, &u.HashedPassword}
	},
}

// NewUserRepository creates the users repository for the given dialect.
func NewUserRepository(d database.Dialect) *Repository[model.User] {
	return New(UserSchema, d)
}
