package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/tasktrack/tasktrack-go/internal/database"
	"github.com/tasktrack/tasktrack-go/internal/database/databasetest"
	"github.com/tasktrack/tasktrack-go/internal/model"
)

type fixture struct {
	db    *database.DB
	users *Repository[model.User]
	tasks *Repository[model.Task]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := databasetest.Open(t)
	return &fixture{
		db:    db,
		users: NewUserRepository(db.Dialect()),
		tasks: NewTaskRepository(db.Dialect()),
	}
}

// run executes fn in a session and fails the test on error.
func (f *fixture) run(t *testing.T, fn func(ctx context.Context, q database.Querier) error) {
	t.Helper()
	ctx := context.Background()
	if err := f.db.Session(ctx, func(q database.Querier) error { return fn(ctx, q) }); err != nil {
		t.Fatalf("Session() unexpected error: %v", err)
	}
}

func (f *fixture) user(t *testing.T, email string) *model.User {
	t.Helper()
	var u *model.User
	f.run(t, func(ctx context.Context, q database.Querier) (err error) {
		u, err = f.users.Create(ctx, q, &model.User{Email: email, HashedPassword: "h"})
		return err
	})
	return u
}

func (f *fixture) task(t *testing.T, owner int64, title string) *model.Task {
	t.Helper()
	var task *model.Task
	f.run(t, func(ctx context.Context, q database.Querier) (err error) {
		task, err = f.tasks.Create(ctx, q, &model.Task{Title: title, OwnerID: owner})
		return err
	})
	return task
}

func strPtr(s string) *string { return &s }

func TestCreateReturnsStoredEntity(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")

	var got *model.Task
	f.run(t, func(ctx context.Context, q database.Querier) (err error) {
		got, err = f.tasks.Create(ctx, q, &model.Task{Title: "x", Description: strPtr("y"), OwnerID: u.ID})
		return err
	})

	if got.ID == 0 {
		t.Error("Create() did not assign an id")
	}
	if got.Title != "x" || got.Description == nil || *got.Description != "y" {
		t.Errorf("Create() = %+v, want title x and description y", got)
	}
	if got.IsCompleted {
		t.Error("Create() is_completed = true, want false")
	}
	if got.OwnerID != u.ID {
		t.Errorf("Create() owner = %d, want %d", got.OwnerID, u.ID)
	}
}

func TestGetOneAbsentIsNotAnError(t *testing.T) {
	f := newFixture(t)

	f.run(t, func(ctx context.Context, q database.Querier) error {
		got, err := f.tasks.GetOne(ctx, q, Filter{"id": int64(999)})
		if err != nil {
			return err
		}
		if got != nil {
			t.Errorf("GetOne() = %+v, want nil", got)
		}
		return nil
	})
}

func TestGetOneMatchesAllPredicates(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice@example.com")
	bob := f.user(t, "bob@example.com")
	task := f.task(t, bob.ID, "bob's")

	f.run(t, func(ctx context.Context, q database.Querier) error {
		got, err := f.tasks.GetOne(ctx, q, Filter{"id": task.ID, "owner_id": alice.ID})
		if err != nil {
			return err
		}
		if got != nil {
			t.Errorf("GetOne() with foreign owner = %+v, want nil", got)
		}

		got, err = f.tasks.GetOne(ctx, q, Filter{"id": task.ID, "owner_id": bob.ID})
		if err != nil {
			return err
		}
		if got == nil || got.ID != task.ID {
			t.Errorf("GetOne() = %+v, want task %d", got, task.ID)
		}
		return nil
	})
}

func TestGetOneNilMatchesNull(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")
	withoutDesc := f.task(t, u.ID, "no description")

	f.run(t, func(ctx context.Context, q database.Querier) error {
		if _, err := f.tasks.Create(ctx, q, &model.Task{Title: "described", Description: strPtr("d"), OwnerID: u.ID}); err != nil {
			return err
		}
		got, err := f.tasks.GetOne(ctx, q, Filter{"description": nil})
		if err != nil {
			return err
		}
		if got == nil || got.ID != withoutDesc.ID {
			t.Errorf("GetOne(description IS NULL) = %+v, want task %d", got, withoutDesc.ID)
		}
		return nil
	})
}

func TestGetAll(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice@example.com")
	bob := f.user(t, "bob@example.com")
	first := f.task(t, alice.ID, "one")
	f.task(t, bob.ID, "other")
	second := f.task(t, alice.ID, "two")

	f.run(t, func(ctx context.Context, q database.Querier) error {
		got, err := f.tasks.GetAll(ctx, q, Filter{"owner_id": alice.ID})
		if err != nil {
			return err
		}
		if len(got) != 2 || got[0].ID != first.ID || got[1].ID != second.ID {
			t.Errorf("GetAll() = %+v, want tasks %d and %d in order", got, first.ID, second.ID)
		}

		none, err := f.tasks.GetAll(ctx, q, Filter{"owner_id": int64(12345)})
		if err != nil {
			return err
		}
		if none == nil || len(none) != 0 {
			t.Errorf("GetAll() with no match = %#v, want empty non-nil slice", none)
		}

		all, err := f.tasks.GetAll(ctx, q, nil)
		if err != nil {
			return err
		}
		if len(all) != 3 {
			t.Errorf("GetAll(nil) returned %d tasks, want 3", len(all))
		}
		return nil
	})
}

func TestUpdatePartial(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")

	var task *model.Task
	f.run(t, func(ctx context.Context, q database.Querier) (err error) {
		task, err = f.tasks.Create(ctx, q, &model.Task{Title: "x", Description: strPtr("y"), OwnerID: u.ID})
		return err
	})

	f.run(t, func(ctx context.Context, q database.Querier) error {
		got, err := f.tasks.Update(ctx, q, Filter{"id": task.ID, "owner_id": u.ID}, Changes{"is_completed": true})
		if err != nil {
			return err
		}
		if got == nil {
			t.Fatal("Update() = nil, want updated task")
		}
		if !got.IsCompleted {
			t.Error("Update() is_completed = false, want true")
		}
		if got.Title != "x" || got.Description == nil || *got.Description != "y" {
			t.Errorf("Update() changed untouched fields: %+v", got)
		}
		return nil
	})
}

func TestUpdateNoMatch(t *testing.T) {
	f := newFixture(t)

	f.run(t, func(ctx context.Context, q database.Querier) error {
		got, err := f.tasks.Update(ctx, q, Filter{"id": int64(1)}, Changes{"title": "new"})
		if err != nil {
			return err
		}
		if got != nil {
			t.Errorf("Update() = %+v, want nil", got)
		}
		return nil
	})
}

func TestUpdateRejectsKeyAndUnknownColumns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.db.Session(ctx, func(q database.Querier) error {
		_, err := f.tasks.Update(ctx, q, Filter{"id": int64(1)}, Changes{"id": int64(2)})
		return err
	})
	if !errors.Is(err, ErrImmutableField) {
		t.Errorf("Update(id) error = %v, want %v", err, ErrImmutableField)
	}

	err = f.db.Session(ctx, func(q database.Querier) error {
		_, err := f.tasks.Update(ctx, q, Filter{"id": int64(1)}, Changes{"owner; DROP TABLE tasks": 1})
		return err
	})
	if !errors.Is(err, ErrUnknownField) {
		t.Errorf("Update(unknown) error = %v, want %v", err, ErrUnknownField)
	}

	err = f.db.Session(ctx, func(q database.Querier) error {
		_, err := f.tasks.GetOne(ctx, q, Filter{"nope": 1})
		return err
	})
	if !errors.Is(err, ErrUnknownField) {
		t.Errorf("GetOne(unknown) error = %v, want %v", err, ErrUnknownField)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")
	task := f.task(t, u.ID, "doomed")

	f.run(t, func(ctx context.Context, q database.Querier) error {
		got, err := f.tasks.Delete(ctx, q, Filter{"id": task.ID})
		if err != nil {
			return err
		}
		if got == nil || got.ID != task.ID || got.Title != "doomed" {
			t.Errorf("Delete() = %+v, want last state of task %d", got, task.ID)
		}

		again, err := f.tasks.Delete(ctx, q, Filter{"id": task.ID})
		if err != nil {
			return err
		}
		if again != nil {
			t.Errorf("second Delete() = %+v, want nil", again)
		}
		return nil
	})
}

func TestDeleteAll(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice@example.com")
	bob := f.user(t, "bob@example.com")
	f.task(t, alice.ID, "a1")
	f.task(t, alice.ID, "a2")
	f.task(t, bob.ID, "b1")

	f.run(t, func(ctx context.Context, q database.Querier) error {
		n, err := f.tasks.DeleteAll(ctx, q, Filter{"owner_id": alice.ID})
		if err != nil {
			return err
		}
		if n != 2 {
			t.Errorf("DeleteAll() = %d, want 2", n)
		}

		left, err := f.tasks.GetAll(ctx, q, nil)
		if err != nil {
			return err
		}
		if len(left) != 1 || left[0].OwnerID != bob.ID {
			t.Errorf("remaining tasks = %+v, want only bob's", left)
		}

		if _, err := f.tasks.DeleteAll(ctx, q, Filter{}); !errors.Is(err, ErrEmptyFilter) {
			t.Errorf("DeleteAll(empty) error = %v, want %v", err, ErrEmptyFilter)
		}
		return nil
	})
}

func TestForeignKeyCascade(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")
	f.task(t, u.ID, "t1")

	f.run(t, func(ctx context.Context, q database.Querier) error {
		if _, err := f.users.Delete(ctx, q, Filter{"id": u.ID}); err != nil {
			return err
		}
		left, err := f.tasks.GetAll(ctx, q, Filter{"owner_id": u.ID})
		if err != nil {
			return err
		}
		if len(left) != 0 {
			t.Errorf("tasks after owner delete = %d, want 0", len(left))
		}
		return nil
	})
}

func TestWherePostgresPlaceholders(t *testing.T) {
	r := New(TaskSchema, database.Postgres)

	where, args, err := r.where(Filter{"owner_id": int64(2), "id": int64(1), "description": nil}, 1)
	if err != nil {
		t.Fatalf("where() unexpected error: %v", err)
	}

	want := " WHERE description IS NULL AND id = $1 AND owner_id = $2"
	if where != want {
		t.Errorf("where() = %q, want %q", where, want)
	}
	if len(args) != 2 || args[0] != int64(1) || args[1] != int64(2) {
		t.Errorf("where() args = %v, want [1 2]", args)
	}
}
