package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/tasktrack/tasktrack-go/internal/database"
	"github.com/tasktrack/tasktrack-go/internal/model"
	"github.com/tasktrack/tasktrack-go/internal/repository"
)

var (
	ErrTitleRequired      = errors.New("title is required")
	ErrTaskNotFound       = errors.New("task not found")
	ErrTaskCreationFailed = errors.New("task could not be created")
	ErrTaskUpdateFailed   = fmt.Errorf("task could not be updated: %w", ErrTaskNotFound)
	ErrTaskDeleteFailed   = fmt.Errorf("task could not be deleted: %w", ErrTaskNotFound)
)

// TaskService handles task business logic. Every lookup is scoped to the
// owner, so tasks of other users behave as if they did not exist.
type TaskService struct {
	db    *database.DB
	users *repository.Repository[model.User]
	tasks *repository.Repository[model.Task]
}

// NewTaskService creates a new TaskService.
func NewTaskService(db *database.DB) *TaskService {
	return &TaskService{
		db:    db,
		users: repository.NewUserRepository(db.Dialect()),
		tasks: repository.NewTaskRepository(db.Dialect()),
	}
}

// CreateTask stores a new task owned by ownerID. An owner that no longer
// exists gets ErrTaskCreationFailed.
func (s *TaskService) CreateTask(ctx context.Context, req model.CreateTaskRequest, ownerID int64) (model.Task, error) {
	if req.Title == "" {
		return model.Task{}, ErrTitleRequired
	}

	var task *model.Task
	err := s.db.Session(ctx, func(q database.Querier) error {
		owner, err := s.users.GetOne(ctx, q, repository.Filter{"id": ownerID})
		if err != nil {
			return err
		}
		if owner == nil {
			return ErrTaskCreationFailed
		}

		task, err = s.tasks.Create(ctx, q, &model.Task{
			Title:       req.Title,
			Description: req.Description,
			OwnerID:     ownerID,
		})
		return err
	})
	if err != nil {
		return model.Task{}, err
	}
	if task == nil {
		return model.Task{}, ErrTaskCreationFailed
	}
	return *task, nil
}

// GetTask returns the task with taskID if ownerID owns it.
func (s *TaskService) GetTask(ctx context.Context, taskID, ownerID int64) (model.Task, error) {
	var task *model.Task
	err := s.db.Session(ctx, func(q database.Querier) (err error) {
		task, err = s.tasks.GetOne(ctx, q, owned(taskID, ownerID))
		return err
	})
	if err != nil {
		return model.Task{}, err
	}
	if task == nil {
		return model.Task{}, ErrTaskNotFound
	}
	return *task, nil
}

// ListTasks returns every task owned by ownerID. An owner without tasks
// gets ErrTaskNotFound rather than an empty list.
func (s *TaskService) ListTasks(ctx context.Context, ownerID int64) ([]model.Task, error) {
	var tasks []model.Task
	err := s.db.Session(ctx, func(q database.Querier) (err error) {
		tasks, err = s.tasks.GetAll(ctx, q, repository.Filter{"owner_id": ownerID})
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, ErrTaskNotFound
	}
	return tasks, nil
}

// UpdateTask applies the fields present in req to the owner's task.
func (s *TaskService) UpdateTask(ctx context.Context, taskID int64, req model.UpdateTaskRequest, ownerID int64) (model.Task, error) {
	changes := repository.Changes{}
	if req.Title != nil {
		if *req.Title == "" {
			return model.Task{}, ErrTitleRequired
		}
		changes["title"] = *req.Title
	}
	if req.Description != nil {
		changes["description"] = *req.Description
	}
	if req.IsCompleted != nil {
		changes["is_completed"] = *req.IsCompleted
	}

	var task *model.Task
	err := s.db.Session(ctx, func(q database.Querier) (err error) {
		task, err = s.tasks.Update(ctx, q, owned(taskID, ownerID), changes)
		return err
	})
	if err != nil {
		return model.Task{}, err
	}
	if task == nil {
		return model.Task{}, ErrTaskUpdateFailed
	}
	return *task, nil
}

// DeleteTask removes the owner's task and returns its last state.
func (s *TaskService) DeleteTask(ctx context.Context, taskID, ownerID int64) (model.Task, error) {
	var task *model.Task
	err := s.db.Session(ctx, func(q database.Querier) (err error) {
		task, err = s.tasks.Delete(ctx, q, owned(taskID, ownerID))
		return err
	})
	if err != nil {
		return model.Task{}, err
	}
	if task == nil {
		return model.Task{}, ErrTaskDeleteFailed
	}
	return *task, nil
}

func owned(taskID, ownerID int64) repository.Filter {
	return repository.Filter{"id": taskID, "owner_id": ownerID}
}
