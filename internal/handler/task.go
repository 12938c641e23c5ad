package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/tasktrack/tasktrack-go/internal/cache"
	"github.com/tasktrack/tasktrack-go/internal/middleware"
	"github.com/tasktrack/tasktrack-go/internal/model"
	"github.com/tasktrack/tasktrack-go/internal/service"
)

// TaskHandler handles HTTP requests for the caller's tasks.
type TaskHandler struct {
	service *service.TaskService
	loader  *cache.Loader
	log     *zap.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(svc *service.TaskService, loader *cache.Loader, log *zap.Logger) *TaskHandler {
	return &TaskHandler{service: svc, loader: loader, log: log}
}

func listKey(ownerID int64) string {
	return "tasks:" + strconv.FormatInt(ownerID, 10) + ":all"
}

func itemKey(ownerID, taskID int64) string {
	return "tasks:" + strconv.FormatInt(ownerID, 10) + ":" + strconv.FormatInt(taskID, 10)
}

// HandleCreateTask handles POST /tasks requests.
func (h *TaskHandler) HandleCreateTask(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req model.CreateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.service.CreateTask(r.Context(), req, ownerID)
	if err != nil {
		if !errors.Is(err, service.ErrTitleRequired) && !errors.Is(err, service.ErrTaskCreationFailed) {
			h.log.Warn("create task failed", zap.Int64("owner_id", ownerID), zap.Error(err))
			err = service.ErrTaskCreationFailed
		}
		writeJSON(w, http.StatusBadRequest, detail(err.Error()))
		return
	}

	h.invalidate(r.Context(), ownerID, task.ID)
	writeJSON(w, http.StatusOK, task)
}

// HandleListTasks handles GET /tasks requests.
func (h *TaskHandler) HandleListTasks(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	tasks, err := cache.Load(r.Context(), h.loader, listKey(ownerID), func(ctx context.Context) ([]model.Task, error) {
		return h.service.ListTasks(ctx, ownerID)
	})
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			writeJSON(w, http.StatusBadRequest, detail(err.Error()))
			return
		}
		h.internalError(w, "list tasks", err)
		return
	}

	writeJSON(w, http.StatusOK, tasks)
}

// HandleGetTask handles GET /tasks/{id} requests.
func (h *TaskHandler) HandleGetTask(w http.ResponseWriter, r *http.Request) {
	ownerID, taskID, ok := h.ownerAndTask(w, r)
	if !ok {
		return
	}

	task, err := cache.Load(r.Context(), h.loader, itemKey(ownerID, taskID), func(ctx context.Context) (model.Task, error) {
		return h.service.GetTask(ctx, taskID, ownerID)
	})
	if err != nil {
		h.taskError(w, "get task", err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// HandleUpdateTask handles PUT /tasks/{id} requests.
func (h *TaskHandler) HandleUpdateTask(w http.ResponseWriter, r *http.Request) {
	ownerID, taskID, ok := h.ownerAndTask(w, r)
	if !ok {
		return
	}

	var req model.UpdateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.service.UpdateTask(r.Context(), taskID, req, ownerID)
	if err != nil {
		h.taskError(w, "update task", err)
		return
	}

	h.invalidate(r.Context(), ownerID, taskID)
	writeJSON(w, http.StatusOK, task)
}

// HandleDeleteTask handles DELETE /tasks/{id} requests.
func (h *TaskHandler) HandleDeleteTask(w http.ResponseWriter, r *http.Request) {
	ownerID, taskID, ok := h.ownerAndTask(w, r)
	if !ok {
		return
	}

	if _, err := h.service.DeleteTask(r.Context(), taskID, ownerID); err != nil {
		h.taskError(w, "delete task", err)
		return
	}

	h.invalidate(r.Context(), ownerID, taskID)
	writeJSON(w, http.StatusOK, detail("Task deleted successfully"))
}

func (h *TaskHandler) owner(w http.ResponseWriter, r *http.Request) (int64, bool) {
	ownerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, detail("Not authenticated"))
	}
	return ownerID, ok
}

func (h *TaskHandler) ownerAndTask(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return 0, 0, false
	}

	taskID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, detail("invalid task id"))
		return 0, 0, false
	}
	return ownerID, taskID, true
}

// taskError maps errors of single-task operations to responses.
func (h *TaskHandler) taskError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		writeJSON(w, http.StatusNotFound, detail(err.Error()))
	case errors.Is(err, service.ErrTitleRequired):
		writeJSON(w, http.StatusBadRequest, detail(err.Error()))
	default:
		h.internalError(w, op, err)
	}
}

func (h *TaskHandler) invalidate(ctx context.Context, ownerID, taskID int64) {
	h.loader.Invalidate(ctx, listKey(ownerID), itemKey(ownerID, taskID))
}

func (h *TaskHandler) internalError(w http.ResponseWriter, op string, err error) {
	h.log.Error(op+" failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, detail("internal server error"))
}
