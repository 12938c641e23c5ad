package model

// Task is a to-do item owned by exactly one user.
type Task struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	IsCompleted bool    `json:"is_completed"`
	OwnerID     int64   `json:"owner_id"`
}

// CreateTaskRequest is the body of POST /tasks. The owner is always the
// authenticated caller.
type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

// UpdateTaskRequest is the body of PUT /tasks/{id}. Nil fields are left unchanged.
type UpdateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	IsCompleted *bool   `json:"is_completed"`
}
