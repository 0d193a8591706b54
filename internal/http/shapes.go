package http

import (
	"time"

	"tasktracker/internal/domain"
)

type taskOperation string

const (
	opList          taskOperation = "list"
	opRetrieve      taskOperation = "retrieve"
	opCreate        taskOperation = "create"
	opUpdate        taskOperation = "update"
	opPartialUpdate taskOperation = "partial_update"
	opMarkCompleted taskOperation = "mark_completed"
	opByStatus      taskOperation = "by_status"
	opByPriority    taskOperation = "by_priority"
)

// taskShapes decides the response body of every task operation.
var taskShapes = map[taskOperation]func(domain.Task) any{
	opList:          func(t domain.Task) any { return taskSummary(t) },
	opRetrieve:      func(t domain.Task) any { return taskDetail(t) },
	opCreate:        func(t domain.Task) any { return taskDetail(t) },
	opMarkCompleted: func(t domain.Task) any { return taskDetail(t) },
	opByStatus:      func(t domain.Task) any { return taskDetail(t) },
	opByPriority:    func(t domain.Task) any { return taskDetail(t) },
	opUpdate:        func(t domain.Task) any { return taskUpdate(t) },
	opPartialUpdate: func(t domain.Task) any { return taskUpdate(t) },
}

func renderTask(op taskOperation, task domain.Task) any {
	return taskShapes[op](task)
}

func renderTasks(op taskOperation, tasks []domain.Task) []any {
	shape := taskShapes[op]
	out := make([]any, len(tasks))
	for i := range tasks {
		out[i] = shape(tasks[i])
	}
	return out
}

type UserResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type UserDetailResponse struct {
	UserResponse
	Tasks []TaskSummaryResponse `json:"tasks"`
}

type TaskSummaryResponse struct {
	ID        int64               `json:"id"`
	Title     string              `json:"title"`
	Status    domain.TaskStatus   `json:"status"`
	Priority  domain.TaskPriority `json:"priority"`
	DueDate   *string             `json:"due_date"`
	CreatedAt string              `json:"created_at"`
}

type TaskDetailResponse struct {
	ID          int64               `json:"id"`
	User        *UserResponse       `json:"user"`
	Title       string              `json:"title"`
	Description *string             `json:"description"`
	Status      domain.TaskStatus   `json:"status"`
	Priority    domain.TaskPriority `json:"priority"`
	DueDate     *string             `json:"due_date"`
	CreatedAt   string              `json:"created_at"`
	UpdatedAt   string              `json:"updated_at"`
}

type TaskUpdateResponse struct {
	ID          int64               `json:"id"`
	Title       string              `json:"title"`
	Description *string             `json:"description"`
	Status      domain.TaskStatus   `json:"status"`
	Priority    domain.TaskPriority `json:"priority"`
	DueDate     *string             `json:"due_date"`
	UpdatedAt   string              `json:"updated_at"`
}

func userToResponse(user domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
}

func userDetail(user domain.User, tasks []domain.Task) UserDetailResponse {
	resp := UserDetailResponse{
		UserResponse: userToResponse(user),
		Tasks:        make([]TaskSummaryResponse, len(tasks)),
	}
	for i := range tasks {
		resp.Tasks[i] = taskSummary(tasks[i])
	}
	return resp
}

func taskSummary(task domain.Task) TaskSummaryResponse {
	return TaskSummaryResponse{
		ID:        task.ID,
		Title:     task.Title,
		Status:    task.Status,
		Priority:  task.Priority,
		DueDate:   formatOptionalTime(task.DueDate),
		CreatedAt: formatTime(task.CreatedAt),
	}
}

func taskDetail(task domain.Task) TaskDetailResponse {
	resp := TaskDetailResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		DueDate:     formatOptionalTime(task.DueDate),
		CreatedAt:   formatTime(task.CreatedAt),
		UpdatedAt:   formatTime(task.UpdatedAt),
	}
	if task.Owner != nil {
		owner := userToResponse(*task.Owner)
		resp.User = &owner
	}
	return resp
}

func taskUpdate(task domain.Task) TaskUpdateResponse {
	return TaskUpdateResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		DueDate:     formatOptionalTime(task.DueDate),
		UpdatedAt:   formatTime(task.UpdatedAt),
	}
}

// formatTime keeps sub-second precision so successive updates stay ordered.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := formatTime(*t)
	return &v
}
