package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"tasktracker/internal/domain"
	"tasktracker/internal/repository"
)

// TaskInput is a full set of writable task fields, used by create and replace.
type TaskInput struct {
	Title       string
	Description *string
	Status      domain.TaskStatus
	Priority    domain.TaskPriority
	DueDate     *time.Time
}

// TaskPatch lists the fields a partial update touches. Nil pointers leave a
// field alone; the Clear flags null out the optional fields.
type TaskPatch struct {
	Title            *string
	Description      *string
	ClearDescription bool
	Status           *domain.TaskStatus
	Priority         *domain.TaskPriority
	DueDate          *time.Time
	ClearDueDate     bool
}

// TaskService coordinates task level operations. Every method takes the id of
// the requesting user and only ever touches that user's tasks.
type TaskService interface {
	CreateTask(ctx context.Context, ownerID int64, in TaskInput) (*domain.Task, error)
	GetTask(ctx context.Context, ownerID, id int64) (*domain.Task, error)
	ListTasks(ctx context.Context, ownerID int64) ([]domain.Task, error)
	FilterByStatus(ctx context.Context, ownerID int64, status string) ([]domain.Task, error)
	FilterByPriority(ctx context.Context, ownerID int64, priority string) ([]domain.Task, error)
	ReplaceTask(ctx context.Context, ownerID, id int64, in TaskInput) (*domain.Task, error)
	UpdateTask(ctx context.Context, ownerID, id int64, patch TaskPatch) (*domain.Task, error)
	MarkCompleted(ctx context.Context, ownerID, id int64) (*domain.Task, error)
	DeleteTask(ctx context.Context, ownerID, id int64) error
}

type taskService struct {
	tasks repository.TaskRepository
	users repository.UserRepository
}

func NewTaskService(tasks repository.TaskRepository, users repository.UserRepository) TaskService {
	return &taskService{
		tasks: tasks,
		users: users,
	}
}

func (s *taskService) CreateTask(ctx context.Context, ownerID int64, in TaskInput) (*domain.Task, error) {
	task := &domain.Task{
		UserID:      ownerID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
	}
	task.ApplyDefaults()
	if err := validateTask(task); err != nil {
		return nil, err
	}

	if _, err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	return s.withOwner(ctx, ownerID, task)
}

func (s *taskService) GetTask(ctx context.Context, ownerID, id int64) (*domain.Task, error) {
	task, err := s.tasks.Get(ctx, ownerID, id)
	if err != nil {
		return nil, translate(err)
	}
	return s.withOwner(ctx, ownerID, task)
}

func (s *taskService) ListTasks(ctx context.Context, ownerID int64) ([]domain.Task, error) {
	return s.list(ctx, repository.TaskFilter{OwnerID: ownerID})
}

// FilterByStatus matches status exactly. Unknown values are not rejected and
// simply match nothing.
func (s *taskService) FilterByStatus(ctx context.Context, ownerID int64, status string) ([]domain.Task, error) {
	if status == "" {
		return nil, fieldError("status", "status parameter required")
	}
	return s.list(ctx, repository.TaskFilter{OwnerID: ownerID, Status: status})
}

func (s *taskService) FilterByPriority(ctx context.Context, ownerID int64, priority string) ([]domain.Task, error) {
	if priority == "" {
		return nil, fieldError("priority", "priority parameter required")
	}
	return s.list(ctx, repository.TaskFilter{OwnerID: ownerID, Priority: priority})
}

func (s *taskService) ReplaceTask(ctx context.Context, ownerID, id int64, in TaskInput) (*domain.Task, error) {
	task, err := s.tasks.Get(ctx, ownerID, id)
	if err != nil {
		return nil, translate(err)
	}

	task.Title = strings.TrimSpace(in.Title)
	task.Description = in.Description
	task.Status = in.Status
	task.Priority = in.Priority
	task.DueDate = in.DueDate
	task.ApplyDefaults()
	if err := validateTask(task); err != nil {
		return nil, err
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, translate(err)
	}
	return s.withOwner(ctx, ownerID, task)
}

func (s *taskService) UpdateTask(ctx context.Context, ownerID, id int64, patch TaskPatch) (*domain.Task, error) {
	task, err := s.tasks.Get(ctx, ownerID, id)
	if err != nil {
		return nil, translate(err)
	}

	if patch.Title != nil {
		task.Title = strings.TrimSpace(*patch.Title)
	}
	switch {
	case patch.ClearDescription:
		task.Description = nil
	case patch.Description != nil:
		task.Description = patch.Description
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	switch {
	case patch.ClearDueDate:
		task.DueDate = nil
	case patch.DueDate != nil:
		task.DueDate = patch.DueDate
	}
	if err := validateTask(task); err != nil {
		return nil, err
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, translate(err)
	}
	return s.withOwner(ctx, ownerID, task)
}

// MarkCompleted sets the status to completed whatever it was before.
func (s *taskService) MarkCompleted(ctx context.Context, ownerID, id int64) (*domain.Task, error) {
	task, err := s.tasks.UpdateStatus(ctx, ownerID, id, domain.TaskStatusCompleted)
	if err != nil {
		return nil, translate(err)
	}
	return s.withOwner(ctx, ownerID, task)
}

func (s *taskService) DeleteTask(ctx context.Context, ownerID, id int64) error {
	return translate(s.tasks.Delete(ctx, ownerID, id))
}

func (s *taskService) list(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	tasks, err := s.tasks.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return tasks, nil
	}

	owner, err := s.owner(ctx, filter.OwnerID)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i].Owner = owner
	}
	return tasks, nil
}

func (s *taskService) withOwner(ctx context.Context, ownerID int64, task *domain.Task) (*domain.Task, error) {
	owner, err := s.owner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	task.Owner = owner
	return task, nil
}

func (s *taskService) owner(ctx context.Context, ownerID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load task owner: %w", err)
	}
	return sanitizeUser(user), nil
}

func validateTask(task *domain.Task) error {
	verr := &ValidationError{}
	switch {
	case task.Title == "":
		verr.Add("title", "this field may not be blank")
	case utf8.RuneCountInString(task.Title) > domain.TitleMaxLength:
		verr.Add("title", fmt.Sprintf("ensure this field has no more than %d characters", domain.TitleMaxLength))
	}
	if !task.Status.Valid() {
		verr.Add("status", fmt.Sprintf("%q is not a valid choice", task.Status))
	}
	if !task.Priority.Valid() {
		verr.Add("priority", fmt.Sprintf("%q is not a valid choice", task.Priority))
	}
	return verr.errOrNil()
}

func translate(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
