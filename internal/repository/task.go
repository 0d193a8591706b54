package repository

import (
	"context"

	"tasktracker/internal/domain"
)

// TaskFilter narrows a task listing. OwnerID is mandatory; empty Status or
// Priority means no constraint on that column.
type TaskFilter struct {
	OwnerID  int64
	Status   string
	Priority string
}

// TaskRepository exposes persistence operations for Task aggregates. Every
// lookup is keyed by owner so rows of other users are never visible.
type TaskRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, task *domain.Task) (int64, error)
	Update(ctx context.Context, task *domain.Task) error
	UpdateStatus(ctx context.Context, ownerID, id int64, status domain.TaskStatus) (*domain.Task, error)
	Delete(ctx context.Context, ownerID, id int64) error
	Get(ctx context.Context, ownerID, id int64) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
}
