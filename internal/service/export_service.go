package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"tasktracker/internal/domain"
	"tasktracker/internal/repository"
	"tasktracker/internal/storage"
)

// ExportOptions locates where export documents are written.
type ExportOptions struct {
	Bucket        string
	KeyPrefix     string
	PresignExpiry time.Duration
}

// Export describes a stored export document.
type Export struct {
	Key      string
	Location string
	URL      string
	Count    int
}

// ExportService snapshots a user's tasks into object storage.
type ExportService interface {
	Export(ctx context.Context, ownerID int64) (*Export, error)
	ListExports(ctx context.Context, ownerID int64) ([]storage.ObjectInfo, error)
	PurgeExports(ctx context.Context, ownerID int64) error
}

type exportService struct {
	tasks   repository.TaskRepository
	storage storage.Service
	opts    ExportOptions
	now     func() time.Time
}

// NewExportService returns a service that reports ErrStorageNotConfigured
// from every call when store is nil or no bucket is set.
func NewExportService(tasks repository.TaskRepository, store storage.Service, opts ExportOptions) ExportService {
	if opts.PresignExpiry <= 0 {
		opts.PresignExpiry = 15 * time.Minute
	}
	opts.KeyPrefix = strings.Trim(opts.KeyPrefix, "/")
	return &exportService{
		tasks:   tasks,
		storage: store,
		opts:    opts,
		now:     time.Now,
	}
}

type exportDocument struct {
	UserID     int64          `json:"user_id"`
	ExportedAt time.Time      `json:"exported_at"`
	Tasks      []exportRecord `json:"tasks"`
}

type exportRecord struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (s *exportService) Export(ctx context.Context, ownerID int64) (*Export, error) {
	if !s.configured() {
		return nil, ErrStorageNotConfigured
	}

	tasks, err := s.tasks.List(ctx, repository.TaskFilter{OwnerID: ownerID})
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	doc := exportDocument{
		UserID:     ownerID,
		ExportedAt: now,
		Tasks:      make([]exportRecord, len(tasks)),
	}
	for i := range tasks {
		doc.Tasks[i] = toExportRecord(tasks[i])
	}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}

	key := path.Join(s.userPrefix(ownerID), fmt.Sprintf("%s-%s.json", now.Format("20060102T150405Z"), uuid.NewString()))
	location, err := s.storage.PutObject(ctx, s.opts.Bucket, key, bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	url, err := s.storage.GetObjectURL(ctx, s.opts.Bucket, key, s.opts.PresignExpiry)
	if err != nil {
		return nil, err
	}

	return &Export{Key: key, Location: location, URL: url, Count: len(tasks)}, nil
}

func (s *exportService) ListExports(ctx context.Context, ownerID int64) ([]storage.ObjectInfo, error) {
	if !s.configured() {
		return nil, ErrStorageNotConfigured
	}
	return s.storage.ListObjects(ctx, s.opts.Bucket, s.userPrefix(ownerID)+"/")
}

func (s *exportService) PurgeExports(ctx context.Context, ownerID int64) error {
	if !s.configured() {
		return ErrStorageNotConfigured
	}
	return s.storage.DeletePrefix(ctx, s.opts.Bucket, s.userPrefix(ownerID)+"/")
}

func (s *exportService) configured() bool {
	return s.storage != nil && s.opts.Bucket != ""
}

func (s *exportService) userPrefix(ownerID int64) string {
	return path.Join(s.opts.KeyPrefix, fmt.Sprintf("user-%d", ownerID))
}

func toExportRecord(task domain.Task) exportRecord {
	return exportRecord{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      string(task.Status),
		Priority:    string(task.Priority),
		DueDate:     task.DueDate,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}
