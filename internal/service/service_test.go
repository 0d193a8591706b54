package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tasktracker/internal/auth"
	"tasktracker/internal/domain"
	"tasktracker/internal/repository"
	"tasktracker/internal/repository/sqlite"
	"tasktracker/internal/storage"
)

type fixture struct {
	users   UserService
	auth    AuthService
	tasks   TaskService
	taskDB  repository.TaskRepository
	tokenDB repository.TokenRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "service.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	userRepo := sqlite.NewUserRepository(db)
	taskRepo := sqlite.NewTaskRepository(db)
	tokenRepo := sqlite.NewTokenRepository(db)
	for _, init := range []func(context.Context) error{userRepo.Init, taskRepo.Init, tokenRepo.Init} {
		if err := init(ctx); err != nil {
			t.Fatalf("init: %v", err)
		}
	}

	users := NewUserService(userRepo, bcrypt.MinCost)
	return fixture{
		users:   users,
		auth:    NewAuthService(users, tokenRepo, auth.NewIssuer("test-secret", time.Minute, time.Hour)),
		tasks:   NewTaskService(taskRepo, userRepo),
		taskDB:  taskRepo,
		tokenDB: tokenRepo,
	}
}

func (f fixture) register(t *testing.T, username string) *domain.User {
	t.Helper()
	user, err := f.users.Register(context.Background(), RegisterInput{Username: username, Password: "password123"})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return user
}

func fieldsOf(t *testing.T, err error) map[string][]string {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error %v is not a ValidationError", err)
	}
	return verr.Fields
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Register(ctx, RegisterInput{Username: "alice", Password: "short"})
	if fields := fieldsOf(t, err); len(fields["password"]) == 0 {
		t.Errorf("short password fields = %v", fields)
	}

	_, err = f.users.Register(ctx, RegisterInput{Username: "  ", Password: ""})
	fields := fieldsOf(t, err)
	if len(fields["username"]) == 0 || len(fields["password"]) == 0 {
		t.Errorf("blank input fields = %v", fields)
	}

	user, err := f.users.Register(ctx, RegisterInput{Username: " alice ", Email: "a@example.com", Password: "password123", FirstName: "Alice"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Username != "alice" || user.PasswordHash != "" || user.FirstName != "Alice" {
		t.Errorf("registered user = %+v", user)
	}

	_, err = f.users.Register(ctx, RegisterInput{Username: "alice", Password: "password456"})
	if fields := fieldsOf(t, err); len(fields["username"]) == 0 {
		t.Errorf("duplicate username fields = %v", fields)
	}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice")

	if _, err := f.users.Authenticate(ctx, "alice", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v", err)
	}
	if _, err := f.users.Authenticate(ctx, "nobody", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user error = %v", err)
	}
	user, err := f.users.Authenticate(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if user.PasswordHash != "" {
		t.Error("password hash leaked")
	}
}

func TestAuthRefreshAndLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, pair, err := f.auth.Register(ctx, RegisterInput{Username: "alice", Password: "password123"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	claims, err := f.auth.Authorize(ctx, pair.Access)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("claims user = %d, want %d", claims.UserID, user.ID)
	}
	if _, err := f.auth.Authorize(ctx, pair.Refresh); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("refresh token used as access: %v", err)
	}

	access, err := f.auth.Refresh(ctx, pair.Refresh)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, err := f.auth.Authorize(ctx, access); err != nil {
		t.Errorf("refreshed access rejected: %v", err)
	}
	if _, err := f.auth.Refresh(ctx, pair.Access); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("access token used as refresh: %v", err)
	}

	if err := f.auth.Logout(ctx, claims, pair.Refresh); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := f.auth.Authorize(ctx, pair.Access); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("revoked access accepted: %v", err)
	}
	if _, err := f.auth.Refresh(ctx, pair.Refresh); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("revoked refresh accepted: %v", err)
	}
	if _, err := f.auth.Authorize(ctx, access); err != nil {
		t.Errorf("unrelated access token revoked: %v", err)
	}
}

func TestLogoutRejectsForeignRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, alicePair, err := f.auth.Register(ctx, RegisterInput{Username: "alice", Password: "password123"})
	if err != nil {
		t.Fatalf("Register alice: %v", err)
	}
	_, bobPair, err := f.auth.Register(ctx, RegisterInput{Username: "bob", Password: "password123"})
	if err != nil {
		t.Fatalf("Register bob: %v", err)
	}

	claims, err := f.auth.Authorize(ctx, alicePair.Access)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	err = f.auth.Logout(ctx, claims, bobPair.Refresh)
	if fields := fieldsOf(t, err); len(fields["refresh"]) == 0 {
		t.Errorf("fields = %v", fields)
	}
	if _, err := f.auth.Refresh(ctx, bobPair.Refresh); err != nil {
		t.Errorf("bob's refresh token was revoked: %v", err)
	}
}

func TestCreateTaskDefaultsAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")

	task, err := f.tasks.CreateTask(ctx, alice.ID, TaskInput{Title: "T1"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.Status != domain.TaskStatusPending || task.Priority != domain.TaskPriorityMedium {
		t.Errorf("defaults = %q/%q", task.Status, task.Priority)
	}
	if task.UserID != alice.ID || task.Owner == nil || task.Owner.Username != "alice" {
		t.Errorf("owner = %d %+v", task.UserID, task.Owner)
	}

	_, err = f.tasks.CreateTask(ctx, alice.ID, TaskInput{Title: "  ", Status: "done", Priority: "urgent"})
	fields := fieldsOf(t, err)
	for _, name := range []string{"title", "status", "priority"} {
		if len(fields[name]) == 0 {
			t.Errorf("missing %s error in %v", name, fields)
		}
	}

	_, err = f.tasks.CreateTask(ctx, alice.ID, TaskInput{Title: strings.Repeat("x", domain.TitleMaxLength+1)})
	if fields := fieldsOf(t, err); len(fields["title"]) == 0 {
		t.Errorf("long title fields = %v", fields)
	}
}

func TestTaskOwnershipIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	task, err := f.tasks.CreateTask(ctx, alice.ID, TaskInput{Title: "T1"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	title := "mine now"
	checks := map[string]error{}
	_, checks["get"] = f.tasks.GetTask(ctx, bob.ID, task.ID)
	_, checks["update"] = f.tasks.UpdateTask(ctx, bob.ID, task.ID, TaskPatch{Title: &title})
	_, checks["replace"] = f.tasks.ReplaceTask(ctx, bob.ID, task.ID, TaskInput{Title: title})
	_, checks["mark"] = f.tasks.MarkCompleted(ctx, bob.ID, task.ID)
	checks["delete"] = f.tasks.DeleteTask(ctx, bob.ID, task.ID)
	for op, err := range checks {
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("%s as non-owner error = %v, want ErrNotFound", op, err)
		}
	}

	got, err := f.tasks.GetTask(ctx, alice.ID, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Title != "T1" || got.Status != domain.TaskStatusPending {
		t.Errorf("task modified by non-owner: %+v", got)
	}
}

func TestUpdateTaskPartial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")

	desc := "details"
	due := time.Date(2031, 5, 6, 7, 8, 9, 0, time.UTC)
	task, err := f.tasks.CreateTask(ctx, alice.ID, TaskInput{Title: "T1", Description: &desc, DueDate: &due, Priority: domain.TaskPriorityHigh})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	time.Sleep(2 * time.Millisecond)
	status := domain.TaskStatusInProgress
	updated, err := f.tasks.UpdateTask(ctx, alice.ID, task.ID, TaskPatch{Status: &status, ClearDueDate: true})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if updated.Title != "T1" || updated.Priority != domain.TaskPriorityHigh {
		t.Errorf("untouched fields changed: %+v", updated)
	}
	if updated.Description == nil || *updated.Description != "details" {
		t.Errorf("description = %v", updated.Description)
	}
	if updated.DueDate != nil {
		t.Errorf("due date not cleared: %v", updated.DueDate)
	}
	if updated.Status != domain.TaskStatusInProgress {
		t.Errorf("status = %q", updated.Status)
	}
	if !updated.CreatedAt.Equal(task.CreatedAt) || !updated.UpdatedAt.After(task.UpdatedAt) {
		t.Errorf("timestamps: created %v->%v updated %v->%v", task.CreatedAt, updated.CreatedAt, task.UpdatedAt, updated.UpdatedAt)
	}

	bad := domain.TaskStatus("archived")
	if _, err := f.tasks.UpdateTask(ctx, alice.ID, task.ID, TaskPatch{Status: &bad}); len(fieldsOf(t, err)["status"]) == 0 {
		t.Errorf("invalid status accepted: %v", err)
	}
}

func TestReplaceTaskResetsOptionalFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")

	desc := "details"
	task, err := f.tasks.CreateTask(ctx, alice.ID, TaskInput{Title: "T1", Description: &desc, Status: domain.TaskStatusCompleted, Priority: domain.TaskPriorityLow})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	replaced, err := f.tasks.ReplaceTask(ctx, alice.ID, task.ID, TaskInput{Title: "T1 v2"})
	if err != nil {
		t.Fatalf("ReplaceTask: %v", err)
	}
	if replaced.Title != "T1 v2" || replaced.Description != nil {
		t.Errorf("replaced = %+v", replaced)
	}
	if replaced.Status != domain.TaskStatusPending || replaced.Priority != domain.TaskPriorityMedium {
		t.Errorf("defaults not applied: %q/%q", replaced.Status, replaced.Priority)
	}
}

func TestMarkCompletedIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	task, err := f.tasks.CreateTask(ctx, alice.ID, TaskInput{Title: "T1", Status: domain.TaskStatusInProgress})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	for i := 0; i < 2; i++ {
		done, err := f.tasks.MarkCompleted(ctx, alice.ID, task.ID)
		if err != nil {
			t.Fatalf("MarkCompleted #%d: %v", i, err)
		}
		if done.Status != domain.TaskStatusCompleted {
			t.Errorf("status #%d = %q", i, done.Status)
		}
		if done.Owner == nil {
			t.Errorf("owner not attached #%d", i)
		}
	}
}

func TestFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	if _, err := f.tasks.CreateTask(ctx, alice.ID, TaskInput{Title: "a1", Priority: domain.TaskPriorityHigh}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.tasks.CreateTask(ctx, alice.ID, TaskInput{Title: "a2", Status: domain.TaskStatusCompleted}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.tasks.CreateTask(ctx, bob.ID, TaskInput{Title: "b1", Status: domain.TaskStatusCompleted, Priority: domain.TaskPriorityHigh}); err != nil {
		t.Fatal(err)
	}

	if _, err := f.tasks.FilterByStatus(ctx, alice.ID, ""); len(fieldsOf(t, err)["status"]) == 0 {
		t.Errorf("missing status parameter accepted: %v", err)
	}
	if _, err := f.tasks.FilterByPriority(ctx, alice.ID, ""); len(fieldsOf(t, err)["priority"]) == 0 {
		t.Errorf("missing priority parameter accepted: %v", err)
	}

	completed, err := f.tasks.FilterByStatus(ctx, alice.ID, "completed")
	if err != nil {
		t.Fatalf("FilterByStatus: %v", err)
	}
	if len(completed) != 1 || completed[0].Title != "a2" {
		t.Errorf("completed = %+v", completed)
	}

	high, err := f.tasks.FilterByPriority(ctx, alice.ID, "high")
	if err != nil {
		t.Fatalf("FilterByPriority: %v", err)
	}
	if len(high) != 1 || high[0].Title != "a1" {
		t.Errorf("high = %+v", high)
	}

	unknown, err := f.tasks.FilterByStatus(ctx, alice.ID, "archived")
	if err != nil {
		t.Fatalf("FilterByStatus unknown: %v", err)
	}
	if len(unknown) != 0 {
		t.Errorf("unknown status matched %d tasks", len(unknown))
	}
}

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (m *memoryStorage) PutObject(_ context.Context, bucket, key string, body io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return "s3://" + bucket + "/" + key, nil
}

func (m *memoryStorage) ListObjects(_ context.Context, _, prefix string) ([]storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.ObjectInfo
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, storage.ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memoryStorage) DeletePrefix(_ context.Context, _, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			delete(m.objects, key)
		}
	}
	return nil
}

func (m *memoryStorage) GetObjectURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return "https://" + bucket + ".example.com/" + key + "?signed", nil
}

func TestExportService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	if _, err := f.tasks.CreateTask(ctx, alice.ID, TaskInput{Title: "a1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.tasks.CreateTask(ctx, bob.ID, TaskInput{Title: "b1"}); err != nil {
		t.Fatal(err)
	}

	store := newMemoryStorage()
	exports := NewExportService(f.taskDB, store, ExportOptions{Bucket: "exports", KeyPrefix: "/task-exports/"})

	exp, err := exports.Export(ctx, alice.ID)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if exp.Count != 1 || !strings.HasPrefix(exp.Key, "task-exports/user-1/") || !strings.HasSuffix(exp.Key, ".json") {
		t.Errorf("export = %+v", exp)
	}
	if exp.URL == "" || exp.Location != "s3://exports/"+exp.Key {
		t.Errorf("export location = %+v", exp)
	}

	var doc exportDocument
	if err := json.NewDecoder(bytes.NewReader(store.objects[exp.Key])).Decode(&doc); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if doc.UserID != alice.ID || len(doc.Tasks) != 1 || doc.Tasks[0].Title != "a1" {
		t.Errorf("document = %+v", doc)
	}

	if _, err := exports.Export(ctx, bob.ID); err != nil {
		t.Fatalf("Export bob: %v", err)
	}
	listed, err := exports.ListExports(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListExports: %v", err)
	}
	if len(listed) != 1 || listed[0].Key != exp.Key {
		t.Errorf("alice exports = %+v", listed)
	}

	if err := exports.PurgeExports(ctx, alice.ID); err != nil {
		t.Fatalf("PurgeExports: %v", err)
	}
	if listed, _ := exports.ListExports(ctx, alice.ID); len(listed) != 0 {
		t.Errorf("exports after purge = %+v", listed)
	}
	if listed, _ := exports.ListExports(ctx, bob.ID); len(listed) != 1 {
		t.Errorf("bob's exports touched by purge: %+v", listed)
	}
}

func TestExportServiceUnconfigured(t *testing.T) {
	f := newFixture(t)
	exports := NewExportService(f.taskDB, nil, ExportOptions{Bucket: "exports"})
	if _, err := exports.Export(context.Background(), 1); !errors.Is(err, ErrStorageNotConfigured) {
		t.Errorf("Export error = %v", err)
	}
	exports = NewExportService(f.taskDB, newMemoryStorage(), ExportOptions{})
	if err := exports.PurgeExports(context.Background(), 1); !errors.Is(err, ErrStorageNotConfigured) {
		t.Errorf("PurgeExports error = %v", err)
	}
}
