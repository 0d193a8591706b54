package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tasktracker/internal/domain"
	"tasktracker/internal/repository"
)

// openPool connects to the database named by TASKTRACKER_TEST_POSTGRES_DSN and
// recreates the schema. Tests are skipped when the variable is unset.
func openPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TASKTRACKER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TASKTRACKER_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pool, err := Open(ctx, dsn, 4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, `DROP TABLE IF EXISTS tasks, revoked_tokens, users`); err != nil {
		t.Fatalf("drop tables: %v", err)
	}
	for _, init := range []func(context.Context) error{
		NewUserRepository(pool).Init,
		NewTaskRepository(pool).Init,
		NewTokenRepository(pool).Init,
	} {
		if err := init(ctx); err != nil {
			t.Fatalf("init: %v", err)
		}
	}
	return pool
}

func TestPostgresUserAndTaskRoundTrip(t *testing.T) {
	pool := openPool(t)
	ctx := context.Background()
	users := NewUserRepository(pool)
	tasks := NewTaskRepository(pool)

	alice := &domain.User{Username: "alice", PasswordHash: "x"}
	if _, err := users.Create(ctx, alice); err != nil {
		t.Fatalf("create alice: %v", err)
	}
	if _, err := users.Create(ctx, &domain.User{Username: "alice", PasswordHash: "y"}); !errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("duplicate error = %v, want ErrDuplicate", err)
	}
	bob := &domain.User{Username: "bob", PasswordHash: "x"}
	if _, err := users.Create(ctx, bob); err != nil {
		t.Fatalf("create bob: %v", err)
	}

	task := &domain.Task{UserID: alice.ID, Title: "T1"}
	if _, err := tasks.Create(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := tasks.Get(ctx, bob.ID, task.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("non-owner Get error = %v, want ErrNotFound", err)
	}
	if _, err := tasks.UpdateStatus(ctx, bob.ID, task.ID, domain.TaskStatusCompleted); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("non-owner UpdateStatus error = %v, want ErrNotFound", err)
	}

	done, err := tasks.UpdateStatus(ctx, alice.ID, task.ID, domain.TaskStatusCompleted)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if done.Status != domain.TaskStatusCompleted || done.Description != nil {
		t.Errorf("UpdateStatus = %+v", done)
	}

	list, err := tasks.List(ctx, repository.TaskFilter{OwnerID: alice.ID, Status: "completed"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ID != task.ID {
		t.Errorf("List = %+v", list)
	}

	if err := tasks.Delete(ctx, alice.ID, task.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := tasks.Delete(ctx, alice.ID, task.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
}

func TestPostgresTokenRevoke(t *testing.T) {
	pool := openPool(t)
	ctx := context.Background()
	tokens := NewTokenRepository(pool)

	if err := tokens.Revoke(ctx, "jti-1", 1, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	revoked, err := tokens.IsRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if !revoked {
		t.Error("jti-1 not revoked")
	}
	if revoked, _ := tokens.IsRevoked(ctx, "jti-2"); revoked {
		t.Error("jti-2 reported revoked")
	}
}
