package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tasktracker/internal/repository"
)

const createRevokedTokensTable = `
CREATE TABLE IF NOT EXISTS revoked_tokens (
	jti TEXT PRIMARY KEY,
	user_id BIGINT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_revoked_tokens_expires_at ON revoked_tokens(expires_at);
`

type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) repository.TokenRepository {
	return &TokenRepository{pool: pool}
}

func (r *TokenRepository) Init(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createRevokedTokensTable); err != nil {
		return fmt.Errorf("create revoked_tokens table: %w", err)
	}
	return nil
}

func (r *TokenRepository) Revoke(ctx context.Context, jti string, userID int64, expiresAt time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at < $1`, time.Now().UTC()); err != nil {
		return fmt.Errorf("purge revoked tokens: %w", err)
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO revoked_tokens (jti, user_id, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (jti) DO NOTHING`,
		jti,
		userID,
		expiresAt.UTC(),
	); err != nil {
		return fmt.Errorf("insert revoked token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit revoke: %w", err)
	}
	return nil
}

func (r *TokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1)`, jti).Scan(&exists); err != nil {
		return false, fmt.Errorf("lookup revoked token: %w", err)
	}
	return exists, nil
}
