package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pim/internal/learner"
	"github.com/p-n-ai/pim/internal/shared"
)

const dbTimeout = 5 * time.Second

// PostgresCredentials stores hashes in the credentials table.
type PostgresCredentials struct {
	pool *pgxpool.Pool
}

func NewPostgresCredentials(pool *pgxpool.Pool) (*PostgresCredentials, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresCredentials{pool: pool}, nil
}

func (c *PostgresCredentials) Exists(ctx context.Context, username string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var exists bool
	err := c.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM credentials WHERE username = $1)`,
		learner.NormalizeUsername(username),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check credentials: %w", err)
	}
	return exists, nil
}

func (c *PostgresCredentials) PasswordHash(ctx context.Context, username string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	key := learner.NormalizeUsername(username)
	var hash string
	err := c.pool.QueryRow(ctx, `SELECT password_hash FROM credentials WHERE username = $1`, key).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("credentials for %q: %w", key, shared.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("load credentials for %q: %w", key, err)
	}
	return hash, nil
}

func (c *PostgresCredentials) SetPasswordHash(ctx context.Context, username, hash string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dbTimeout)
	defer cancel()

	_, err := c.pool.Exec(ctx,
		`INSERT INTO credentials (username, password_hash, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (username) DO UPDATE SET
		   password_hash = EXCLUDED.password_hash,
		   updated_at    = NOW()`,
		learner.NormalizeUsername(username),
		hash,
	)
	if err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

func (c *PostgresCredentials) DeletePasswordHash(ctx context.Context, username string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dbTimeout)
	defer cancel()

	_, err := c.pool.Exec(ctx, `DELETE FROM credentials WHERE username = $1`, learner.NormalizeUsername(username))
	if err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}
