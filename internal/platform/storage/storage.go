// Package storage opens the configured backend and hands out the learner
// store, credential store and event logger built on it.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/p-n-ai/pim/internal/account"
	"github.com/p-n-ai/pim/internal/learner"
	"github.com/p-n-ai/pim/internal/platform/config"
	"github.com/p-n-ai/pim/internal/platform/database"
	"github.com/p-n-ai/pim/internal/progress"
)

// Storage groups the stores of one backend.
type Storage struct {
	Users       learner.Store
	Credentials account.Credentials
	Events      progress.EventLogger

	db *database.DB
}

// Open connects to the backend selected by cfg.Storage.Backend.
func Open(ctx context.Context, cfg *config.Config) (*Storage, error) {
	switch cfg.Storage.Backend {
	case config.BackendFile:
		return openFile(cfg)
	case config.BackendPostgres:
		return openPostgres(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

func openFile(cfg *config.Config) (*Storage, error) {
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	slog.Info("using file storage", "dir", cfg.Storage.DataDir)
	return &Storage{
		Users:       learner.NewFileStore(cfg.UsersPath()),
		Credentials: account.NewFileCredentials(cfg.LoginsPath()),
		Events:      progress.NopEventLogger{},
	}, nil
}

func openPostgres(ctx context.Context, cfg *config.Config) (*Storage, error) {
	db, err := database.Open(ctx, database.Options{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
		Migrate:  cfg.Database.Migrate,
	})
	if err != nil {
		return nil, err
	}

	users, err := learner.NewPostgresStore(db.Pool)
	if err != nil {
		db.Close()
		return nil, err
	}
	creds, err := account.NewPostgresCredentials(db.Pool)
	if err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("using postgres storage")
	return &Storage{
		Users:       users,
		Credentials: creds,
		Events:      progress.NewPostgresEventLogger(db.Pool),
		db:          db,
	}, nil
}

// Close releases the database pool, if any.
func (s *Storage) Close() {
	if s.db != nil {
		s.db.Close()
	}
}
