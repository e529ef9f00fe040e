package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/crypto/bcrypt"

	"github.com/p-n-ai/pim/internal/account"
	"github.com/p-n-ai/pim/internal/app"
	"github.com/p-n-ai/pim/internal/catalog"
	"github.com/p-n-ai/pim/internal/platform/cache"
	"github.com/p-n-ai/pim/internal/platform/config"
	"github.com/p-n-ai/pim/internal/platform/logging"
	"github.com/p-n-ai/pim/internal/platform/storage"
	"github.com/p-n-ai/pim/internal/progress"
	"github.com/p-n-ai/pim/internal/terminal"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger, closeLog, err := openLogger(cfg.Log)
	if err != nil {
		slog.Error("failed to open log", "error", err)
		os.Exit(1)
	}
	defer closeLog.Close()
	slog.SetDefault(logger)

	// SIGTERM ends the program. SIGINT is delivered to the terminal, which
	// turns it into a return to the previous menu.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	if err := run(ctx, cfg, interrupts); err != nil {
		slog.Error("pim failed", "error", err)
		fmt.Fprintln(os.Stderr, "pim:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, interrupts <-chan os.Signal) error {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}

	st, err := storage.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	locker, closeLocker, err := openLocker(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer closeLocker()

	a := app.New(app.Config{
		Console:  terminal.New(terminal.Options{In: os.Stdin, Out: os.Stdout, Interrupts: interrupts}),
		Catalog:  cat,
		Users:    st.Users,
		Accounts: account.NewService(st.Credentials, st.Users, bcrypt.DefaultCost),
		Tracker: progress.NewTracker(progress.TrackerConfig{
			Store:        st.Users,
			Events:       st.Events,
			SaveAttempts: cfg.Progress.SaveAttempts,
		}),
		Locker: locker,
	})

	slog.Info("pim started", "backend", cfg.Storage.Backend, "catalog", cfg.CatalogPath)
	defer slog.Info("pim stopped")
	return a.Run(ctx)
}

// openLogger writes logs to the configured file so they stay off the menu
// screen. An empty file name logs to stderr.
func openLogger(cfg config.LogConfig) (*slog.Logger, io.Closer, error) {
	var (
		w      io.Writer = os.Stderr
		closer io.Closer = io.NopCloser(nil)
	)
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f
	}

	logger, err := logging.New(w, cfg.Level, cfg.Format)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return logger, closer, nil
}

// openLocker returns a Redis-backed session lock when a cache URL is set.
func openLocker(ctx context.Context, cfg config.CacheConfig) (cache.Locker, func(), error) {
	if cfg.URL == "" {
		return cache.NopLocker{}, func() {}, nil
	}
	c, err := cache.New(ctx, cache.Options{URL: cfg.URL, Prefix: cfg.Prefix})
	if err != nil {
		return nil, nil, err
	}
	return cache.NewSessionLocker(c, cfg.SessionLockTTL), func() {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close cache", "error", err)
		}
	}, nil
}
