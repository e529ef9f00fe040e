package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/p-n-ai/pim/internal/catalog"
	"github.com/p-n-ai/pim/internal/platform/config"
	"github.com/p-n-ai/pim/internal/platform/storage"
	"github.com/p-n-ai/pim/internal/report"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	flags := pflag.NewFlagSet("pim-report", pflag.ExitOnError)
	outDir := flags.StringP("out", "o", ".", "directory the report files are written to")
	format := flags.StringP("format", "f", string(report.FormatCSV), "report format: csv or xlsx")
	flags.StringVar(&cfg.Storage.Backend, "backend", cfg.Storage.Backend, "storage backend: file or postgres")
	flags.StringVar(&cfg.Storage.DataDir, "data-dir", cfg.Storage.DataDir, "data directory of the file backend")
	flags.StringVar(&cfg.Database.URL, "database-url", cfg.Database.URL, "PostgreSQL URL of the postgres backend")
	flags.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "course catalog file or directory")
	flags.Parse(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	paths, err := run(ctx, cfg, *outDir, *format)
	if err != nil {
		slog.Error("report failed", "error", err)
		os.Exit(1)
	}
	for _, p := range paths {
		fmt.Println(p)
	}
}

func run(ctx context.Context, cfg *config.Config, outDir, formatName string) ([]string, error) {
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return nil, err
	}
	// The report never writes learner data, so migrations stay off.
	cfg.Database.Migrate = false
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	st, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	users, err := st.Users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	r := report.Build(users, cat)
	paths, err := report.Export(outDir, format, r.Tables())
	if err != nil {
		return nil, err
	}
	slog.Info("report written", "users", r.Total, "format", format, "files", len(paths))
	return paths, nil
}
