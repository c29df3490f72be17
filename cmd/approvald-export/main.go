// Command approvald-export writes a one-off CSV snapshot of every table to
// the configured export target, or to -dir when given.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BrandonDHaskell/approvald/internal/app"
	"github.com/BrandonDHaskell/approvald/internal/approvals/service"
	"github.com/BrandonDHaskell/approvald/internal/config"
	"github.com/BrandonDHaskell/approvald/internal/logging"
)

func main() {
	dir := flag.String("dir", "", "write to this directory instead of the configured export target")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.NewLogger("dev").Error("config", "err", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.Env).With("service", "approvald-export")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *dir, logger); err != nil {
		logger.Error("export failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, dir string, logger *slog.Logger) error {
	// A one-off export never needs dev seeding.
	cfg.SeedDev = false
	storage, err := app.OpenStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer storage.Close()

	target := cfg.Export
	if dir != "" {
		target.Driver = "fs"
		target.Dir = dir
	}
	dst, err := app.OpenExportTarget(ctx, target)
	if err != nil {
		return err
	}

	infos, err := service.NewSnapshotExporter(storage.Store, dst, service.ExporterConfig{}, logger).RunOnce(ctx)
	if err != nil {
		return err
	}
	for _, info := range infos {
		logger.Info("wrote", "key", info.Key, "bytes", info.Size)
	}
	return nil
}
