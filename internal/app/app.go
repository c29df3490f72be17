// Package app turns a Config into the wired storage and export components
// shared by the approvald binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/BrandonDHaskell/approvald/internal/approvals/store"
	"github.com/BrandonDHaskell/approvald/internal/approvals/store/memory"
	"github.com/BrandonDHaskell/approvald/internal/approvals/store/sqlstore"
	"github.com/BrandonDHaskell/approvald/internal/blob"
	"github.com/BrandonDHaskell/approvald/internal/config"
	"github.com/BrandonDHaskell/approvald/internal/db"
)

// Storage is an open store plus whatever must be released with it.
type Storage struct {
	Store  store.Store
	db     *sql.DB
	writer *db.Worker
}

// Close drains the writer before closing the pool.
func (s *Storage) Close() error {
	if s.writer != nil {
		s.writer.Close()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// OpenStorage opens the configured driver. SQL drivers are migrated and,
// when seed_dev is on, seeded with an admin and an approver.
func OpenStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Storage, error) {
	if cfg.DBDriver == "memory" {
		logger.Warn("using in-memory storage; data is lost on exit")
		return &Storage{Store: memory.New()}, nil
	}

	dialect, err := db.ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(ctx, db.Config{
		Dialect: dialect,
		Path:    cfg.DBPath,
		DSN:     cfg.DBDSN,
		Env:     cfg.Env,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	if cfg.SeedDev {
		if err := db.SeedDev(ctx, conn, dialect, db.SeedDevOptions{
			Admins:    []string{"admin"},
			Approvers: []string{"approver"},
		}); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("seed dev users: %w", err)
		}
		logger.Info("seeded dev users", "admin", "admin", "approver", "approver")
	}

	writer := db.NewWorker(conn)
	logger.Info("storage ready", "driver", dialect)
	return &Storage{
		Store:  sqlstore.New(conn, writer, dialect),
		db:     conn,
		writer: writer,
	}, nil
}

// OpenExportTarget opens the blob store CSV snapshots are written to.
func OpenExportTarget(ctx context.Context, cfg config.ExportConfig) (blob.Store, error) {
	return blob.Open(ctx, blob.Config{
		Driver: blob.Driver(cfg.Driver),
		Root:   cfg.Dir,
		S3: blob.S3Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		},
	})
}
