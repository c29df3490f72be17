package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BrandonDHaskell/approvald/internal/app"
	"github.com/BrandonDHaskell/approvald/internal/approvals/events"
	"github.com/BrandonDHaskell/approvald/internal/approvals/service"
	"github.com/BrandonDHaskell/approvald/internal/approvals/types"
	"github.com/BrandonDHaskell/approvald/internal/config"
	"github.com/BrandonDHaskell/approvald/internal/grpcapi"
	"github.com/BrandonDHaskell/approvald/internal/httpapi"
	"github.com/BrandonDHaskell/approvald/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewLogger("dev").Error("config", "err", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.Env).With("service", "approvald")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("approvald", "err", err)
		stop()
		os.Exit(1)
	}
}

// run serves until ctx is done or a server fails. Everything it opens is
// released before it returns.
func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Storage
	storage, err := app.OpenStorage(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer func() {
		if err := storage.Close(); err != nil {
			logger.Error("close storage", "err", err)
		}
	}()

	// Event fan-out
	var publisher events.Publisher = events.Nop{}
	if cfg.RedisURL != "" {
		rdb, err := events.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		publisher = events.NewRedisPublisher(rdb, cfg.RedisChannel)
		logger.Info("publishing history events", "channel", cfg.RedisChannel)
	}

	// Services
	transitions := types.PermissiveTransitions()
	if cfg.StrictTransitions {
		transitions = types.StrictTransitions()
	}
	directory := service.NewDirectoryService(storage.Store, logger)
	lifecycle := service.NewLifecycleService(storage.Store, directory, service.LifecycleConfig{
		RequestTypes: cfg.RequestTypes,
		Transitions:  transitions,
		Publisher:    publisher,
	}, logger)

	dst, err := app.OpenExportTarget(ctx, cfg.Export)
	if err != nil {
		return fmt.Errorf("export target: %w", err)
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", cfg.GRPCAddr, err)
	}

	// Background snapshot export
	exporter := service.NewSnapshotExporter(storage.Store, dst, service.ExporterConfig{
		IntervalHours: cfg.Export.IntervalHours,
	}, logger)
	exporter.Start(ctx)
	defer exporter.Stop()

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:    logger,
		Addr:      cfg.HTTPAddr,
		Lifecycle: lifecycle,
		Directory: directory,
		Sessions:  httpapi.NewSessions(cfg.SessionSecret, cfg.SessionTTL),
	})

	failed := make(chan error, 2)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- fmt.Errorf("http server: %w", err)
		}
	}()

	// gRPC health
	grpcSrv := grpcapi.NewServer(logger)
	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			failed <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	grpcSrv.MarkServing()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-failed:
	}
	logger.Info("shutting down")

	grpcSrv.Stop()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
	return serveErr
}
