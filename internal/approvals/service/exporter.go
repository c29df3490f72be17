package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/BrandonDHaskell/approvald/internal/approvals/export"
	"github.com/BrandonDHaskell/approvald/internal/approvals/store"
	"github.com/BrandonDHaskell/approvald/internal/blob"
	"github.com/BrandonDHaskell/approvald/internal/observability"
)

// SnapshotExporter periodically writes the five CSV tables to a blob store.
// It runs as a background goroutine and is stopped via its context or Stop.
//
// An interval of 0 disables the loop; RunOnce still works.
type SnapshotExporter struct {
	store    store.Store
	dst      blob.Store
	interval time.Duration
	now      func() time.Time
	log      *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// ExporterConfig holds the parameters for NewSnapshotExporter.
type ExporterConfig struct {
	// IntervalHours is how often a snapshot is taken. 0 disables the loop.
	IntervalHours int

	// Interval overrides IntervalHours when set. Tests only.
	Interval time.Duration
}

// NewSnapshotExporter creates an exporter but does not start it.
func NewSnapshotExporter(s store.Store, dst blob.Store, cfg ExporterConfig, log *slog.Logger) *SnapshotExporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Duration(cfg.IntervalHours) * time.Hour
	}
	return &SnapshotExporter{
		store:    s,
		dst:      dst,
		interval: interval,
		now:      time.Now,
		log:      log,
	}
}

// Start runs an immediate export, then repeats on the configured interval
// until ctx is cancelled or Stop is called.
func (e *SnapshotExporter) Start(ctx context.Context) {
	if e.interval <= 0 {
		e.log.Info("snapshot exporter disabled", "interval_hours", 0)
		return
	}

	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	go e.loop(ctx)

	e.log.Info("snapshot exporter started",
		"interval", e.interval.String(), "driver", e.dst.Driver())
}

// Stop signals the loop to exit and waits for it. It is a no-op when the
// exporter was never started.
func (e *SnapshotExporter) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
}

func (e *SnapshotExporter) loop(ctx context.Context) {
	defer close(e.done)

	e.export(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.export(ctx)
		}
	}
}

func (e *SnapshotExporter) export(ctx context.Context) {
	if _, err := e.RunOnce(ctx); err != nil && ctx.Err() == nil {
		e.log.ErrorContext(ctx, "snapshot export failed", "err", err)
	}
}

// RunOnce takes a consistent snapshot and writes it under a timestamped
// prefix. It returns the objects written.
func (e *SnapshotExporter) RunOnce(ctx context.Context) ([]blob.Info, error) {
	now := e.now().UTC()
	snap, err := export.Collect(ctx, e.store, now)
	if err != nil {
		observability.ExportsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	prefix := export.Prefix(now)
	infos, err := export.Write(ctx, snap, e.dst, prefix)
	if err != nil {
		observability.ExportsTotal.WithLabelValues("error").Inc()
		return infos, err
	}
	observability.ExportsTotal.WithLabelValues("ok").Inc()
	e.log.InfoContext(ctx, "snapshot exported",
		"prefix", prefix, "requests", len(snap.Requests), "history", len(snap.History))
	return infos, nil
}
