package ledger

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"audiofp/internal/observability"
)

const (
	DefaultStagedTTL     = time.Hour
	DefaultSweepInterval = 10 * time.Minute
	sweepBatch           = 200
)

// Sweeper deletes staged files the request path failed to remove.
type Sweeper struct {
	store     Store
	ttl       time.Duration
	retention time.Duration
	metrics   *observability.Metrics
	logger    *slog.Logger
	now       func() time.Time
	remove    func(string) error
}

func NewSweeper(store Store, ttl, retention time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Sweeper {
	if ttl <= 0 {
		ttl = DefaultStagedTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:     store,
		ttl:       ttl,
		retention: retention,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		remove:    os.Remove,
	}
}

// Start sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	go s.loop(ctx, interval)
}

func (s *Sweeper) loop(ctx context.Context, interval time.Duration) {
	s.runOnce(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	removed, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("sweep staged files failed", "error", err)
	}
	if removed > 0 {
		s.logger.Info("swept orphaned staged files", "count", removed)
	}
	if s.retention > 0 {
		purged, err := s.store.Purge(ctx, s.now().Add(-s.retention))
		if err != nil {
			s.logger.Error("purge ledger failed", "error", err)
		} else if purged > 0 {
			s.logger.Info("purged ledger entries", "count", purged)
		}
	}
}

// Sweep removes staged files older than the TTL that were never cleaned up
// and marks them removed. It returns how many entries were settled.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	orphans, err := s.store.ListOrphans(ctx, s.now().Add(-s.ttl), sweepBatch)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, asset := range orphans {
		if err := s.remove(asset.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("remove orphaned staged file failed", "path", asset.Path, "error", err)
			continue
		}
		if err := s.store.MarkRemoved(ctx, asset.ID, s.now()); err != nil {
			s.logger.Warn("mark orphan removed failed", "asset", asset.ID, "error", err)
			continue
		}
		settled++
	}
	s.metrics.Swept(settled)
	return settled, nil
}
