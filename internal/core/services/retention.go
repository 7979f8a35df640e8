package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quillstack-labs/pagelift/internal/core/ports/driven"
)

// RetentionSweeper periodically deletes artifacts older than the retention
// window. Artifacts outlive their request indefinitely otherwise; this is
// the only cleanup path.
type RetentionSweeper struct {
	store     driven.ArtifactStore
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
}

// NewRetentionSweeper creates a sweeper. A zero or negative retention
// disables sweeping entirely.
func NewRetentionSweeper(store driven.ArtifactStore, retention, interval time.Duration, logger *zap.Logger) *RetentionSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionSweeper{
		store:     store,
		retention: retention,
		interval:  interval,
		logger:    logger,
	}
}

// Run blocks, sweeping on every interval tick until the context is
// cancelled. Call it from its own goroutine.
func (s *RetentionSweeper) Run(ctx context.Context) {
	if s.retention <= 0 {
		return
	}

	s.logger.Info("retention sweeper started",
		zap.Duration("retention", s.retention),
		zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed, err := s.SweepOnce(ctx); err != nil {
				s.logger.Warn("retention sweep failed", zap.Error(err))
			} else if removed > 0 {
				s.logger.Info("retention sweep removed expired artifacts", zap.Int("removed", removed))
			}
		}
	}
}

// SweepOnce performs a single sweep pass.
func (s *RetentionSweeper) SweepOnce(ctx context.Context) (int, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	return s.store.Sweep(ctx, s.retention)
}
