// Package schedule triggers imports without operator action: on a fixed
// interval for subscription imports, and on archive drops for file imports.
package schedule

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/termhub/termsync/errors"
	"github.com/termhub/termsync/ingest"
	"github.com/termhub/termsync/store"
)

// Scheduler runs a subscription import on a fixed interval. Ticks that arrive
// while a run is active are skipped, never queued.
type Scheduler struct {
	importer *ingest.Importer
	subs     *store.SubscriptionStore
	interval time.Duration
	logger   *zap.SugaredLogger
}

// NewScheduler creates a scheduler firing at the given interval.
func NewScheduler(importer *ingest.Importer, subs *store.SubscriptionStore,
	interval time.Duration, logger *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		importer: importer,
		subs:     subs,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks, firing imports until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Infow("Scheduler started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	sub, err := s.subs.Get(ctx)
	if err != nil {
		s.logger.Errorw("Scheduled import skipped", "error", err)
		return
	}
	if sub == nil {
		s.logger.Debug("Scheduled import skipped: no subscription configured")
		return
	}

	if err := s.importer.ImportCollection(ctx); err != nil {
		if errors.Is(err, errors.ErrImportInProgress) {
			s.logger.Debug("Scheduled import skipped: a run is already active")
			return
		}
		s.logger.Errorw("Scheduled import failed", "error", err)
	}
}
