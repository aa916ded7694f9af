package archive

import (
	"context"
	"fmt"
	"time"

	"liveclass/pkg/archive"

	"go.uber.org/zap"
)

// RetentionSweeper prunes archived sessions past their retention
// window on a fixed interval.
type RetentionSweeper struct {
	store         *archive.Store
	interval      time.Duration
	retentionDays int
	logger        *zap.SugaredLogger
	stopChan      chan struct{}
}

// RetentionConfig controls sweep cadence and how long archives live.
type RetentionConfig struct {
	Interval      time.Duration
	RetentionDays int
}

func NewRetentionSweeper(store *archive.Store, cfg RetentionConfig, logger *zap.SugaredLogger) *RetentionSweeper {
	return &RetentionSweeper{
		store:         store,
		interval:      cfg.Interval,
		retentionDays: cfg.RetentionDays,
		logger:        logger,
		stopChan:      make(chan struct{}),
	}
}

// Start blocks sweeping until Stop or ctx cancellation.
func (s *RetentionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if err := s.Sweep(ctx); err != nil {
		s.logger.Warnw("archive sweep failed", "error", err)
	}

	for {
		select {
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Warnw("archive sweep failed", "error", err)
			}
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the sweep loop.
func (s *RetentionSweeper) Stop() {
	close(s.stopChan)
}

// Sweep deletes every archive older than the retention window. Names
// that do not parse are left alone rather than guessed at.
func (s *RetentionSweeper) Sweep(ctx context.Context) error {
	names, err := s.store.List(ctx, namePrefix)
	if err != nil {
		return fmt.Errorf("failed to list archives: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)

	for _, name := range names {
		archivedAt, err := parseRecordTime(name)
		if err != nil {
			s.logger.Warnw("failed to parse archive timestamp", "name", name, "error", err)
			continue
		}

		if archivedAt.Before(cutoff) {
			if err := s.store.Delete(ctx, name); err != nil {
				s.logger.Warnw("failed to delete expired archive", "name", name, "error", err)
				continue
			}
			s.logger.Infow("deleted expired archive", "name", name, "age", time.Since(archivedAt))
		}
	}

	return nil
}

// parseRecordTime recovers the end timestamp embedded in an archive
// name of the form session-20060102-150405-<id>.json.
func parseRecordTime(name string) (time.Time, error) {
	if len(name) < len(namePrefix)+len(nameTimeLayout) {
		return time.Time{}, fmt.Errorf("archive name too short: %s", name)
	}
	stamp := name[len(namePrefix) : len(namePrefix)+len(nameTimeLayout)]
	return time.Parse(nameTimeLayout, stamp)
}
