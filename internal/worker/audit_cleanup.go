package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/logger"
)

// AuditCleaner deletes audit entries older than a cutoff.
type AuditCleaner interface {
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}

type AuditCleanupWorker struct {
	repo            AuditCleaner
	retentionDays   int
	cleanupInterval time.Duration
	log             *logger.Logger
	now             func() time.Time
}

func NewAuditCleanupWorker(repo AuditCleaner, retentionDays int, cleanupInterval time.Duration, log *logger.Logger) *AuditCleanupWorker {
	return &AuditCleanupWorker{
		repo:            repo,
		retentionDays:   retentionDays,
		cleanupInterval: cleanupInterval,
		log:             log,
		now:             time.Now,
	}
}

// Start runs until ctx is cancelled. A non-positive retention disables it.
func (w *AuditCleanupWorker) Start(ctx context.Context) {
	if w.retentionDays <= 0 || w.cleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.cleanup(ctx); err != nil {
				w.log.Error(err, "audit cleanup failed")
			}
		}
	}
}

func (w *AuditCleanupWorker) cleanup(ctx context.Context) error {
	cutoff := w.now().AddDate(0, 0, -w.retentionDays)

	rows, err := w.repo.Cleanup(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup audit logs: %w", err)
	}

	w.log.Info("cleaned up audit logs", "deleted", rows, "cutoff", cutoff)
	return nil
}
