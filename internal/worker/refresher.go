package worker

import (
	"context"
	"time"

	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/logger"
)

// Source reloads one entity store from the backend.
type Source interface {
	Refresh(ctx context.Context) (int, error)
}

// Refresher polls the backend and replaces the entity stores on an
// interval. A failed reload keeps the previous snapshot.
type Refresher struct {
	sources  map[string]Source
	interval time.Duration
	log      *logger.Logger
}

func NewRefresher(interval time.Duration, log *logger.Logger, sources map[string]Source) *Refresher {
	return &Refresher{sources: sources, interval: interval, log: log}
}

// RefreshAll reloads every source once and returns the first error.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	var first error
	for name, src := range r.sources {
		n, err := src.Refresh(ctx)
		if err != nil {
			r.log.Error(err, "store refresh failed", "entity", name)
			if first == nil {
				first = err
			}
			continue
		}
		r.log.Debug("store refreshed", "entity", name, "count", n)
	}
	return first
}

// Start blocks until ctx is cancelled. A non-positive interval disables
// polling.
func (r *Refresher) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = r.RefreshAll(ctx)
		}
	}
}
