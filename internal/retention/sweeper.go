// Package retention deletes expired jobs together with their files.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/observability"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/storage"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/store"
)

// Sweeper periodically removes jobs whose expires_at has passed.
type Sweeper struct {
	store    store.Store
	files    *storage.Files
	metrics  *observability.Metrics
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(st store.Store, files *storage.Files, metrics *observability.Metrics, interval time.Duration) *Sweeper {
	if metrics == nil {
		metrics = observability.NewNoopMetrics()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{store: st, files: files, metrics: metrics, interval: interval, now: time.Now}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			slog.Error("retention sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep deletes every expired job and returns how many were removed. File
// removal failures are logged; the rows are already gone by then.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	expired, err := s.store.DeleteExpiredJobs(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	for _, job := range expired {
		if err := s.files.RemoveJobFiles(job.UID, job.Paths...); err != nil {
			slog.Warn("removing expired job files failed", "job_uid", job.UID, "error", err)
		}
	}
	if len(expired) > 0 {
		s.metrics.RecordExpired(ctx, len(expired))
		slog.Info("expired jobs removed", "count", len(expired))
	}
	return len(expired), nil
}
