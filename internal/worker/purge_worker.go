// Package worker runs background maintenance for the dashboard.
package worker

import (
	"context"
	"fmt"
	"time"

	"expensedash/internal/backend"
	"expensedash/internal/log"
)

// PurgeWorker removes persisted sessions nobody has touched for longer
// than the retention period.
type PurgeWorker struct {
	purger    backend.Purger
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	logger    *log.Logger
}

type Option func(*PurgeWorker)

func WithClock(now func() time.Time) Option {
	return func(w *PurgeWorker) { w.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(w *PurgeWorker) { w.logger = l.WithComponent(log.ComponentStorage) }
}

func NewPurgeWorker(purger backend.Purger, retention, interval time.Duration, opts ...Option) *PurgeWorker {
	w := &PurgeWorker{
		purger:    purger,
		retention: retention,
		interval:  interval,
		now:       time.Now,
		logger:    log.Discard(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.interval <= 0 {
		w.interval = time.Hour
	}
	return w
}

// PurgeOnce drops everything older than the retention period.
func (w *PurgeWorker) PurgeOnce(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.retention)
	n, err := w.purger.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge sessions before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if n > 0 {
		w.logger.InfoContext(ctx, "Purged stale sessions",
			"count", n,
			"cutoff", cutoff.Format(time.RFC3339))
	}
	return n, nil
}

// Run purges at startup and then every interval until ctx is done.
func (w *PurgeWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.PurgeOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.WarnContext(ctx, "Session purge failed", log.FieldError, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
