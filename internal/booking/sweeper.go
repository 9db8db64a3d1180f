package booking

import (
	"context"
	"time"
)

// RunSweeper completes elapsed bookings and reconciles dirty models every
// interval until ctx is cancelled. One pass runs immediately.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.sweepOnce(ctx)
		select {
		case <-ctx.Done():
			m.log.Info("sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

func (m *Manager) sweepOnce(ctx context.Context) {
	n, err := m.SweepElapsed(ctx)
	if err != nil {
		m.log.Warn("sweep failed", "completed", n, "error", err)
	} else if n > 0 {
		m.log.Info("sweep completed bookings", "completed", n)
	}

	r, err := m.Reconcile(ctx)
	if err != nil {
		m.log.Warn("reconcile failed", "rebuilt", r, "error", err)
	} else if r > 0 {
		m.log.Info("reconciled availability index", "models", r)
	}
}
