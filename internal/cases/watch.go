package cases

import (
	"context"
	"time"

	"assessment-backend/internal/shared/telemetry"
)

const defaultWatchInterval = 5 * time.Second

// Watcher polls the case list for observers; there is no push channel.
type Watcher struct {
	Repo     Repo
	Interval time.Duration
}

// Subscribe calls fn with the full case list of moduleType immediately and
// then on every tick until ctx is done. A failed fetch is logged and skipped.
func (w *Watcher) Subscribe(ctx context.Context, moduleType string, fn func([]AssessmentCase)) {
	interval := w.Interval
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		list, err := w.Repo.List(ctx, moduleType)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			telemetry.Warn("case.watch_fetch_failed", map[string]any{"module_type": moduleType, "err": err})
		} else {
			fn(list)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
