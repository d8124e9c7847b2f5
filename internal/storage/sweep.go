package storage

import (
	"context"
	"log/slog"
	"time"
)

// RunSweeper removes expired entries every interval until ctx is done.
// A non-positive interval disables it; reads still evict lazily.
func RunSweeper(ctx context.Context, s Store, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		return
	}
	if log == nil {
		log = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				log.Warn("cache sweep failed", "error", err)
				continue
			}
			if n > 0 {
				log.Debug("cache sweep", "removed", n)
			}
		}
	}
}
