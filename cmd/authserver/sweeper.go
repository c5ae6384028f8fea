package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/authkit/pkg/logger"
	"github.com/dmitrymomot/authkit/pkg/storage"
)

// sweepSessions deletes expired sessions every interval until ctx is done.
func sweepSessions(ctx context.Context, s storage.Sweeper, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.DeleteExpiredSessions(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.ErrorContext(ctx, "session sweep failed", logger.Error(err))
				}
				continue
			}
			if n > 0 {
				log.InfoContext(ctx, "expired sessions removed", slog.Int64("count", n))
			}
		}
	}
}
