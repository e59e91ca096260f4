package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// StartPendingReporter counts unacknowledged feedback every interval and
// passes the number to report. It stops when ctx is done.
func StartPendingReporter(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	report func(pending int64),
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				var pending int64
				err := db.QueryRowContext(ctx, `
                    SELECT COUNT(*) FROM feedback
                     WHERE acknowledged = false
                `).Scan(&pending)
				if err != nil {
					if ctx.Err() == nil {
						log.Error("failed to count pending feedback", zap.Error(err))
					}
					continue
				}
				report(pending)
			}
		}
	}()
}
