package ledger

import (
	"context"
	"time"

	"agentplane/internal/logger"
)

// RunFlusher periodically drains the Redis fast path into the durable
// store until ctx is cancelled. A no-op when the ledger has no Redis
// client configured.
func (l *Ledger) RunFlusher(ctx context.Context, interval time.Duration) {
	if l.redis == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.Info("[Ledger] flusher started, interval=%s", interval)
	for {
		select {
		case <-ctx.Done():
			// Best-effort final flush so a graceful shutdown doesn't
			// strand counters in Redis until the next process start.
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := l.Flush(flushCtx); err != nil {
				logger.Error("[Ledger] final flush failed: %v", err)
			}
			cancel()
			return
		case <-ticker.C:
			if err := l.Flush(ctx); err != nil {
				logger.Error("[Ledger] flush failed: %v", err)
			}
		}
	}
}
