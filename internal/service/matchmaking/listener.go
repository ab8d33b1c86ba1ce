package matchmaking

import (
	"context"
	"time"
)

const DefaultPairInterval = 100 * time.Millisecond

// Run pairs waiting clients whenever someone enqueues and on every tick,
// until ctx is done.
func (q *Queue) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPairInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	q.logger.Info("matchmaking started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			q.logger.Info("matchmaking stopped")
			return
		case <-q.notify:
			q.PairWaiting()
		case <-ticker.C:
			q.ExpireWaiting()
			q.PairWaiting()
		}
	}
}
