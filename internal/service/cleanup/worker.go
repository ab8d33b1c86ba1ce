package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// SessionExpirer ends sessions that have run longer than maxAge.
type SessionExpirer interface {
	ExpireStale(maxAge time.Duration) int
}

// IdentitySource lists the identities connected to this process.
type IdentitySource interface {
	Identities() []string
}

// PresenceRefresher extends the TTL of the presence entries of identities.
type PresenceRefresher interface {
	Refresh(ctx context.Context, identities []string) error
}

type Worker struct {
	sessions   SessionExpirer
	identities IdentitySource
	presence   PresenceRefresher
	maxAge     time.Duration
	logger     *slog.Logger
}

// NewWorker builds the worker. presence may be nil.
func NewWorker(logger *slog.Logger, sessions SessionExpirer, identities IdentitySource, presence PresenceRefresher, maxAge time.Duration) *Worker {
	return &Worker{
		sessions:   sessions,
		identities: identities,
		presence:   presence,
		maxAge:     maxAge,
		logger:     logger.With("component", "cleanup"),
	}
}

// Run cleans up once immediately and then every interval until ctx is done.
func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	w.logger.Info("background worker started", "interval", interval)

	w.RunOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce expires stale sessions and refreshes presence.
func (w *Worker) RunOnce(ctx context.Context) {
	if expired := w.sessions.ExpireStale(w.maxAge); expired > 0 {
		w.logger.Info("expired stale sessions", "count", expired)
	}

	if w.presence == nil {
		return
	}
	identities := w.identities.Identities()
	if err := w.presence.Refresh(ctx, identities); err != nil {
		w.logger.Warn("presence refresh failed", "identities", len(identities), "error", err)
	}
}
