package matchmaking

import (
	"log/slog"
	"sync"
	"time"

	"github.com/iamasit07/4-in-a-row/server/internal/domain"
	"github.com/iamasit07/4-in-a-row/server/internal/service/game"
)

// SessionFactory seats two waiting clients in a new session. The first
// client takes seat 1.
type SessionFactory interface {
	CreateSession(p1, p2 *game.Client) (*game.Session, error)
}

// Fallback may seat a client whose wait timed out. It runs under the queue
// lock and reports whether the client was seated.
type Fallback func(c *game.Client) bool

type entry struct {
	client   *game.Client
	queuedAt time.Time
}

// Queue holds clients waiting for an opponent in arrival order.
type Queue struct {
	waiting []entry
	mu      sync.Mutex

	factory  SessionFactory
	fallback Fallback
	timeout  time.Duration
	notify   chan struct{}
	logger   *slog.Logger
}

// NewQueue builds an empty queue. A zero timeout lets clients wait forever.
func NewQueue(logger *slog.Logger, factory SessionFactory, timeout time.Duration) *Queue {
	return &Queue{
		factory: factory,
		timeout: timeout,
		notify:  make(chan struct{}, 1),
		logger:  logger.With("component", "matchmaking"),
	}
}

// SetFallback installs f for clients that time out. Call it before Run.
func (q *Queue) SetFallback(f Fallback) {
	q.mu.Lock()
	q.fallback = f
	q.mu.Unlock()
}

// Enqueue appends c unless it is closed, already waiting or still bound to a
// session. The binding is checked under the queue lock so a pairing cannot
// land between the check and the append.
func (q *Queue) Enqueue(c *game.Client) bool {
	q.mu.Lock()
	if !available(c) || q.indexLocked(c) >= 0 {
		q.mu.Unlock()
		return false
	}
	q.waiting = append(q.waiting, entry{client: c, queuedAt: time.Now()})
	size := len(q.waiting)
	q.mu.Unlock()

	q.logger.Debug("client queued", "identity", c.Identity, "waiting", size)
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

func (q *Queue) Remove(c *game.Client) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(c)
	if i < 0 {
		return false
	}
	q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
	return true
}

func (q *Queue) Contains(c *game.Client) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.indexLocked(c) >= 0
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// PairWaiting seats the oldest waiting clients two at a time and returns how
// many sessions it created. The lock is held across the availability check
// and the binding so a disconnecting client is either skipped or already
// seated. A pair the factory refuses keeps its place; the older entry is held
// aside and the rest of the queue is still paired.
func (q *Queue) PairWaiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.dropUnavailableLocked()

	paired := 0
	var held []entry
	for len(q.waiting) >= 2 {
		first, second := q.waiting[0], q.waiting[1]
		q.waiting = q.waiting[2:]

		session, err := q.factory.CreateSession(first.client, second.client)
		if err == nil {
			paired++
			q.logger.Info("match found", "session", session.ID,
				"seat1", first.client.Identity, "seat2", second.client.Identity)
			continue
		}

		var back []entry
		for _, e := range []entry{first, second} {
			if available(e.client) {
				back = append(back, e)
			}
		}
		switch len(back) {
		case 2:
			q.logger.Error("pairing failed", "seat1", first.client.Identity, "seat2", second.client.Identity, "error", err)
			held = append(held, back[0])
			q.waiting = append([]entry{back[1]}, q.waiting...)
		case 1:
			q.waiting = append(back, q.waiting...)
		}
	}
	q.waiting = append(held, q.waiting...)
	return paired
}

// ExpireWaiting drops clients that waited longer than the timeout. Each is
// offered to the fallback first and told QueueTimeout when it is not seated.
func (q *Queue) ExpireWaiting() int {
	if q.timeout <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-q.timeout)

	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.waiting[:0]
	expired := 0
	for _, e := range q.waiting {
		if e.queuedAt.Before(cutoff) {
			expired++
			if !available(e.client) {
				continue
			}
			if q.fallback != nil && q.fallback(e.client) {
				q.logger.Info("matchmaking fallback", "identity", e.client.Identity)
				continue
			}
			e.client.Send(domain.QueueTimeout{})
			continue
		}
		kept = append(kept, e)
	}
	q.waiting = kept
	if expired > 0 {
		q.logger.Info("matchmaking timeout", "expired", expired)
	}
	return expired
}

func (q *Queue) dropUnavailableLocked() {
	kept := q.waiting[:0]
	for _, e := range q.waiting {
		if available(e.client) {
			kept = append(kept, e)
		}
	}
	q.waiting = kept
}

func (q *Queue) indexLocked(c *game.Client) int {
	for i, e := range q.waiting {
		if e.client == c {
			return i
		}
	}
	return -1
}

// available reports whether c can be handed to a new session.
func available(c *game.Client) bool {
	return !c.IsClosed() && c.Session() == nil
}
