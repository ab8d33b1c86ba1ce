package game

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/iamasit07/4-in-a-row/server/pkg/uid"
)

var ErrClientUnavailable = errors.New("client closed or already in a session")

const saveTimeout = 10 * time.Second

// ResultRecorder persists finished matches. Failures are logged and never
// reach gameplay.
type ResultRecorder interface {
	SaveResult(ctx context.Context, result Result) error
}

// SessionManager tracks the active sessions and which identity plays in
// which one.
type SessionManager struct {
	sessions   map[string]*Session // session id -> session
	byIdentity map[string]string   // identity -> session id
	mu         sync.RWMutex

	recorder ResultRecorder
	opts     Options
	logger   *slog.Logger
	saves    sync.WaitGroup
}

func NewSessionManager(logger *slog.Logger, recorder ResultRecorder, opts Options) *SessionManager {
	return &SessionManager{
		sessions:   make(map[string]*Session),
		byIdentity: make(map[string]string),
		recorder:   recorder,
		opts:       opts,
		logger:     logger.With("component", "sessions"),
	}
}

// CreateSession seats p1 first and p2 second, binds both clients and sends
// each of them Start. Nothing is bound if either client is unavailable.
func (sm *SessionManager) CreateSession(p1, p2 *Client) (*Session, error) {
	if p1 == p2 || p1.Identity == p2.Identity {
		return nil, ErrClientUnavailable
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	session := newSession(uid.NewSessionID(), p1, p2, sm.opts, sm.logger, sm.finish)

	// Start is queued before the session lock is released, so a seat that
	// leaves right after binding still sees Start ahead of its forfeit.
	session.mu.Lock()
	defer session.mu.Unlock()
	if !p1.bind(session) {
		return nil, ErrClientUnavailable
	}
	if !p2.bind(session) {
		p1.unbind(session)
		return nil, ErrClientUnavailable
	}
	sm.sessions[session.ID] = session
	sm.byIdentity[p1.Identity] = session.ID
	sm.byIdentity[p2.Identity] = session.ID

	session.startLocked()
	return session, nil
}

func (sm *SessionManager) GetSession(id string) (*Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	s, ok := sm.sessions[id]
	return s, ok
}

func (sm *SessionManager) GetSessionByIdentity(identity string) (*Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	id, ok := sm.byIdentity[identity]
	if !ok {
		return nil, false
	}
	s, ok := sm.sessions[id]
	return s, ok
}

func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// ActiveSessions lists live sessions, oldest first.
func (sm *SessionManager) ActiveSessions() []Summary {
	sm.mu.RLock()
	sessions := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		sessions = append(sessions, s)
	}
	sm.mu.RUnlock()

	out := make([]Summary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ExpireStale ends every active session created more than maxAge ago and
// returns how many it expired.
func (sm *SessionManager) ExpireStale(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-maxAge)

	sm.mu.RLock()
	var stale []*Session
	for _, s := range sm.sessions {
		if s.CreatedAt().Before(cutoff) {
			stale = append(stale, s)
		}
	}
	sm.mu.RUnlock()

	count := 0
	for _, s := range stale {
		if s.Expire() {
			count++
		}
	}
	return count
}

// Wait blocks until pending result saves complete.
func (sm *SessionManager) Wait() {
	sm.saves.Wait()
}

func (sm *SessionManager) finish(result Result) {
	sm.mu.Lock()
	if _, ok := sm.sessions[result.SessionID]; ok {
		delete(sm.sessions, result.SessionID)
		for _, identity := range []string{result.Seat1, result.Seat2} {
			if sm.byIdentity[identity] == result.SessionID {
				delete(sm.byIdentity, identity)
			}
		}
	}
	sm.mu.Unlock()

	sm.logger.Info("session finished",
		"session", result.SessionID, "winner", result.Winner, "reason", result.Reason, "moves", result.Moves)

	if sm.recorder == nil {
		return
	}
	sm.saves.Add(1)
	go func() {
		defer sm.saves.Done()
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := sm.recorder.SaveResult(ctx, result); err != nil {
			sm.logger.Error("saving result failed", "session", result.SessionID, "error", err)
		}
	}()
}
