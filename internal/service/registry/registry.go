package registry

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iamasit07/4-in-a-row/server/internal/domain"
	"github.com/iamasit07/4-in-a-row/server/internal/service/game"
)

var (
	ErrIdentityInUse   = errors.New("identity already connected")
	ErrInvalidIdentity = errors.New("invalid identity")
)

const presenceTimeout = 2 * time.Second

// Presence mirrors who is online into a shared store.
type Presence interface {
	MarkOnline(ctx context.Context, identity string) error
	MarkOffline(ctx context.Context, identity string) error
}

// Registry maps identities to their live client. At most one client per
// identity.
type Registry struct {
	clients  map[string]*game.Client
	mu       sync.RWMutex
	presence Presence
	logger   *slog.Logger
}

// New builds an empty registry. presence may be nil.
func New(logger *slog.Logger, presence Presence) *Registry {
	return &Registry{
		clients:  make(map[string]*game.Client),
		presence: presence,
		logger:   logger.With("component", "registry"),
	}
}

func ValidateIdentity(identity string) error {
	if strings.TrimSpace(identity) == "" || len(identity) > domain.MaxIdentityLength ||
		strings.EqualFold(identity, domain.BotIdentity) {
		return ErrInvalidIdentity
	}
	return nil
}

func (r *Registry) Register(identity string, c *game.Client) error {
	if err := ValidateIdentity(identity); err != nil {
		return err
	}

	r.mu.Lock()
	if _, exists := r.clients[identity]; exists {
		r.mu.Unlock()
		return ErrIdentityInUse
	}
	r.clients[identity] = c
	r.mu.Unlock()

	r.mirror(identity, true)
	return nil
}

// Unregister drops the mapping for identity. Unknown identities are ignored.
func (r *Registry) Unregister(identity string) {
	r.mu.Lock()
	_, exists := r.clients[identity]
	delete(r.clients, identity)
	r.mu.Unlock()

	if exists {
		r.mirror(identity, false)
	}
}

// UnregisterIfMatching removes identity only while it still maps to c, so a
// stale cleanup never evicts a newer connection.
func (r *Registry) UnregisterIfMatching(identity string, c *game.Client) bool {
	r.mu.Lock()
	current, exists := r.clients[identity]
	if !exists || current != c {
		r.mu.Unlock()
		return false
	}
	delete(r.clients, identity)
	r.mu.Unlock()

	r.mirror(identity, false)
	return true
}

func (r *Registry) Lookup(identity string) (*game.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[identity]
	return c, ok
}

// IsConnected reports whether identity has a live connection on this server.
func (r *Registry) IsConnected(_ context.Context, identity string) (bool, error) {
	_, ok := r.Lookup(identity)
	return ok, nil
}

// Identities returns the connected identities in sorted order.
func (r *Registry) Identities() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.clients))
	for identity := range r.clients {
		out = append(out, identity)
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *Registry) mirror(identity string, online bool) {
	if r.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()

	var err error
	if online {
		err = r.presence.MarkOnline(ctx, identity)
	} else {
		err = r.presence.MarkOffline(ctx, identity)
	}
	if err != nil {
		r.logger.Warn("presence update failed", "identity", identity, "online", online, "error", err)
	}
}
