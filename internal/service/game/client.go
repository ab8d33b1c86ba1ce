package game

import (
	"sync"

	"github.com/iamasit07/4-in-a-row/server/internal/domain"
)

// DefaultOutboundBuffer is used when a client is created with a non-positive
// buffer size.
const DefaultOutboundBuffer = 64

// Client is one live, handshaken connection. The connection handler owns it;
// sessions and the queue only hold references.
type Client struct {
	Identity string

	outbound chan domain.Event
	kicked   chan struct{}
	done     chan struct{}

	kickOnce  sync.Once
	closeOnce sync.Once

	mu       sync.Mutex
	session  *Session
	cosmetic string
	closed   bool
}

func NewClient(identity string, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultOutboundBuffer
	}
	return &Client{
		Identity: identity,
		outbound: make(chan domain.Event, buffer),
		kicked:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Send queues an event for the writer goroutine without blocking. A client
// whose buffer is full is kicked and the event is dropped.
func (c *Client) Send(ev domain.Event) bool {
	if c.IsClosed() {
		return false
	}
	select {
	case c.outbound <- ev:
		return true
	default:
		c.kickOnce.Do(func() { close(c.kicked) })
		return false
	}
}

func (c *Client) Outbound() <-chan domain.Event {
	return c.outbound
}

// Kicked is closed when the client fell behind on its outbound buffer.
func (c *Client) Kicked() <-chan struct{} {
	return c.kicked
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close marks the client as gone. It is safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Session returns the session the client is bound to, if any. A finished
// session stays bound during its post-game window.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) Cosmetic() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cosmetic
}

func (c *Client) SetCosmetic(cosmetic string) {
	c.mu.Lock()
	c.cosmetic = cosmetic
	c.mu.Unlock()
}

// bind attaches s unless the client is closed or already bound.
func (c *Client) bind(s *Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.session != nil {
		return false
	}
	c.session = s
	return true
}

// unbind detaches s. A binding to a different session is left alone.
func (c *Client) unbind(s *Session) {
	c.mu.Lock()
	if c.session == s {
		c.session = nil
	}
	c.mu.Unlock()
}
