package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/iamasit07/4-in-a-row/server/internal/domain"
	"github.com/iamasit07/4-in-a-row/server/internal/service/game"
	"github.com/iamasit07/4-in-a-row/server/internal/service/matchmaking"
	"github.com/iamasit07/4-in-a-row/server/internal/service/registry"
	"github.com/iamasit07/4-in-a-row/server/internal/transport/codec"
)

// Transport is one framed, bidirectional event stream. ReadEvent and
// WriteEvent are each called from a single goroutine.
type Transport interface {
	ReadEvent(ctx context.Context) (domain.Event, error)
	WriteEvent(ctx context.Context, ev domain.Event) error
	Close() error
	RemoteAddr() string
}

// TokenVerifier resolves a login token to the username it was issued for.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

const (
	ReasonExpectedHello   = "expected hello"
	ReasonInvalidIdentity = "invalid identity"
	ReasonIdentityInUse   = "identity in use"
	ReasonUnauthorized    = "authentication failed"
)

const defaultHandshakeTimeout = 10 * time.Second

type Options struct {
	RequireAuth      bool
	OutboundBuffer   int
	HandshakeTimeout time.Duration
}

// Handler drives one connection from handshake to disconnect.
type Handler struct {
	registry *registry.Registry
	queue    *matchmaking.Queue
	verifier TokenVerifier
	opts     Options
	logger   *slog.Logger
}

// New builds a handler. verifier may be nil unless RequireAuth is set.
func New(logger *slog.Logger, reg *registry.Registry, queue *matchmaking.Queue, verifier TokenVerifier, opts Options) *Handler {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	return &Handler{
		registry: reg,
		queue:    queue,
		verifier: verifier,
		opts:     opts,
		logger:   logger.With("component", "handler"),
	}
}

// Serve runs the connection until the peer goes away or ctx is done. It
// always closes t.
func (h *Handler) Serve(ctx context.Context, t Transport) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		t.Close()
	}()

	logger := h.logger.With("remote", t.RemoteAddr())

	client, err := h.handshake(ctx, t)
	if err != nil {
		logger.Info("handshake rejected", "error", err)
		t.Close()
		return
	}
	logger = logger.With("identity", client.Identity)
	logger.Info("client connected")

	writerDone := make(chan struct{})
	go h.writeLoop(ctx, t, client, logger, writerDone)

	for {
		ev, err := t.ReadEvent(ctx)
		if errors.Is(err, codec.ErrMalformed) {
			logger.Debug("protocol error: undecodable event", "error", err)
			continue
		}
		if err != nil {
			if isClosed(err) {
				logger.Info("client disconnected")
			} else {
				logger.Warn("read failed", "error", err)
			}
			break
		}
		h.dispatch(client, ev, logger)
	}

	h.disconnect(client)
	t.Close()
	<-writerDone
}

func (h *Handler) handshake(ctx context.Context, t Transport) (*game.Client, error) {
	hsCtx, cancel := context.WithTimeout(ctx, h.opts.HandshakeTimeout)
	defer cancel()

	ev, err := t.ReadEvent(hsCtx)
	if err != nil {
		return nil, err
	}
	hello, ok := ev.(domain.Hello)
	if !ok {
		h.reject(hsCtx, t, ReasonExpectedHello)
		return nil, errors.New("first event was " + ev.Kind().String())
	}

	if h.opts.RequireAuth {
		if h.verifier == nil {
			h.reject(hsCtx, t, ReasonUnauthorized)
			return nil, errors.New("no token verifier configured")
		}
		username, err := h.verifier.VerifyToken(hello.Token)
		if err != nil || username != hello.Identity {
			h.reject(hsCtx, t, ReasonUnauthorized)
			return nil, errors.New("token does not match identity")
		}
	}

	client := game.NewClient(hello.Identity, h.opts.OutboundBuffer)
	if err := h.registry.Register(hello.Identity, client); err != nil {
		reason := ReasonInvalidIdentity
		if errors.Is(err, registry.ErrIdentityInUse) {
			reason = ReasonIdentityInUse
		}
		h.reject(hsCtx, t, reason)
		return nil, err
	}

	// Valid goes through the outbound channel so it precedes anything a
	// session or the queue sends.
	client.Send(domain.Valid{})
	return client, nil
}

func (h *Handler) reject(ctx context.Context, t Transport, reason string) {
	if err := t.WriteEvent(ctx, domain.Invalid{Reason: reason}); err != nil {
		h.logger.Debug("failed to send invalid", "error", err)
	}
}

func (h *Handler) writeLoop(ctx context.Context, t Transport, c *game.Client, logger *slog.Logger, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case ev := <-c.Outbound():
			if err := t.WriteEvent(ctx, ev); err != nil {
				logger.Debug("write failed", "error", err)
				t.Close()
				return
			}
		case <-c.Kicked():
			logger.Warn("outbound buffer full, dropping client")
			t.Close()
			return
		case <-c.Done():
			return
		}
	}
}

func (h *Handler) dispatch(c *game.Client, ev domain.Event, logger *slog.Logger) {
	switch ev := ev.(type) {
	case domain.Ready:
		h.handleReady(c, ev, logger)
	case domain.Move:
		s := c.Session()
		if s == nil {
			logger.Debug("protocol error: move without session")
			return
		}
		if err := s.ApplyMove(c.Identity, ev.Column); err != nil {
			logger.Debug("move ignored", "column", ev.Column, "error", err)
		}
	case domain.Chat:
		s := c.Session()
		if s == nil {
			logger.Debug("protocol error: chat without session")
			return
		}
		if err := s.RelayChat(c.Identity, ev.Text); err != nil {
			logger.Debug("chat ignored", "error", err)
		}
	case domain.Select:
		s := c.Session()
		if s == nil {
			logger.Debug("protocol error: select without session")
			return
		}
		if err := s.RelayCosmetic(c.Identity, ev.Cosmetic); err != nil {
			logger.Debug("select ignored", "error", err)
		}
	case domain.Hello, domain.Valid, domain.Invalid, domain.Start, domain.Win, domain.Draw, domain.QueueTimeout:
		logger.Debug("protocol error: unexpected event", "kind", ev.Kind().String())
	default:
		logger.Debug("protocol error: unknown event", "kind", ev.Kind().String())
	}
}

func (h *Handler) handleReady(c *game.Client, ev domain.Ready, logger *slog.Logger) {
	if s := c.Session(); s != nil {
		if err := s.Release(c); err != nil {
			logger.Debug("protocol error: ready during a match", "session", s.ID)
			return
		}
	}
	c.SetCosmetic(ev.Cosmetic)
	if !h.queue.Enqueue(c) {
		logger.Debug("not queued: already waiting or still seated")
	}
}

// disconnect tears a client down in lock order: the queue first, so a
// pairing in flight either skips the client or has already bound it.
func (h *Handler) disconnect(c *game.Client) {
	c.Close()
	h.queue.Remove(c)
	if s := c.Session(); s != nil {
		s.HandleDisconnect(c.Identity)
	}
	h.registry.UnregisterIfMatching(c.Identity, c)
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
