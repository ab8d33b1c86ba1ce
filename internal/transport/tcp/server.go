package tcp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"

	"github.com/iamasit07/4-in-a-row/server/internal/transport/handler"
)

const sniffTimeout = 10 * time.Second

// ConnHandler serves one transport until it closes.
type ConnHandler interface {
	Serve(ctx context.Context, t handler.Transport)
}

// Server accepts connections on one port and serves each with the game
// handler, raw or WebSocket depending on the opening bytes.
type Server struct {
	address  string
	listener net.Listener
	handler  ConnHandler
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(address string, h ConnHandler, logger *slog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		address: address,
		handler: h,
		logger:  logger.With("component", "tcp"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Listen binds the address. Addr is valid once it returns.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}
	s.listener = listener
	s.logger.Info("TCP server started", "addr", listener.Addr().String())
	return nil
}

// Serve accepts connections until Stop is called.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("failed to accept connection", "error", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// Start listens and serves.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Stop closes the listener, ends every connection and waits for them.
func (s *Server) Stop() {
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
}

func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleConnection(conn net.Conn) {
	reader := bufio.NewReader(conn)

	_ = conn.SetReadDeadline(time.Now().Add(sniffTimeout))
	prefix, err := reader.Peek(4)
	if err != nil {
		s.logger.Debug("failed to peek connection", "remote", conn.RemoteAddr().String(), "error", err)
		conn.Close()
		return
	}

	if bytes.Equal(prefix, []byte("GET ")) {
		buffered := &bufferedConn{Conn: conn, reader: reader}
		if _, err := ws.Upgrade(buffered); err != nil {
			s.logger.Debug("websocket upgrade failed", "remote", conn.RemoteAddr().String(), "error", err)
			conn.Close()
			return
		}
		_ = conn.SetReadDeadline(time.Time{})
		s.handler.Serve(s.ctx, NewWSConn(buffered))
		return
	}

	_ = conn.SetReadDeadline(time.Time{})
	s.handler.Serve(s.ctx, NewConn(conn, reader))
}
