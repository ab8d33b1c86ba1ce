// Package tcp serves the game protocol on a raw TCP port, upgrading
// connections that open with an HTTP GET to WebSocket.
package tcp

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/iamasit07/4-in-a-row/server/internal/domain"
	"github.com/iamasit07/4-in-a-row/server/internal/transport/codec"
)

const defaultWriteTimeout = 10 * time.Second

// Conn carries length-prefixed binary events over a raw TCP connection.
type Conn struct {
	conn         net.Conn
	reader       *bufio.Reader
	writeTimeout time.Duration
}

// NewConn wraps conn. reader may hold bytes already peeked from conn; pass
// nil to read from conn directly.
func NewConn(conn net.Conn, reader *bufio.Reader) *Conn {
	if reader == nil {
		reader = bufio.NewReader(conn)
	}
	return &Conn{conn: conn, reader: reader, writeTimeout: defaultWriteTimeout}
}

func (c *Conn) ReadEvent(ctx context.Context) (domain.Event, error) {
	if err := applyReadDeadline(ctx, c.conn); err != nil {
		return nil, err
	}
	return codec.ReadEvent(c.reader)
}

func (c *Conn) WriteEvent(_ context.Context, ev domain.Event) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return codec.WriteEvent(c.conn, ev)
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// applyReadDeadline mirrors the context deadline onto conn, clearing any
// previous one when ctx has none.
func applyReadDeadline(ctx context.Context, conn net.Conn) error {
	deadline, _ := ctx.Deadline()
	return conn.SetReadDeadline(deadline)
}
