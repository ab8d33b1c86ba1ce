package tcp

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/iamasit07/4-in-a-row/server/internal/domain"
	"github.com/iamasit07/4-in-a-row/server/internal/transport/codec"
)

// bufferedConn keeps the bytes peeked during protocol detection.
type bufferedConn struct {
	net.Conn
	reader *bufio.Reader
}

func (bc *bufferedConn) Read(p []byte) (int, error) {
	return bc.reader.Read(p)
}

// lockedWriter serialises frame writes, including the control replies the
// reader sends while the writer goroutine is active.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (lw lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

// WSConn carries one event per WebSocket message. Binary frames hold the
// protobuf encoding, text frames the JSON envelope; replies use whichever
// the client spoke first.
type WSConn struct {
	conn         net.Conn
	rw           io.ReadWriter
	mu           sync.Mutex
	text         atomic.Bool
	closeOnce    sync.Once
	writeTimeout time.Duration
}

func NewWSConn(conn net.Conn) *WSConn {
	c := &WSConn{conn: conn, writeTimeout: defaultWriteTimeout}
	c.rw = struct {
		io.Reader
		io.Writer
	}{conn, lockedWriter{mu: &c.mu, w: conn}}
	return c
}

func (c *WSConn) ReadEvent(ctx context.Context) (domain.Event, error) {
	if err := applyReadDeadline(ctx, c.conn); err != nil {
		return nil, err
	}
	data, op, err := c.readMessage()
	if err != nil {
		var closed wsutil.ClosedError
		if errors.As(err, &closed) {
			return nil, io.EOF
		}
		if errors.Is(err, wsutil.ErrFrameTooLarge) {
			_ = c.closeWith(ws.StatusMessageTooBig, "message too big")
		}
		return nil, err
	}
	if op == ws.OpText {
		c.text.Store(true)
		return codec.UnmarshalJSON(data)
	}
	return codec.Unmarshal(data)
}

// readMessage reads the next data message, answering control frames on the
// way. Messages above codec.MaxFrameSize fail with wsutil.ErrFrameTooLarge,
// whether sent whole or fragmented.
func (c *WSConn) readMessage() ([]byte, ws.OpCode, error) {
	control := wsutil.ControlFrameHandler(c.rw, ws.StateServerSide)
	rd := wsutil.Reader{
		Source:         c.rw,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		MaxFrameSize:   codec.MaxFrameSize,
		OnIntermediate: control,
	}
	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return nil, 0, err
		}
		if hdr.OpCode.IsControl() {
			if err := control(hdr, &rd); err != nil {
				return nil, 0, err
			}
			continue
		}

		data, err := io.ReadAll(io.LimitReader(&rd, codec.MaxFrameSize+1))
		if err != nil {
			return nil, 0, err
		}
		if len(data) > codec.MaxFrameSize {
			return nil, 0, wsutil.ErrFrameTooLarge
		}
		return data, hdr.OpCode, nil
	}
}

func (c *WSConn) WriteEvent(_ context.Context, ev domain.Event) error {
	op := ws.OpBinary
	encode := codec.Marshal
	if c.text.Load() {
		op = ws.OpText
		encode = codec.MarshalJSON
	}
	data, err := encode(ev)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return wsutil.WriteServerMessage(c.conn, op, data)
}

func (c *WSConn) Close() error {
	return c.closeWith(ws.StatusNormalClosure, "")
}

func (c *WSConn) closeWith(status ws.StatusCode, reason string) error {
	err := net.ErrClosed
	c.closeOnce.Do(func() {
		c.mu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = wsutil.WriteServerMessage(c.conn, ws.OpClose, ws.NewCloseFrameBody(status, reason))
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *WSConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
