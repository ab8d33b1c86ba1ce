package websocket

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iamasit07/4-in-a-row/server/internal/domain"
	"github.com/iamasit07/4-in-a-row/server/internal/transport/codec"
)

const (
	pongWait     = 60 * time.Second
	pingPeriod   = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// Conn carries JSON envelopes over a gorilla WebSocket connection.
type Conn struct {
	ws         *websocket.Conn
	remoteAddr string

	// writeMu serialises data frames with the pinger's control frames.
	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

// NewConn wraps ws and starts its keep-alive pinger.
func NewConn(ws *websocket.Conn, remoteAddr string) *Conn {
	c := &Conn{ws: ws, remoteAddr: remoteAddr, done: make(chan struct{})}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	go c.pingLoop()
	return c
}

func (c *Conn) ReadEvent(ctx context.Context) (domain.Event, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(pongWait)
	}
	if err := c.ws.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, err
	}
	return codec.UnmarshalJSON(data)
}

func (c *Conn) WriteEvent(_ context.Context, ev domain.Event) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteJSON(codec.ToEnvelope(ev))
}

func (c *Conn) Close() error {
	err := errors.New("connection already closed")
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
