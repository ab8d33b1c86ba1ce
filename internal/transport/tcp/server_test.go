package tcp

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamasit07/4-in-a-row/server/internal/domain"
	"github.com/iamasit07/4-in-a-row/server/internal/service/game"
	"github.com/iamasit07/4-in-a-row/server/internal/service/matchmaking"
	"github.com/iamasit07/4-in-a-row/server/internal/service/registry"
	"github.com/iamasit07/4-in-a-row/server/internal/transport/codec"
	"github.com/iamasit07/4-in-a-row/server/internal/transport/handler"
)

type stack struct {
	server  *Server
	queue   *matchmaking.Queue
	manager *game.SessionManager
}

func startStack(t *testing.T) *stack {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := game.NewSessionManager(logger, nil, game.Options{})
	queue := matchmaking.NewQueue(logger, manager, 0)
	reg := registry.New(logger, nil)
	h := handler.New(logger, reg, queue, nil, handler.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	go queue.Run(ctx, 10*time.Millisecond)

	srv := New("127.0.0.1:0", h, logger)
	require.NoError(t, srv.Listen())
	go srv.Serve()
	t.Cleanup(func() {
		srv.Stop()
		cancel()
	})
	return &stack{server: srv, queue: queue, manager: manager}
}

type rawClient struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dialRaw(t *testing.T, addr string) *rawClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &rawClient{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *rawClient) send(t *testing.T, ev domain.Event) {
	t.Helper()
	require.NoError(t, codec.WriteEvent(c.conn, ev))
}

func (c *rawClient) expect(t *testing.T) domain.Event {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	ev, err := codec.ReadEvent(c.reader)
	require.NoError(t, err)
	return ev
}

func TestServer_StopRefusesConnections(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New("127.0.0.1:0", handler.New(logger, registry.New(logger, nil), nil, nil, handler.Options{}), logger)
	require.NoError(t, srv.Listen())
	go srv.Serve()
	addr := srv.Addr()

	srv.Stop()

	_, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
	assert.Error(t, err)
}

func TestServer_RawMatchEndToEnd(t *testing.T) {
	// Given two raw TCP clients that complete the handshake
	st := startStack(t)
	alice := dialRaw(t, st.server.Addr())
	bob := dialRaw(t, st.server.Addr())
	alice.send(t, domain.Hello{Identity: "alice"})
	require.Equal(t, domain.Valid{}, alice.expect(t))
	bob.send(t, domain.Hello{Identity: "bob"})
	require.Equal(t, domain.Valid{}, bob.expect(t))

	// A second connection claiming alice is refused
	impostor := dialRaw(t, st.server.Addr())
	impostor.send(t, domain.Hello{Identity: "alice"})
	require.Equal(t, domain.Invalid{Reason: handler.ReasonIdentityInUse}, impostor.expect(t))

	// When both are ready, alice first
	alice.send(t, domain.Ready{Cosmetic: "earth"})
	require.Eventually(t, func() bool { return st.queue.Len() == 1 }, time.Second, 5*time.Millisecond)
	bob.send(t, domain.Ready{Cosmetic: "mars"})

	start := alice.expect(t).(domain.Start)
	assert.Equal(t, domain.Seat1, start.Seat)
	assert.Equal(t, "bob", start.OpponentIdentity)
	assert.Equal(t, domain.Seat2, bob.expect(t).(domain.Start).Seat)

	// Then a vertical four for alice wins
	for i := 0; i < 3; i++ {
		alice.send(t, domain.Move{Column: 0})
		assert.Equal(t, domain.Move{Column: 0, Row: 5 - i, Identity: "alice"}, bob.expect(t))
		alice.expect(t)
		bob.send(t, domain.Move{Column: 1})
		assert.Equal(t, domain.Move{Column: 1, Row: 5 - i, Identity: "bob"}, alice.expect(t))
		bob.expect(t)
	}
	bob.send(t, domain.Chat{Text: "uh oh"})
	assert.Equal(t, domain.Chat{Sender: "bob", Text: "uh oh"}, alice.expect(t))
	alice.send(t, domain.Move{Column: 0})

	win := domain.Win{Identity: "alice", Column: 0, Row: 2, Reason: domain.ReasonConnectFour}
	assert.Equal(t, win, alice.expect(t))
	assert.Equal(t, win, bob.expect(t))
	require.Eventually(t, func() bool { return st.manager.Count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestServer_RawDisconnectForfeits(t *testing.T) {
	st := startStack(t)
	alice := dialRaw(t, st.server.Addr())
	bob := dialRaw(t, st.server.Addr())
	alice.send(t, domain.Hello{Identity: "alice"})
	require.Equal(t, domain.Valid{}, alice.expect(t))
	bob.send(t, domain.Hello{Identity: "bob"})
	require.Equal(t, domain.Valid{}, bob.expect(t))
	alice.send(t, domain.Ready{})
	bob.send(t, domain.Ready{})
	require.IsType(t, domain.Start{}, alice.expect(t))
	require.IsType(t, domain.Start{}, bob.expect(t))

	require.NoError(t, alice.conn.Close())

	assert.Equal(t, domain.Win{Identity: "bob", Column: -1, Row: -1, Reason: domain.ReasonDisconnect}, bob.expect(t))
}

func TestServer_WebSocketUpgrade(t *testing.T) {
	st := startStack(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Binary frames carry the protobuf encoding
	conn, br, _, err := ws.Dial(ctx, "ws://"+st.server.Addr()+"/")
	require.NoError(t, err)
	defer conn.Close()
	rw := serverStream(conn, br)

	hello, err := codec.Marshal(domain.Hello{Identity: "carol"})
	require.NoError(t, err)
	require.NoError(t, wsutil.WriteClientBinary(conn, hello))
	data, err := wsutil.ReadServerBinary(rw)
	require.NoError(t, err)
	ev, err := codec.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, domain.Valid{}, ev)

	// Text frames carry the JSON envelope
	textConn, textBr, _, err := ws.Dial(ctx, "ws://"+st.server.Addr()+"/")
	require.NoError(t, err)
	defer textConn.Close()
	require.NoError(t, wsutil.WriteClientText(textConn, []byte(`{"type":"hello","identity":"dave"}`)))
	data, err = wsutil.ReadServerText(serverStream(textConn, textBr))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"valid"}`, string(data))
}

func serverStream(conn net.Conn, br *bufio.Reader) io.ReadWriter {
	var r io.Reader = conn
	if br != nil {
		r = br
	}
	return struct {
		io.Reader
		io.Writer
	}{r, conn}
}
