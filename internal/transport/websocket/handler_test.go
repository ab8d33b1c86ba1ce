package websocket

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamasit07/4-in-a-row/server/internal/service/game"
	"github.com/iamasit07/4-in-a-row/server/internal/service/matchmaking"
	"github.com/iamasit07/4-in-a-row/server/internal/service/registry"
	"github.com/iamasit07/4-in-a-row/server/internal/transport/codec"
	"github.com/iamasit07/4-in-a-row/server/internal/transport/handler"
)

func newServer(t *testing.T, origins []string) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := game.NewSessionManager(logger, nil, game.Options{})
	queue := matchmaking.NewQueue(logger, manager, 0)
	h := handler.New(logger, registry.New(logger, nil), queue, nil, handler.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	go queue.Run(ctx, 10*time.Millisecond)

	router := gin.New()
	router.GET("/ws", NewHandler(ctx, h, origins, logger).HandleWebSocket)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) codec.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env codec.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestHandleWebSocket_MatchFlow(t *testing.T) {
	srv := newServer(t, nil)
	alice := dial(t, srv, nil)
	bob := dial(t, srv, nil)

	require.NoError(t, alice.WriteJSON(map[string]any{"type": "hello", "identity": "alice"}))
	assert.Equal(t, "valid", readEnvelope(t, alice).Type)
	require.NoError(t, bob.WriteJSON(map[string]any{"type": "hello", "identity": "bob"}))
	assert.Equal(t, "valid", readEnvelope(t, bob).Type)

	require.NoError(t, alice.WriteJSON(map[string]any{"type": "ready", "cosmetic": "earth"}))
	require.NoError(t, bob.WriteJSON(map[string]any{"type": "ready", "cosmetic": "mars"}))

	aliceStart := readEnvelope(t, alice)
	bobStart := readEnvelope(t, bob)
	assert.Equal(t, "start", aliceStart.Type)
	assert.Equal(t, "bob", aliceStart.Opponent)
	assert.Equal(t, "alice", bobStart.Opponent)
	assert.ElementsMatch(t, []int{1, 2}, []int{aliceStart.Seat, bobStart.Seat})

	first, second := alice, bob
	firstName := "alice"
	if bobStart.Seat == 1 {
		first, second, firstName = bob, alice, "bob"
	}
	require.NoError(t, first.WriteJSON(map[string]any{"type": "move", "column": 0}))

	for _, conn := range []*websocket.Conn{first, second} {
		move := readEnvelope(t, conn)
		assert.Equal(t, "move", move.Type)
		assert.Equal(t, firstName, move.Identity)
		require.NotNil(t, move.Column)
		require.NotNil(t, move.Row)
		assert.Equal(t, 0, *move.Column)
		assert.Equal(t, 5, *move.Row)
	}
}

func TestHandleWebSocket_DuplicateIdentity(t *testing.T) {
	srv := newServer(t, nil)
	first := dial(t, srv, nil)
	require.NoError(t, first.WriteJSON(map[string]any{"type": "hello", "identity": "alice"}))
	require.Equal(t, "valid", readEnvelope(t, first).Type)

	second := dial(t, srv, nil)
	require.NoError(t, second.WriteJSON(map[string]any{"type": "hello", "identity": "alice"}))

	env := readEnvelope(t, second)
	assert.Equal(t, "invalid", env.Type)
	assert.Equal(t, handler.ReasonIdentityInUse, env.Reason)
}

func TestHandleWebSocket_RejectsUnknownOrigin(t *testing.T) {
	srv := newServer(t, []string{"https://play.example.com"})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example.com"}})

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	dial(t, srv, http.Header{"Origin": []string{"https://play.example.com"}})
}
