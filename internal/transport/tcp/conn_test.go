package tcp

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamasit07/4-in-a-row/server/internal/domain"
	"github.com/iamasit07/4-in-a-row/server/internal/transport/codec"
	"github.com/iamasit07/4-in-a-row/server/internal/transport/handler"
)

func TestConn_ImplementsTransport(t *testing.T) {
	var _ handler.Transport = (*Conn)(nil)
	var _ handler.Transport = (*WSConn)(nil)
}

func TestConn_ReadEvent(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	conn := NewConn(server, nil)

	go func() {
		_ = codec.WriteEvent(client, domain.Move{Column: 4})
	}()

	ev, err := conn.ReadEvent(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.Move{Column: 4}, ev)
}

func TestConn_WriteEvent(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	conn := NewConn(server, nil)

	go func() {
		_ = conn.WriteEvent(context.Background(), domain.Chat{Sender: "bob", Text: "hi"})
	}()

	ev, err := codec.ReadEvent(bufio.NewReader(client))
	require.NoError(t, err)
	assert.Equal(t, domain.Chat{Sender: "bob", Text: "hi"}, ev)
}

func TestConn_ReadHonoursContextDeadline(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	conn := NewConn(server, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := conn.ReadEvent(ctx)

	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestWSConn_RejectsOversizedMessage(t *testing.T) {
	// Given
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	conn := NewWSConn(server)

	errs := make(chan error, 1)
	go func() {
		_, err := conn.ReadEvent(context.Background())
		errs <- err
	}()

	// When
	header := ws.Header{
		Fin:    true,
		OpCode: ws.OpBinary,
		Length: codec.MaxFrameSize + 1,
		Masked: true,
		Mask:   ws.NewMask(),
	}
	require.NoError(t, ws.WriteHeader(client, header))

	// Then
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	frame, err := ws.ReadFrame(client)
	require.NoError(t, err)
	assert.Equal(t, ws.OpClose, frame.Header.OpCode)
	code, _ := ws.ParseCloseFrameData(frame.Payload)
	assert.Equal(t, ws.StatusMessageTooBig, code)
	assert.ErrorIs(t, <-errs, wsutil.ErrFrameTooLarge)
}

func TestWSConn_ReadsMessageWithinLimit(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	conn := NewWSConn(server)

	payload, err := codec.Marshal(domain.Move{Column: 2})
	require.NoError(t, err)
	go func() {
		_ = wsutil.WriteClientBinary(client, payload)
	}()

	ev, err := conn.ReadEvent(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.Move{Column: 2}, ev)
}
