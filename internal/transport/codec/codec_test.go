package codec

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/iamasit07/4-in-a-row/server/internal/domain"
)

func TestMarshal_ForfeitKeepsNegativeCell(t *testing.T) {
	ev := domain.Win{Identity: "alice", Column: -1, Row: -1, Reason: domain.ReasonDisconnect}

	data, err := Marshal(ev)
	require.NoError(t, err)
	got, err := Unmarshal(data)

	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestMarshal_MoveInColumnZero(t *testing.T) {
	data, err := Marshal(domain.Move{Column: 0})
	require.NoError(t, err)

	got, err := Unmarshal(data)

	require.NoError(t, err)
	assert.Equal(t, domain.Move{Column: 0}, got)
}

func TestMarshal_StartCarriesSeatAndOpponent(t *testing.T) {
	ev := domain.Start{SessionID: "s-1", OpponentIdentity: "bob", OpponentCosmetic: "mars", Seat: domain.Seat2}

	data, err := Marshal(ev)
	require.NoError(t, err)
	got, err := Unmarshal(data)

	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestUnmarshal_MoveWithoutColumn(t *testing.T) {
	data := protowire.AppendTag(nil, fieldKind, protowire.VarintType)
	data = protowire.AppendVarint(data, uint64(domain.KindMove))

	_, err := Unmarshal(data)

	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestUnmarshal_SkipsUnknownFields(t *testing.T) {
	data := protowire.AppendTag(nil, 99, protowire.BytesType)
	data = protowire.AppendString(data, "ignored")
	data = protowire.AppendTag(data, fieldKind, protowire.VarintType)
	data = protowire.AppendVarint(data, uint64(domain.KindChat))
	data = protowire.AppendTag(data, fieldText, protowire.BytesType)
	data = protowire.AppendString(data, "hi")

	got, err := Unmarshal(data)

	require.NoError(t, err)
	assert.Equal(t, domain.Chat{Text: "hi"}, got)
}

func TestUnmarshal_Errors(t *testing.T) {
	unknown := protowire.AppendTag(nil, fieldKind, protowire.VarintType)
	unknown = protowire.AppendVarint(unknown, 250)
	_, err := Unmarshal(unknown)
	assert.ErrorIs(t, err, ErrUnknownKind)

	truncated := protowire.AppendTag(nil, fieldIdentity, protowire.BytesType)
	truncated = protowire.AppendVarint(truncated, 10)
	_, err = Unmarshal(truncated)
	assert.Error(t, err)

	_, err = Unmarshal(nil)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestFrame_ConsecutiveEvents(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteEvent(&buf, domain.Hello{Identity: "alice"}))
	require.NoError(t, WriteEvent(&buf, domain.Ready{Cosmetic: "earth"}))

	r := bufio.NewReader(&buf)
	first, err := ReadEvent(r)
	require.NoError(t, err)
	second, err := ReadEvent(r)
	require.NoError(t, err)

	assert.Equal(t, domain.Hello{Identity: "alice"}, first)
	assert.Equal(t, domain.Ready{Cosmetic: "earth"}, second)
}

func TestFrame_TooLarge(t *testing.T) {
	assert.ErrorIs(t, WriteFrame(&bytes.Buffer{}, make([]byte, MaxFrameSize+1)), ErrFrameTooLarge)

	header := protowire.AppendVarint(nil, MaxFrameSize+1)
	_, err := ReadFrame(bufio.NewReader(bytes.NewReader(header)))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestEnvelope_WireShape(t *testing.T) {
	data, err := MarshalJSON(domain.Move{Column: 3, Row: 5, Identity: "alice"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"move","column":3,"row":5,"identity":"alice"}`, string(data))

	data, err = MarshalJSON(domain.Start{SessionID: "s", OpponentIdentity: "bob", Seat: domain.Seat1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"start","sessionId":"s","opponent":"bob","seat":1}`, string(data))
}

func TestEnvelope_Decode(t *testing.T) {
	ev, err := UnmarshalJSON([]byte(`{"type":"move","column":0}`))
	require.NoError(t, err)
	assert.Equal(t, domain.Move{Column: 0}, ev)

	_, err = UnmarshalJSON([]byte(`{"type":"move"}`))
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = UnmarshalJSON([]byte(`{"type":"teleport"}`))
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = UnmarshalJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecodeErrorsAreMalformed(t *testing.T) {
	_, err := UnmarshalJSON([]byte(`{"type":"move"}`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = UnmarshalJSON([]byte(`{`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Unmarshal([]byte{0xff})
	assert.ErrorIs(t, err, ErrMalformed)
}
