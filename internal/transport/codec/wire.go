package codec

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/iamasit07/4-in-a-row/server/internal/domain"
)

// ErrMalformed marks a payload that framed correctly but did not decode to an
// event. The stream itself is still usable.
var ErrMalformed = errors.New("malformed event")

var ErrUnknownKind = fmt.Errorf("%w: unknown event kind", ErrMalformed)

// Field numbers of the binary event encoding.
const (
	fieldKind      protowire.Number = 1
	fieldIdentity  protowire.Number = 2
	fieldToken     protowire.Number = 3
	fieldCosmetic  protowire.Number = 4
	fieldColumn    protowire.Number = 5
	fieldRow       protowire.Number = 6
	fieldText      protowire.Number = 7
	fieldSeat      protowire.Number = 8
	fieldReason    protowire.Number = 9
	fieldOpponent  protowire.Number = 10
	fieldSessionID protowire.Number = 11
)

// fields is the flat form every event is encoded through. Column and row
// are zigzag encoded since forfeits carry -1.
type fields struct {
	kind      domain.Kind
	identity  string
	token     string
	cosmetic  string
	column    int64
	row       int64
	text      string
	seat      uint64
	reason    string
	opponent  string
	sessionID string
	hasCell   bool
}

// Marshal encodes ev in protobuf wire format.
func Marshal(ev domain.Event) ([]byte, error) {
	f := fields{kind: ev.Kind()}
	switch ev := ev.(type) {
	case domain.Hello:
		f.identity, f.token = ev.Identity, ev.Token
	case domain.Valid, domain.QueueTimeout:
	case domain.Invalid:
		f.reason = ev.Reason
	case domain.Ready:
		f.cosmetic = ev.Cosmetic
	case domain.Start:
		f.sessionID, f.opponent, f.cosmetic, f.seat = ev.SessionID, ev.OpponentIdentity, ev.OpponentCosmetic, uint64(ev.Seat)
	case domain.Select:
		f.cosmetic, f.identity = ev.Cosmetic, ev.Identity
	case domain.Move:
		f.column, f.row, f.identity, f.hasCell = int64(ev.Column), int64(ev.Row), ev.Identity, true
	case domain.Win:
		f.identity, f.column, f.row, f.reason, f.hasCell = ev.Identity, int64(ev.Column), int64(ev.Row), ev.Reason, true
	case domain.Draw:
		f.reason = ev.Reason
	case domain.Chat:
		f.identity, f.text = ev.Sender, ev.Text
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, ev)
	}
	return f.append(nil), nil
}

func (f fields) append(b []byte) []byte {
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.kind))

	b = appendString(b, fieldIdentity, f.identity)
	b = appendString(b, fieldToken, f.token)
	b = appendString(b, fieldCosmetic, f.cosmetic)
	if f.hasCell {
		b = protowire.AppendTag(b, fieldColumn, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(f.column))
		b = protowire.AppendTag(b, fieldRow, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(f.row))
	}
	b = appendString(b, fieldText, f.text)
	if f.seat != 0 {
		b = protowire.AppendTag(b, fieldSeat, protowire.VarintType)
		b = protowire.AppendVarint(b, f.seat)
	}
	b = appendString(b, fieldReason, f.reason)
	b = appendString(b, fieldOpponent, f.opponent)
	b = appendString(b, fieldSessionID, f.sessionID)
	return b
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// Unmarshal decodes one event. Unknown fields are skipped.
func Unmarshal(data []byte) (domain.Event, error) {
	var f fields
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: tag: %w", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case typ == protowire.VarintType && isVarintField(num):
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %w", ErrMalformed, num, protowire.ParseError(n))
			}
			data = data[n:]
			f.setVarint(num, v)
		case typ == protowire.BytesType && !isVarintField(num):
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %w", ErrMalformed, num, protowire.ParseError(n))
			}
			data = data[n:]
			f.setString(num, v)
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %w", ErrMalformed, num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return f.event()
}

func isVarintField(num protowire.Number) bool {
	switch num {
	case fieldKind, fieldColumn, fieldRow, fieldSeat:
		return true
	}
	return false
}

func (f *fields) setVarint(num protowire.Number, v uint64) {
	switch num {
	case fieldKind:
		f.kind = domain.Kind(v)
	case fieldColumn:
		f.column = protowire.DecodeZigZag(v)
		f.hasCell = true
	case fieldRow:
		f.row = protowire.DecodeZigZag(v)
	case fieldSeat:
		f.seat = v
	}
}

func (f *fields) setString(num protowire.Number, v string) {
	switch num {
	case fieldIdentity:
		f.identity = v
	case fieldToken:
		f.token = v
	case fieldCosmetic:
		f.cosmetic = v
	case fieldText:
		f.text = v
	case fieldReason:
		f.reason = v
	case fieldOpponent:
		f.opponent = v
	case fieldSessionID:
		f.sessionID = v
	}
}

func (f fields) event() (domain.Event, error) {
	switch f.kind {
	case domain.KindHello:
		return domain.Hello{Identity: f.identity, Token: f.token}, nil
	case domain.KindValid:
		return domain.Valid{}, nil
	case domain.KindInvalid:
		return domain.Invalid{Reason: f.reason}, nil
	case domain.KindReady:
		return domain.Ready{Cosmetic: f.cosmetic}, nil
	case domain.KindStart:
		return domain.Start{
			SessionID:        f.sessionID,
			OpponentIdentity: f.opponent,
			OpponentCosmetic: f.cosmetic,
			Seat:             domain.Seat(f.seat),
		}, nil
	case domain.KindSelect:
		return domain.Select{Cosmetic: f.cosmetic, Identity: f.identity}, nil
	case domain.KindMove:
		if !f.hasCell {
			return nil, ErrMissingColumn
		}
		return domain.Move{Column: int(f.column), Row: int(f.row), Identity: f.identity}, nil
	case domain.KindWin:
		return domain.Win{Identity: f.identity, Column: int(f.column), Row: int(f.row), Reason: f.reason}, nil
	case domain.KindDraw:
		return domain.Draw{Reason: f.reason}, nil
	case domain.KindChat:
		return domain.Chat{Sender: f.identity, Text: f.text}, nil
	case domain.KindQueueTimeout:
		return domain.QueueTimeout{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, f.kind)
	}
}
