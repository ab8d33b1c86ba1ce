package codec

import (
	"encoding/json"
	"fmt"

	"github.com/iamasit07/4-in-a-row/server/internal/domain"
)

var ErrMissingColumn = fmt.Errorf("%w: move without column", ErrMalformed)

// Envelope is the JSON shape of an event on the browser WebSocket route,
// e.g. {"type":"move","column":3}.
type Envelope struct {
	Type             string `json:"type"`
	Identity         string `json:"identity,omitempty"`
	Token            string `json:"token,omitempty"`
	Cosmetic         string `json:"cosmetic,omitempty"`
	Column           *int   `json:"column,omitempty"`
	Row              *int   `json:"row,omitempty"`
	Text             string `json:"text,omitempty"`
	Seat             int    `json:"seat,omitempty"`
	Reason           string `json:"reason,omitempty"`
	Opponent         string `json:"opponent,omitempty"`
	OpponentCosmetic string `json:"opponentCosmetic,omitempty"`
	SessionID        string `json:"sessionId,omitempty"`
}

func ToEnvelope(ev domain.Event) Envelope {
	env := Envelope{Type: ev.Kind().String()}
	switch ev := ev.(type) {
	case domain.Hello:
		env.Identity, env.Token = ev.Identity, ev.Token
	case domain.Invalid:
		env.Reason = ev.Reason
	case domain.Ready:
		env.Cosmetic = ev.Cosmetic
	case domain.Start:
		env.SessionID = ev.SessionID
		env.Opponent = ev.OpponentIdentity
		env.OpponentCosmetic = ev.OpponentCosmetic
		env.Seat = int(ev.Seat)
	case domain.Select:
		env.Cosmetic, env.Identity = ev.Cosmetic, ev.Identity
	case domain.Move:
		env.Column, env.Row, env.Identity = intPtr(ev.Column), intPtr(ev.Row), ev.Identity
	case domain.Win:
		env.Identity, env.Reason = ev.Identity, ev.Reason
		env.Column, env.Row = intPtr(ev.Column), intPtr(ev.Row)
	case domain.Draw:
		env.Reason = ev.Reason
	case domain.Chat:
		env.Identity, env.Text = ev.Sender, ev.Text
	}
	return env
}

func FromEnvelope(env Envelope) (domain.Event, error) {
	switch domain.KindFromString(env.Type) {
	case domain.KindHello:
		return domain.Hello{Identity: env.Identity, Token: env.Token}, nil
	case domain.KindValid:
		return domain.Valid{}, nil
	case domain.KindInvalid:
		return domain.Invalid{Reason: env.Reason}, nil
	case domain.KindReady:
		return domain.Ready{Cosmetic: env.Cosmetic}, nil
	case domain.KindStart:
		return domain.Start{
			SessionID:        env.SessionID,
			OpponentIdentity: env.Opponent,
			OpponentCosmetic: env.OpponentCosmetic,
			Seat:             domain.Seat(env.Seat),
		}, nil
	case domain.KindSelect:
		return domain.Select{Cosmetic: env.Cosmetic, Identity: env.Identity}, nil
	case domain.KindMove:
		if env.Column == nil {
			return nil, ErrMissingColumn
		}
		return domain.Move{Column: *env.Column, Row: deref(env.Row), Identity: env.Identity}, nil
	case domain.KindWin:
		return domain.Win{Identity: env.Identity, Column: deref(env.Column), Row: deref(env.Row), Reason: env.Reason}, nil
	case domain.KindDraw:
		return domain.Draw{Reason: env.Reason}, nil
	case domain.KindChat:
		return domain.Chat{Sender: env.Identity, Text: env.Text}, nil
	case domain.KindQueueTimeout:
		return domain.QueueTimeout{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
}

// MarshalJSON and UnmarshalJSON are used by the gobwas text-frame path.
func MarshalJSON(ev domain.Event) ([]byte, error) {
	return json.Marshal(ToEnvelope(ev))
}

func UnmarshalJSON(data []byte) (domain.Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return FromEnvelope(env)
}

func intPtr(v int) *int {
	return &v
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
