package domain

// Event is the closed set of messages exchanged between a client and the
// server. Only types in this file implement it; dispatch sites switch over
// every variant.
type Event interface {
	Kind() Kind
	event()
}

// Kind tags an Event on the wire.
type Kind int

const (
	KindUnknown Kind = iota
	KindHello
	KindValid
	KindInvalid
	KindReady
	KindStart
	KindSelect
	KindMove
	KindWin
	KindDraw
	KindChat
	KindQueueTimeout
)

var kindNames = map[Kind]string{
	KindHello:        "hello",
	KindValid:        "valid",
	KindInvalid:      "invalid",
	KindReady:        "ready",
	KindStart:        "start",
	KindSelect:       "select",
	KindMove:         "move",
	KindWin:          "win",
	KindDraw:         "draw",
	KindChat:         "chat",
	KindQueueTimeout: "queue_timeout",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// KindFromString is the inverse of Kind.String.
func KindFromString(s string) Kind {
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return KindUnknown
}

// Hello is the handshake a client sends first.
type Hello struct {
	Identity string
	Token    string
}

type Valid struct{}

type Invalid struct {
	Reason string
}

// Ready asks to be queued for a match with the given cosmetic selection.
type Ready struct {
	Cosmetic string
}

type Start struct {
	SessionID        string
	OpponentIdentity string
	OpponentCosmetic string
	Seat             Seat
}

// Select relays a cosmetic change. Identity is filled in by the server.
type Select struct {
	Cosmetic string
	Identity string
}

// Move carries a column from the client; Row and Identity are set by the
// server when it echoes an accepted move.
type Move struct {
	Column   int
	Row      int
	Identity string
}

type Win struct {
	Identity string
	Column   int
	Row      int
	Reason   string
}

type Draw struct {
	Reason string
}

type Chat struct {
	Sender string
	Text   string
}

type QueueTimeout struct{}

func (Hello) Kind() Kind        { return KindHello }
func (Valid) Kind() Kind        { return KindValid }
func (Invalid) Kind() Kind      { return KindInvalid }
func (Ready) Kind() Kind        { return KindReady }
func (Start) Kind() Kind        { return KindStart }
func (Select) Kind() Kind       { return KindSelect }
func (Move) Kind() Kind         { return KindMove }
func (Win) Kind() Kind          { return KindWin }
func (Draw) Kind() Kind         { return KindDraw }
func (Chat) Kind() Kind         { return KindChat }
func (QueueTimeout) Kind() Kind { return KindQueueTimeout }

func (Hello) event()        {}
func (Valid) event()        {}
func (Invalid) event()      {}
func (Ready) event()        {}
func (Start) event()        {}
func (Select) event()       {}
func (Move) event()         {}
func (Win) event()          {}
func (Draw) event()         {}
func (Chat) event()         {}
func (QueueTimeout) event() {}
