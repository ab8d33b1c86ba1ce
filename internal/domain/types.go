package domain

// Seat is a match-relative role. Seat1 always moves first.
type Seat int

const (
	Empty Seat = 0
	Seat1 Seat = 1
	Seat2 Seat = 2
)

const (
	Rows    = 6
	Columns = 7
	ToWin   = 4
)

// MaxIdentityLength bounds the identity a client may claim at handshake.
const MaxIdentityLength = 50

// BotIdentity is reserved for the server's own player.
const BotIdentity = "BOT"

// Other returns the opposing seat. Empty stays Empty.
func (s Seat) Other() Seat {
	switch s {
	case Seat1:
		return Seat2
	case Seat2:
		return Seat1
	default:
		return Empty
	}
}

func (s Seat) Valid() bool {
	return s == Seat1 || s == Seat2
}

// Error is a rejection reason reported by the board.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrInvalidColumn Error = "column out of range"
	ErrColumnFull    Error = "column is full"
	ErrInvalidSeat   Error = "invalid seat"
)

// Finish reasons carried by Win and Draw.
const (
	ReasonConnectFour = "connect_four"
	ReasonDisconnect  = "disconnect"
	ReasonTurnTimeout = "turn_timeout"
	ReasonBoardFull   = "board_full"
	ReasonExpired     = "expired"
)
