package game

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iamasit07/4-in-a-row/server/internal/domain"
)

var (
	ErrNotInSession    = errors.New("identity is not seated in this session")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrSessionFinished = errors.New("session already finished")
	ErrColumnRejected  = errors.New("column rejected")
	ErrSessionActive   = errors.New("session still in progress")
)

type State int

const (
	StateAwaitingFirstMove State = iota
	StateSeat1ToAct
	StateSeat2ToAct
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateAwaitingFirstMove:
		return "awaiting_first_move"
	case StateSeat1ToAct:
		return "seat1_to_act"
	case StateSeat2ToAct:
		return "seat2_to_act"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options tune the timers a session runs. Zero disables the timer.
type Options struct {
	TurnTimeout    time.Duration
	PostGameWindow time.Duration
}

// Result is what a finished session hands to its recorder.
type Result struct {
	SessionID  string
	Seat1      string
	Seat2      string
	Winner     string // empty for a draw
	Reason     string
	Moves      int
	CreatedAt  time.Time
	FinishedAt time.Time
	Board      [][]int
}

// Summary describes a live session for listings.
type Summary struct {
	SessionID string    `json:"sessionId"`
	Seat1     string    `json:"seat1"`
	Seat2     string    `json:"seat2"`
	State     string    `json:"state"`
	Moves     int       `json:"moves"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is one match between two seated clients.
type Session struct {
	ID string

	seats     [2]*Client
	board     *domain.Board
	state     State
	moves     int
	lastSeat  domain.Seat
	winner    string
	reason    string
	createdAt time.Time
	endedAt   time.Time

	opts          Options
	turnTimer     *time.Timer
	postGameTimer *time.Timer
	onFinish      func(Result)
	logger        *slog.Logger

	mu sync.Mutex
}

func newSession(id string, seat1, seat2 *Client, opts Options, logger *slog.Logger, onFinish func(Result)) *Session {
	if onFinish == nil {
		onFinish = func(Result) {}
	}
	return &Session{
		ID:        id,
		seats:     [2]*Client{seat1, seat2},
		board:     domain.NewBoard(),
		state:     StateAwaitingFirstMove,
		createdAt: time.Now(),
		opts:      opts,
		onFinish:  onFinish,
		logger:    logger.With("session", id),
	}
}

// startLocked announces the match to both seats and arms the first turn
// timer.
func (s *Session) startLocked() {
	if s.state == StateFinished {
		return
	}
	for i, c := range s.seats {
		opponent := s.seats[1-i]
		c.Send(domain.Start{
			SessionID:        s.ID,
			OpponentIdentity: opponent.Identity,
			OpponentCosmetic: opponent.Cosmetic(),
			Seat:             domain.Seat(i + 1),
		})
	}
	s.armTurnTimerLocked()
	s.logger.Info("session started", "seat1", s.seats[0].Identity, "seat2", s.seats[1].Identity)
}

// ApplyMove drops a piece for identity. On any error nothing changes and
// nothing is sent.
func (s *Session) ApplyMove(identity string, column int) error {
	s.mu.Lock()

	seat := s.seatOfLocked(identity)
	if seat == domain.Empty {
		s.mu.Unlock()
		return ErrNotInSession
	}
	if s.state == StateFinished {
		s.mu.Unlock()
		return ErrSessionFinished
	}
	if seat != s.toActLocked() {
		s.mu.Unlock()
		return ErrNotYourTurn
	}

	row, rejected := s.board.DropPiece(column, seat)
	if rejected {
		s.mu.Unlock()
		return fmt.Errorf("%w: column %d: %w", ErrColumnRejected, column, s.board.CheckDrop(column, seat))
	}

	if seat == s.lastSeat {
		panic(fmt.Sprintf("session %s: seat %d accepted twice in a row", s.ID, seat))
	}
	s.lastSeat = seat
	s.moves++
	if filled := s.board.Filled(); filled != s.moves {
		panic(fmt.Sprintf("session %s: %d cells filled after %d moves", s.ID, filled, s.moves))
	}

	var result *Result
	switch {
	case s.board.CheckWin(row, column, seat):
		s.broadcastLocked(domain.Win{Identity: identity, Column: column, Row: row, Reason: domain.ReasonConnectFour})
		r := s.finishLocked(identity, domain.ReasonConnectFour)
		result = &r
	case s.board.IsFull():
		s.broadcastLocked(domain.Move{Column: column, Row: row, Identity: identity})
		s.broadcastLocked(domain.Draw{Reason: domain.ReasonBoardFull})
		r := s.finishLocked("", domain.ReasonBoardFull)
		result = &r
	default:
		s.broadcastLocked(domain.Move{Column: column, Row: row, Identity: identity})
		if seat == domain.Seat1 {
			s.state = StateSeat2ToAct
		} else {
			s.state = StateSeat1ToAct
		}
		s.armTurnTimerLocked()
	}
	s.mu.Unlock()

	if result != nil {
		s.onFinish(*result)
	}
	return nil
}

// RelayChat forwards text to the other seat.
func (s *Session) RelayChat(identity, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seat := s.seatOfLocked(identity)
	if seat == domain.Empty {
		return ErrNotInSession
	}
	s.clientLocked(seat.Other()).Send(domain.Chat{Sender: identity, Text: text})
	return nil
}

// RelayCosmetic forwards a cosmetic change to the other seat.
func (s *Session) RelayCosmetic(identity, cosmetic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seat := s.seatOfLocked(identity)
	if seat == domain.Empty {
		return ErrNotInSession
	}
	s.clientLocked(seat).SetCosmetic(cosmetic)
	s.clientLocked(seat.Other()).Send(domain.Select{Cosmetic: cosmetic, Identity: identity})
	return nil
}

// HandleDisconnect forfeits an unfinished match to the remaining seat and
// detaches the departed client.
func (s *Session) HandleDisconnect(identity string) {
	s.mu.Lock()

	seat := s.seatOfLocked(identity)
	if seat == domain.Empty {
		s.mu.Unlock()
		return
	}
	s.clientLocked(seat).unbind(s)

	if s.state == StateFinished {
		s.mu.Unlock()
		return
	}

	remaining := s.clientLocked(seat.Other())
	s.logger.Info("seat disconnected, forfeiting", "departed", identity, "winner", remaining.Identity)
	remaining.Send(domain.Win{Identity: remaining.Identity, Column: -1, Row: -1, Reason: domain.ReasonDisconnect})
	result := s.finishLocked(remaining.Identity, domain.ReasonDisconnect)
	s.mu.Unlock()

	s.onFinish(result)
}

// Expire ends an unfinished session as a draw.
func (s *Session) Expire() bool {
	s.mu.Lock()
	if s.state == StateFinished {
		s.mu.Unlock()
		return false
	}
	s.broadcastLocked(domain.Draw{Reason: domain.ReasonExpired})
	result := s.finishLocked("", domain.ReasonExpired)
	s.mu.Unlock()

	s.onFinish(result)
	return true
}

// Release detaches c from a finished session ahead of the post-game window.
func (s *Session) Release(c *Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateFinished {
		return ErrSessionActive
	}
	c.unbind(s)
	return nil
}

func (s *Session) turnExpired(moves int) {
	s.mu.Lock()
	if s.state == StateFinished || s.moves != moves {
		s.mu.Unlock()
		return
	}

	loser := s.toActLocked()
	winner := s.clientLocked(loser.Other()).Identity
	s.logger.Info("turn timed out", "seat", int(loser), "winner", winner)
	s.broadcastLocked(domain.Win{Identity: winner, Column: -1, Row: -1, Reason: domain.ReasonTurnTimeout})
	result := s.finishLocked(winner, domain.ReasonTurnTimeout)
	s.mu.Unlock()

	s.onFinish(result)
}

func (s *Session) releaseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.seats {
		c.unbind(s)
	}
}

// finishLocked moves the session to Finished and schedules the unbinding of
// both seats. Callers invoke onFinish with the result after unlocking.
func (s *Session) finishLocked(winner, reason string) Result {
	s.state = StateFinished
	s.winner = winner
	s.reason = reason
	s.endedAt = time.Now()

	if s.turnTimer != nil {
		s.turnTimer.Stop()
		s.turnTimer = nil
	}
	if s.opts.PostGameWindow > 0 {
		s.postGameTimer = time.AfterFunc(s.opts.PostGameWindow, s.releaseAll)
	} else {
		for _, c := range s.seats {
			c.unbind(s)
		}
	}

	return Result{
		SessionID:  s.ID,
		Seat1:      s.seats[0].Identity,
		Seat2:      s.seats[1].Identity,
		Winner:     winner,
		Reason:     reason,
		Moves:      s.moves,
		CreatedAt:  s.createdAt,
		FinishedAt: s.endedAt,
		Board:      s.board.Cells(),
	}
}

func (s *Session) armTurnTimerLocked() {
	if s.opts.TurnTimeout <= 0 {
		return
	}
	if s.turnTimer != nil {
		s.turnTimer.Stop()
	}
	moves := s.moves
	s.turnTimer = time.AfterFunc(s.opts.TurnTimeout, func() { s.turnExpired(moves) })
}

func (s *Session) broadcastLocked(ev domain.Event) {
	for _, c := range s.seats {
		c.Send(ev)
	}
}

func (s *Session) seatOfLocked(identity string) domain.Seat {
	switch identity {
	case s.seats[0].Identity:
		return domain.Seat1
	case s.seats[1].Identity:
		return domain.Seat2
	default:
		return domain.Empty
	}
}

func (s *Session) clientLocked(seat domain.Seat) *Client {
	return s.seats[seat-1]
}

func (s *Session) toActLocked() domain.Seat {
	switch s.state {
	case StateAwaitingFirstMove, StateSeat1ToAct:
		return domain.Seat1
	case StateSeat2ToAct:
		return domain.Seat2
	default:
		return domain.Empty
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Finished() bool {
	return s.State() == StateFinished
}

// ToAct returns the seat expected to move next, or Empty once finished.
func (s *Session) ToAct() domain.Seat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toActLocked()
}

func (s *Session) SeatOf(identity string) domain.Seat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seatOfLocked(identity)
}

func (s *Session) Identities() (string, string) {
	return s.seats[0].Identity, s.seats[1].Identity
}

func (s *Session) MoveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moves
}

// Snapshot returns a copy of the board for read-only analysis.
func (s *Session) Snapshot() *domain.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Clone()
}

func (s *Session) Board() [][]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Cells()
}

// Outcome returns the winner (empty for a draw) and the finish reason.
func (s *Session) Outcome() (winner, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.winner, s.reason
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{
		SessionID: s.ID,
		Seat1:     s.seats[0].Identity,
		Seat2:     s.seats[1].Identity,
		State:     s.state.String(),
		Moves:     s.moves,
		CreatedAt: s.createdAt,
	}
}
