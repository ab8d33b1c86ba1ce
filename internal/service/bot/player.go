package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/iamasit07/4-in-a-row/server/internal/domain"
	"github.com/iamasit07/4-in-a-row/server/internal/service/game"
)

// Player is the server's own opponent. It is seated through an ordinary
// client and moves through the session like any remote player.
type Player struct {
	client     *game.Client
	difficulty Difficulty
	delay      time.Duration
	logger     *slog.Logger
}

func NewPlayer(logger *slog.Logger, difficulty Difficulty, delay time.Duration) *Player {
	return &Player{
		client:     game.NewClient(domain.BotIdentity, 0),
		difficulty: difficulty,
		delay:      delay,
		logger:     logger.With("component", "bot", "difficulty", string(difficulty)),
	}
}

func (p *Player) Client() *game.Client {
	return p.client
}

// Run plays until the session finishes or ctx is done, then closes the
// client. Events keep draining while a move is pending. Any exit before Win
// or Draw forfeits the match like a dropped connection.
func (p *Player) Run(ctx context.Context) {
	var (
		seat domain.Seat
		due  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			p.leave()
			return
		case <-p.client.Kicked():
			p.leave()
			return
		case <-due:
			due = nil
			p.move(seat)
		case ev := <-p.client.Outbound():
			switch e := ev.(type) {
			case domain.Start:
				seat = e.Seat
				due = p.schedule(seat)
			case domain.Move:
				if e.Identity != p.client.Identity {
					due = p.schedule(seat)
				}
			case domain.Win, domain.Draw:
				p.client.Close()
				return
			}
		}
	}
}

// schedule returns a channel that fires when the bot should move, or nil
// when it is not the bot's turn.
func (p *Player) schedule(seat domain.Seat) <-chan time.Time {
	session := p.client.Session()
	if session == nil || session.ToAct() != seat {
		return nil
	}
	return time.After(p.delay)
}

func (p *Player) move(seat domain.Seat) {
	session := p.client.Session()
	if session == nil || session.ToAct() != seat {
		return
	}
	column := BestMove(session.Snapshot(), seat, p.difficulty)
	if column < 0 {
		return
	}
	if err := session.ApplyMove(p.client.Identity, column); err != nil {
		p.logger.Debug("bot move rejected", "session", session.ID, "column", column, "error", err)
	}
}

func (p *Player) leave() {
	p.client.Close()
	if session := p.client.Session(); session != nil {
		session.HandleDisconnect(p.client.Identity)
	}
}

// SessionFactory seats two clients in a new session.
type SessionFactory interface {
	CreateSession(p1, p2 *game.Client) (*game.Session, error)
}

// Matcher seats a waiting client against a fresh bot.
type Matcher struct {
	ctx        context.Context
	sessions   SessionFactory
	difficulty Difficulty
	delay      time.Duration
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// NewMatcher builds a matcher whose bots stop when ctx is done.
func NewMatcher(ctx context.Context, logger *slog.Logger, sessions SessionFactory, difficulty Difficulty, delay time.Duration) *Matcher {
	return &Matcher{
		ctx:        ctx,
		sessions:   sessions,
		difficulty: difficulty,
		delay:      delay,
		logger:     logger,
	}
}

// Match seats c first and a bot second. It reports false when c could not
// be seated.
func (m *Matcher) Match(c *game.Client) bool {
	player := NewPlayer(m.logger, m.difficulty, m.delay)
	session, err := m.sessions.CreateSession(c, player.Client())
	if err != nil {
		player.Client().Close()
		return false
	}

	m.logger.Info("bot match started", "session", session.ID, "opponent", c.Identity)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		player.Run(m.ctx)
	}()
	return true
}

// Wait blocks until every bot has stopped.
func (m *Matcher) Wait() {
	m.wg.Wait()
}
