package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/iamasit07/4-in-a-row/server/internal/domain"
	"github.com/iamasit07/4-in-a-row/server/internal/repository/postgres"
	"github.com/iamasit07/4-in-a-row/server/pkg/auth"
)

const (
	MinUsernameLength = 3
	MinPasswordLength = 6
)

var (
	ErrInvalidUsername   = fmt.Errorf("username must be between %d and %d characters", MinUsernameLength, domain.MaxIdentityLength)
	ErrInvalidPassword   = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrReservedUsername  = fmt.Errorf("username %q is reserved", domain.BotIdentity)
	ErrUsernameTaken     = errors.New("username taken")
	ErrUnknownUser       = errors.New("username does not exist")
	ErrIncorrectPassword = errors.New("incorrect password")
	ErrAlreadyConnected  = errors.New("already connected")
)

type UserRepository interface {
	CreateUser(ctx context.Context, username, passwordHash string) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (*postgres.User, error)
}

// OnlineChecker reports whether an identity currently holds a live connection.
type OnlineChecker interface {
	IsConnected(ctx context.Context, identity string) (bool, error)
}

type Service struct {
	users  UserRepository
	online OnlineChecker
	tokens *auth.TokenIssuer
	cost   int
	logger *slog.Logger
}

// New builds the account service. online may be nil, in which case logins
// are never refused for an existing connection.
func New(logger *slog.Logger, users UserRepository, online OnlineChecker, tokens *auth.TokenIssuer, bcryptCost int) *Service {
	if bcryptCost <= 0 {
		bcryptCost = auth.DefaultCost
	}
	return &Service{
		users:  users,
		online: online,
		tokens: tokens,
		cost:   bcryptCost,
		logger: logger.With("component", "account"),
	}
}

func (s *Service) Tokens() *auth.TokenIssuer {
	return s.tokens
}

// Register creates an account with the default rating.
func (s *Service) Register(ctx context.Context, username, password string) (*postgres.User, error) {
	username = strings.TrimSpace(username)
	if n := utf8.RuneCountInString(username); n < MinUsernameLength || len(username) > domain.MaxIdentityLength {
		return nil, ErrInvalidUsername
	}
	if strings.EqualFold(username, domain.BotIdentity) {
		return nil, ErrReservedUsername
	}
	if len(password) < MinPasswordLength {
		return nil, ErrInvalidPassword
	}

	hash, err := auth.HashPassword(password, s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.users.CreateUser(ctx, username, hash)
	if errors.Is(err, postgres.ErrUsernameTaken) {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("account registered", "username", username)
	return &postgres.User{ID: id, Username: username, Rating: domain.DefaultRating}, nil
}

// ValidateCredentials returns the stored user when password matches.
func (s *Service) ValidateCredentials(ctx context.Context, username, password string) (*postgres.User, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnknownUser
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrIncorrectPassword
	}
	return user, nil
}

// Login validates credentials and issues a token. An identity already
// connected to the game server cannot log in again.
func (s *Service) Login(ctx context.Context, username, password string) (string, *postgres.User, error) {
	user, err := s.ValidateCredentials(ctx, username, password)
	if err != nil {
		return "", nil, err
	}

	if s.online != nil {
		connected, err := s.online.IsConnected(ctx, user.Username)
		if err != nil {
			return "", nil, err
		}
		if connected {
			return "", nil, ErrAlreadyConnected
		}
	}

	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, user, nil
}

// VerifyToken resolves a token to its username.
func (s *Service) VerifyToken(token string) (string, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return "", err
	}
	return claims.Username, nil
}

// Profile returns the stored account for username.
func (s *Service) Profile(ctx context.Context, username string) (*postgres.User, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnknownUser
	}
	return user, nil
}
