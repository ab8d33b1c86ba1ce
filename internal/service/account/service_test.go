package account

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iamasit07/4-in-a-row/server/internal/repository/postgres"
	"github.com/iamasit07/4-in-a-row/server/pkg/auth"
)

type fakeUsers struct {
	byName map[string]*postgres.User
	err    error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byName: make(map[string]*postgres.User)}
}

func (f *fakeUsers) CreateUser(_ context.Context, username, hash string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if _, ok := f.byName[username]; ok {
		return 0, postgres.ErrUsernameTaken
	}
	id := int64(len(f.byName) + 1)
	f.byName[username] = &postgres.User{ID: id, Username: username, PasswordHash: hash, Rating: 1000}
	return id, nil
}

func (f *fakeUsers) GetUserByUsername(_ context.Context, username string) (*postgres.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byName[username], nil
}

type onlineStub map[string]bool

func (o onlineStub) IsConnected(_ context.Context, identity string) (bool, error) {
	return o[identity], nil
}

func newService(users UserRepository, online OnlineChecker) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(logger, users, online, auth.NewTokenIssuer("secret", time.Hour), bcrypt.MinCost)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates account", func(t *testing.T) {
		// Given
		users := newFakeUsers()
		svc := newService(users, nil)

		// When
		user, err := svc.Register(ctx, "  alice ", "hunter22")

		// Then
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, 1000, user.Rating)
		stored := users.byName["alice"]
		require.NotNil(t, stored)
		assert.NotEqual(t, "hunter22", stored.PasswordHash)
		assert.True(t, auth.CheckPasswordHash("hunter22", stored.PasswordHash))
	})

	t.Run("duplicate username", func(t *testing.T) {
		svc := newService(newFakeUsers(), nil)
		_, err := svc.Register(ctx, "alice", "hunter22")
		require.NoError(t, err)

		_, err = svc.Register(ctx, "alice", "another1")
		assert.ErrorIs(t, err, ErrUsernameTaken)
		assert.EqualError(t, err, "username taken")
	})

	t.Run("rejects bad input", func(t *testing.T) {
		svc := newService(newFakeUsers(), nil)

		_, err := svc.Register(ctx, "al", "hunter22")
		assert.ErrorIs(t, err, ErrInvalidUsername)

		_, err = svc.Register(ctx, strings.Repeat("a", 51), "hunter22")
		assert.ErrorIs(t, err, ErrInvalidUsername)

		_, err = svc.Register(ctx, "alice", "short")
		assert.ErrorIs(t, err, ErrInvalidPassword)

		_, err = svc.Register(ctx, "bot", "hunter22")
		assert.ErrorIs(t, err, ErrReservedUsername)
	})

	t.Run("storage failure surfaces", func(t *testing.T) {
		users := newFakeUsers()
		users.err = errors.New("db down")
		svc := newService(users, nil)

		_, err := svc.Register(ctx, "alice", "hunter22")
		assert.EqualError(t, err, "db down")
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	users := newFakeUsers()
	online := onlineStub{}
	svc := newService(users, online)
	_, err := svc.Register(ctx, "alice", "hunter22")
	require.NoError(t, err)

	t.Run("issues a verifiable token", func(t *testing.T) {
		// When
		token, user, err := svc.Login(ctx, "alice", "hunter22")

		// Then
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
		identity, err := svc.VerifyToken(token)
		require.NoError(t, err)
		assert.Equal(t, "alice", identity)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "bob", "hunter22")
		assert.ErrorIs(t, err, ErrUnknownUser)
		assert.EqualError(t, err, "username does not exist")
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "alice", "wrong-password")
		assert.ErrorIs(t, err, ErrIncorrectPassword)
	})

	t.Run("already connected", func(t *testing.T) {
		online["alice"] = true
		defer delete(online, "alice")

		_, _, err := svc.Login(ctx, "alice", "hunter22")
		assert.ErrorIs(t, err, ErrAlreadyConnected)
	})
}

func TestVerifyToken_RejectsForeignSignature(t *testing.T) {
	svc := newService(newFakeUsers(), nil)
	foreign, err := auth.NewTokenIssuer("other", time.Hour).Issue("alice")
	require.NoError(t, err)

	_, err = svc.VerifyToken(foreign)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	svc := newService(newFakeUsers(), nil)
	_, err := svc.Register(ctx, "alice", "hunter22")
	require.NoError(t, err)

	user, err := svc.Profile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = svc.Profile(ctx, "bob")
	assert.ErrorIs(t, err, ErrUnknownUser)
}
