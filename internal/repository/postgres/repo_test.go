package postgres_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamasit07/4-in-a-row/server/internal/domain"
	"github.com/iamasit07/4-in-a-row/server/internal/repository/postgres"
	"github.com/iamasit07/4-in-a-row/server/internal/service/game"
	"github.com/iamasit07/4-in-a-row/server/testing/suite"
)

func finished(id, seat1, seat2, winner, reason string, moves int) game.Result {
	created := time.Now().Add(-time.Minute).UTC().Truncate(time.Second)
	board := make([][]int, domain.Rows)
	for i := range board {
		board[i] = make([]int, domain.Columns)
	}
	board[domain.Rows-1][3] = 1
	return game.Result{
		SessionID:  id,
		Seat1:      seat1,
		Seat2:      seat2,
		Winner:     winner,
		Reason:     reason,
		Moves:      moves,
		CreatedAt:  created,
		FinishedAt: created.Add(42 * time.Second),
		Board:      board,
	}
}

func TestUserRepo(t *testing.T) {
	ctx, st := suite.NewPostgres(t)
	users := postgres.NewUserRepo(st.DB)

	t.Run("create and fetch", func(t *testing.T) {
		// When
		id, err := users.CreateUser(ctx, "alice", "hash")
		require.NoError(t, err)

		// Then
		user, err := users.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, id, user.ID)
		assert.Equal(t, "hash", user.PasswordHash)
		assert.Equal(t, domain.DefaultRating, user.Rating)
		assert.Zero(t, user.GamesPlayed)
	})

	t.Run("duplicate username", func(t *testing.T) {
		_, err := users.CreateUser(ctx, "alice", "other")
		assert.ErrorIs(t, err, postgres.ErrUsernameTaken)
	})

	t.Run("unknown user", func(t *testing.T) {
		user, err := users.GetUserByUsername(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, user)
	})
}

func TestGameRepo_SaveResult(t *testing.T) {
	ctx, st := suite.NewPostgres(t)
	users := postgres.NewUserRepo(st.DB)
	games := postgres.NewGameRepo(st.DB)

	// Given
	_, err := users.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)
	_, err = users.CreateUser(ctx, "bob", "hash")
	require.NoError(t, err)

	t.Run("win settles ratings", func(t *testing.T) {
		// When
		result := finished("g1", "alice", "bob", "alice", domain.ReasonConnectFour, 7)
		require.NoError(t, games.SaveResult(ctx, result))

		// Then
		alice, err := users.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		bob, err := users.GetUserByUsername(ctx, "bob")
		require.NoError(t, err)

		assert.Equal(t, 1016, alice.Rating)
		assert.Equal(t, 984, bob.Rating)
		assert.Equal(t, 1, alice.GamesWon)
		assert.Equal(t, 1, bob.Losses())
	})

	t.Run("saving twice counts once", func(t *testing.T) {
		result := finished("g1", "alice", "bob", "alice", domain.ReasonConnectFour, 7)
		require.NoError(t, games.SaveResult(ctx, result))

		alice, err := users.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 1, alice.GamesPlayed)
		assert.Equal(t, 1016, alice.Rating)
	})

	t.Run("draw leaves ratings", func(t *testing.T) {
		require.NoError(t, games.SaveResult(ctx, finished("g2", "bob", "alice", "", domain.ReasonBoardFull, 42)))

		bob, err := users.GetUserByUsername(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, 984, bob.Rating)
		assert.Equal(t, 1, bob.GamesDrawn)
		assert.Equal(t, 2, bob.GamesPlayed)
	})

	t.Run("guest opponent keeps ratings", func(t *testing.T) {
		require.NoError(t, games.SaveResult(ctx, finished("g3", "alice", "guest", "guest", domain.ReasonDisconnect, 3)))

		alice, err := users.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 1016, alice.Rating)
		assert.Equal(t, 3, alice.GamesPlayed)
	})

	t.Run("history newest first", func(t *testing.T) {
		history, err := games.GetUserGameHistory(ctx, "alice", 10)
		require.NoError(t, err)
		require.Len(t, history, 3)

		ids := []string{history[0].GameID, history[1].GameID, history[2].GameID}
		assert.ElementsMatch(t, []string{"g1", "g2", "g3"}, ids)
		for _, record := range history {
			if record.GameID == "g2" {
				assert.Empty(t, record.Winner)
				assert.Equal(t, 42, record.DurationSeconds)
			}
		}
	})

	t.Run("board round trip", func(t *testing.T) {
		board, err := games.GetGameBoard(ctx, "g1")
		require.NoError(t, err)
		require.Len(t, board, domain.Rows)
		assert.Equal(t, 1, board[domain.Rows-1][3])

		missing, err := games.GetGameBoard(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("leaderboard", func(t *testing.T) {
		board, err := users.GetLeaderboard(ctx, 10)
		require.NoError(t, err)
		require.Len(t, board, 2)
		assert.Equal(t, "alice", board[0].Username)
		assert.Equal(t, 1, board[0].Rank)
		assert.Equal(t, 2, board[1].Rank)
	})
}
