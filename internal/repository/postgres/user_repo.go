package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

var ErrUsernameTaken = errors.New("username taken")

// uniqueViolation is the Postgres error code for a unique constraint.
const uniqueViolation = "23505"

type UserRepo struct {
	DB *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db}
}

type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Rating       int
	GamesPlayed  int
	GamesWon     int
	GamesDrawn   int
	CreatedAt    time.Time
}

func (u *User) Losses() int {
	return u.GamesPlayed - u.GamesWon - u.GamesDrawn
}

type PlayerStats struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Draws    int    `json:"draws"`
}

// CreateUser stores a new account with the default rating.
func (r *UserRepo) CreateUser(ctx context.Context, username, passwordHash string) (int64, error) {
	query := `
	INSERT INTO players (username, password_hash)
	VALUES ($1, $2)
	RETURNING id;
	`
	var userID int64
	err := r.DB.QueryRowContext(ctx, query, username, passwordHash).Scan(&userID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return 0, ErrUsernameTaken
		}
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return userID, nil
}

const userSelectFields = `id, username, password_hash, rating, games_played, games_won, games_drawn, created_at`

// GetUserByUsername returns nil when no such user exists.
func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	query := `SELECT ` + userSelectFields + ` FROM players WHERE username = $1;`

	var user User
	err := r.DB.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Rating,
		&user.GamesPlayed,
		&user.GamesWon,
		&user.GamesDrawn,
		&user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *UserRepo) GetLeaderboard(ctx context.Context, limit int) ([]PlayerStats, error) {
	query := `
	SELECT
		ROW_NUMBER() OVER (ORDER BY rating DESC, games_won DESC, username ASC) AS rank,
		username,
		rating,
		games_won,
		games_played - games_won - games_drawn AS losses,
		games_drawn
	FROM players
	ORDER BY rating DESC, games_won DESC, username ASC
	LIMIT $1;
	`

	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	leaderboard := make([]PlayerStats, 0)
	for rows.Next() {
		var stats PlayerStats
		if err := rows.Scan(&stats.Rank, &stats.Username, &stats.Rating, &stats.Wins, &stats.Losses, &stats.Draws); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		leaderboard = append(leaderboard, stats)
	}
	return leaderboard, rows.Err()
}
