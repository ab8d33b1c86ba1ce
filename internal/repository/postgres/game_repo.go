package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iamasit07/4-in-a-row/server/internal/domain"
	"github.com/iamasit07/4-in-a-row/server/internal/service/game"
)

type GameRepo struct {
	DB *sql.DB
}

func NewGameRepo(db *sql.DB) *GameRepo {
	return &GameRepo{DB: db}
}

// GameRecord is a finished match as stored.
type GameRecord struct {
	GameID          string    `json:"gameId"`
	Player1         string    `json:"player1"`
	Player2         string    `json:"player2"`
	Winner          string    `json:"winner,omitempty"`
	Reason          string    `json:"reason"`
	TotalMoves      int       `json:"totalMoves"`
	DurationSeconds int       `json:"durationSeconds"`
	CreatedAt       time.Time `json:"createdAt"`
	FinishedAt      time.Time `json:"finishedAt"`
}

// SaveResult stores a finished match and updates player stats transactionally.
// Ratings move only when a decided match was played between two registered
// players.
func (r *GameRepo) SaveResult(ctx context.Context, result game.Result) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	boardJSON, err := json.Marshal(result.Board)
	if err != nil {
		return fmt.Errorf("failed to marshal board state: %w", err)
	}

	var winner sql.NullString
	if result.Winner != "" {
		winner = sql.NullString{String: result.Winner, Valid: true}
	}
	duration := int(result.FinishedAt.Sub(result.CreatedAt).Seconds())

	query := `
	INSERT INTO game (game_id, player1_username, player2_username, winner_username, reason, total_moves, duration_seconds, created_at, finished_at, board_state)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (game_id) DO NOTHING;
	`
	res, err := tx.ExecContext(ctx, query, result.SessionID, result.Seat1, result.Seat2, winner, result.Reason,
		result.Moves, duration, result.CreatedAt, result.FinishedAt, boardJSON)
	if err != nil {
		return fmt.Errorf("failed to insert game record: %w", err)
	}
	// A session already recorded must not count twice.
	if inserted, err := res.RowsAffected(); err != nil || inserted == 0 {
		return err
	}

	for _, username := range lockOrder(result.Seat1, result.Seat2) {
		if err := updatePlayerStatsTx(ctx, tx, username, result.Winner); err != nil {
			return err
		}
	}

	if result.Winner != "" {
		loser := result.Seat1
		if result.Winner == result.Seat1 {
			loser = result.Seat2
		}
		if err := settleRatingsTx(ctx, tx, result.Winner, loser); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// updatePlayerStatsTx counts the match for a registered player. Guests have
// no row and are skipped by the WHERE clause.
func updatePlayerStatsTx(ctx context.Context, tx *sql.Tx, username, winner string) error {
	query := `
	UPDATE players
	SET games_played = games_played + 1,
	    games_won = games_won + CASE WHEN $2::boolean THEN 1 ELSE 0 END,
	    games_drawn = games_drawn + CASE WHEN $3::boolean THEN 1 ELSE 0 END
	WHERE username = $1;
	`
	_, err := tx.ExecContext(ctx, query, username, winner == username, winner == "")
	if err != nil {
		return fmt.Errorf("failed to update player stats in transaction: %w", err)
	}
	return nil
}

func settleRatingsTx(ctx context.Context, tx *sql.Tx, winner, loser string) error {
	ratings := make(map[string]int, 2)
	for _, username := range lockOrder(winner, loser) {
		rating, err := lockRatingTx(ctx, tx, username)
		if err != nil {
			return err
		}
		if rating < 0 {
			return nil
		}
		ratings[username] = rating
	}

	newWinner, newLoser := domain.SettleRatings(ratings[winner], ratings[loser])

	query := `UPDATE players SET rating = $2 WHERE username = $1;`
	if _, err := tx.ExecContext(ctx, query, winner, newWinner); err != nil {
		return fmt.Errorf("failed to update rating: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, loser, newLoser); err != nil {
		return fmt.Errorf("failed to update rating: %w", err)
	}
	return nil
}

// lockOrder sorts the pair so concurrent saves lock player rows in the same
// order.
func lockOrder(a, b string) []string {
	if b < a {
		return []string{b, a}
	}
	return []string{a, b}
}

// lockRatingTx returns -1 for a username without an account.
func lockRatingTx(ctx context.Context, tx *sql.Tx, username string) (int, error) {
	var rating int
	err := tx.QueryRowContext(ctx, `SELECT rating FROM players WHERE username = $1 FOR UPDATE;`, username).Scan(&rating)
	if errors.Is(err, sql.ErrNoRows) {
		return -1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read rating: %w", err)
	}
	return rating, nil
}

// GetUserGameHistory retrieves the most recent games an identity played.
func (r *GameRepo) GetUserGameHistory(ctx context.Context, username string, limit int) ([]GameRecord, error) {
	query := `
	SELECT game_id, player1_username, player2_username, winner_username, reason,
	       total_moves, duration_seconds, created_at, finished_at
	FROM game
	WHERE player1_username = $1 OR player2_username = $1
	ORDER BY finished_at DESC
	LIMIT $2;
	`

	rows, err := r.DB.QueryContext(ctx, query, username, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query game history: %w", err)
	}
	defer rows.Close()

	games := make([]GameRecord, 0)
	for rows.Next() {
		var record GameRecord
		var winner sql.NullString
		err := rows.Scan(
			&record.GameID,
			&record.Player1,
			&record.Player2,
			&winner,
			&record.Reason,
			&record.TotalMoves,
			&record.DurationSeconds,
			&record.CreatedAt,
			&record.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game row: %w", err)
		}
		record.Winner = winner.String
		games = append(games, record)
	}
	return games, rows.Err()
}

// GetGameBoard retrieves the final board of a stored game.
func (r *GameRepo) GetGameBoard(ctx context.Context, gameID string) ([][]int, error) {
	var boardJSON []byte
	err := r.DB.QueryRowContext(ctx, `SELECT board_state FROM game WHERE game_id = $1;`, gameID).Scan(&boardJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get board state: %w", err)
	}

	var board [][]int
	if err := json.Unmarshal(boardJSON, &board); err != nil {
		return nil, fmt.Errorf("failed to unmarshal board state: %w", err)
	}
	return board, nil
}
