package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iamasit07/4-in-a-row/server/internal/repository/postgres"
	"github.com/iamasit07/4-in-a-row/server/internal/transport/http/middleware"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type GameHistory interface {
	GetUserGameHistory(ctx context.Context, username string, limit int) ([]postgres.GameRecord, error)
	GetGameBoard(ctx context.Context, gameID string) ([][]int, error)
}

type Leaderboard interface {
	GetLeaderboard(ctx context.Context, limit int) ([]postgres.PlayerStats, error)
}

type HistoryHandler struct {
	games  GameHistory
	ranks  Leaderboard
	logger *slog.Logger
}

func NewHistoryHandler(games GameHistory, ranks Leaderboard, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{games: games, ranks: ranks, logger: logger.With("component", "history")}
}

type gameHistoryItem struct {
	ID               string    `json:"id"`
	OpponentUsername string    `json:"opponentUsername"`
	Result           string    `json:"result"` // "win", "loss", "draw"
	EndReason        string    `json:"endReason"`
	CreatedAt        time.Time `json:"createdAt"`
	MovesCount       int       `json:"movesCount"`
	DurationSeconds  int       `json:"durationSeconds"`
}

func historyItem(username string, g postgres.GameRecord) gameHistoryItem {
	item := gameHistoryItem{
		ID:               g.GameID,
		OpponentUsername: g.Player1,
		EndReason:        g.Reason,
		CreatedAt:        g.CreatedAt,
		MovesCount:       g.TotalMoves,
		DurationSeconds:  g.DurationSeconds,
	}
	if g.Player1 == username {
		item.OpponentUsername = g.Player2
	}

	switch g.Winner {
	case "":
		item.Result = "draw"
	case username:
		item.Result = "win"
	default:
		item.Result = "loss"
	}
	return item
}

// GetHistory lists the games of the :username path parameter.
func (h *HistoryHandler) GetHistory(c *gin.Context) {
	h.history(c, c.Param("username"))
}

// GetOwnHistory lists the games of the authenticated user.
func (h *HistoryHandler) GetOwnHistory(c *gin.Context) {
	h.history(c, middleware.Username(c))
}

func (h *HistoryHandler) history(c *gin.Context, username string) {
	games, err := h.games.GetUserGameHistory(c.Request.Context(), username, listLimit(c))
	if err != nil {
		h.logger.Error("history query failed", "username", username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}

	history := make([]gameHistoryItem, 0, len(games))
	for _, g := range games {
		history = append(history, historyItem(username, g))
	}
	c.JSON(http.StatusOK, history)
}

func (h *HistoryHandler) GetGameBoard(c *gin.Context) {
	board, err := h.games.GetGameBoard(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("board query failed", "game", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch game"})
		return
	}
	if board == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "board": board})
}

func (h *HistoryHandler) GetLeaderboard(c *gin.Context) {
	stats, err := h.ranks.GetLeaderboard(c.Request.Context(), listLimit(c))
	if err != nil {
		h.logger.Error("leaderboard query failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch leaderboard"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// listLimit reads ?limit=, clamped to (0, maxListLimit].
func listLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}
