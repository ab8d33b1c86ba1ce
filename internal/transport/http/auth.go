package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iamasit07/4-in-a-row/server/internal/repository/postgres"
	"github.com/iamasit07/4-in-a-row/server/internal/service/account"
	"github.com/iamasit07/4-in-a-row/server/internal/transport/http/middleware"
	"github.com/iamasit07/4-in-a-row/server/pkg/httputil"
	"github.com/iamasit07/4-in-a-row/server/pkg/useragent"
)

type Accounts interface {
	Register(ctx context.Context, username, password string) (*postgres.User, error)
	Login(ctx context.Context, username, password string) (string, *postgres.User, error)
	Profile(ctx context.Context, username string) (*postgres.User, error)
}

type AuthHandler struct {
	accounts     Accounts
	tokenTTL     time.Duration
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandler(accounts Accounts, tokenTTL time.Duration, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts:     accounts,
		tokenTTL:     tokenTTL,
		secureCookie: secureCookie,
		logger:       logger.With("component", "auth"),
	}
}

type credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Draws    int    `json:"draws"`
}

func toUserResponse(u *postgres.User) userResponse {
	return userResponse{
		Username: u.Username,
		Rating:   u.Rating,
		Wins:     u.GamesWon,
		Losses:   u.Losses(),
		Draws:    u.GamesDrawn,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, account.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, account.ErrInvalidUsername), errors.Is(err, account.ErrInvalidPassword),
		errors.Is(err, account.ErrReservedUsername):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("register failed", "username", req.Username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": toUserResponse(user)})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	token, user, err := h.accounts.Login(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, account.ErrUnknownUser), errors.Is(err, account.ErrIncorrectPassword):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	case errors.Is(err, account.ErrAlreadyConnected):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("login failed", "username", req.Username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.logger.Info("login", "username", user.Username,
		"device", useragent.Describe(c.GetHeader("User-Agent")), "client", c.ClientIP())

	httputil.SetAuthCookie(c.Writer, token, h.tokenTTL, h.secureCookie)
	c.JSON(http.StatusOK, gin.H{"token": token, "user": toUserResponse(user)})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	httputil.ClearAuthCookie(c.Writer)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.accounts.Profile(c.Request.Context(), middleware.Username(c))
	if errors.Is(err, account.ErrUnknownUser) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		h.logger.Error("profile lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}
