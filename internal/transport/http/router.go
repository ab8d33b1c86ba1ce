package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iamasit07/4-in-a-row/server/internal/transport/http/middleware"
)

// RouterConfig collects the route dependencies. Accounts, History and
// Leaderboard are nil when no database is configured; their routes then
// answer 503.
type RouterConfig struct {
	Logger         *slog.Logger
	AllowedOrigins []string
	SecureCookies  bool
	TokenTTL       time.Duration

	Accounts    Accounts
	Verifier    middleware.TokenVerifier
	History     GameHistory
	Leaderboard Leaderboard
	Sessions    SessionLister
	Online      OnlineCounter

	WebSocket gin.HandlerFunc
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(cfg.Logger.With("component", "http")))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.AllowedOrigins, cfg.Logger))

	sessions := NewSessionsHandler(cfg.Sessions, cfg.Online)
	router.GET("/health", sessions.Health)
	router.GET("/api/sessions", sessions.GetLiveSessions)

	if cfg.WebSocket != nil {
		router.GET("/ws", cfg.WebSocket)
	}

	if cfg.Accounts == nil || cfg.Verifier == nil {
		for _, route := range []struct{ method, path string }{
			{http.MethodPost, "/api/auth/register"},
			{http.MethodPost, "/api/auth/login"},
			{http.MethodPost, "/api/auth/logout"},
			{http.MethodGet, "/api/auth/me"},
		} {
			router.Handle(route.method, route.path, unavailable)
		}
	} else {
		authHandler := NewAuthHandler(cfg.Accounts, cfg.TokenTTL, cfg.SecureCookies, cfg.Logger)
		router.POST("/api/auth/register", authHandler.Register)
		router.POST("/api/auth/login", authHandler.Login)
		router.POST("/api/auth/logout", authHandler.Logout)
		router.GET("/api/auth/me", middleware.Auth(cfg.Verifier), authHandler.Me)
	}

	if cfg.History == nil || cfg.Leaderboard == nil {
		router.GET("/api/leaderboard", unavailable)
		router.GET("/api/history/:username", unavailable)
		router.GET("/api/games/:id", unavailable)
		router.GET("/api/me/history", unavailable)
	} else {
		history := NewHistoryHandler(cfg.History, cfg.Leaderboard, cfg.Logger)
		router.GET("/api/leaderboard", history.GetLeaderboard)
		router.GET("/api/history/:username", history.GetHistory)
		router.GET("/api/games/:id", history.GetGameBoard)
		if cfg.Verifier != nil {
			router.GET("/api/me/history", middleware.Auth(cfg.Verifier), history.GetOwnHistory)
		}
	}

	return router
}

func unavailable(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
}
