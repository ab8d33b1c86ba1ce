package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iamasit07/4-in-a-row/server/internal/service/game"
)

type SessionLister interface {
	ActiveSessions() []game.Summary
	Count() int
}

// OnlineCounter reports how many identities hold a live connection.
type OnlineCounter interface {
	Count() int
}

type SessionsHandler struct {
	sessions SessionLister
	online   OnlineCounter
}

func NewSessionsHandler(sessions SessionLister, online OnlineCounter) *SessionsHandler {
	return &SessionsHandler{sessions: sessions, online: online}
}

// GetLiveSessions returns every match in progress, oldest first.
func (h *SessionsHandler) GetLiveSessions(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessions.ActiveSessions())
}

func (h *SessionsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": h.sessions.Count(),
		"online":   h.online.Count(),
	})
}
