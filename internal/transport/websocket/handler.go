package websocket

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/iamasit07/4-in-a-row/server/internal/transport/handler"
)

// ConnHandler serves one transport until it closes.
type ConnHandler interface {
	Serve(ctx context.Context, t handler.Transport)
}

// Handler upgrades HTTP requests on the game route to WebSocket.
type Handler struct {
	conns    ConnHandler
	ctx      context.Context
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler builds the upgrade route. Connections end when ctx is done.
// An empty allowedOrigins accepts any origin.
func NewHandler(ctx context.Context, conns ConnHandler, allowedOrigins []string, logger *slog.Logger) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	return &Handler{
		conns:  conns,
		ctx:    ctx,
		logger: logger.With("component", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

// HandleWebSocket serves the connection for as long as it stays open.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", "error", err)
		return
	}
	ws.SetReadLimit(64 << 10)

	h.conns.Serve(h.ctx, NewConn(ws, c.Request.RemoteAddr))
}
