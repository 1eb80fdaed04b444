package handler

import (
	"net/http"

	"unichat/backend/internal/matchhub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allows connections from any origin. Tighten in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the connection and registers the client with the
// hub. Match events for the caller are pushed over this socket.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	anonID, ok := h.authenticate(c)
	if !ok {
		return
	}

	// Unknown languages fall back to English rather than leaking raw keys.
	locale := c.Query("lang")
	if locale == "" || (h.Hub.Localizer != nil && !h.Hub.Localizer.HasLanguage(locale)) {
		locale = "en"
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to upgrade connection"})
		return
	}

	client := matchhub.NewWebSocketClient(h.Hub, anonID, locale, conn)
	h.Hub.RegisterCh <- client
}
