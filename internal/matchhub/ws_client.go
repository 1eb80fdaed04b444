package matchhub

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"unichat/backend/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// clientCommand is the small inbound protocol: clients may cancel their
// search or confirm/decline a proposal over the socket instead of the REST
// endpoints.
type clientCommand struct {
	Action     string `json:"action"` // "cancel_search", "confirm", "decline"
	ProposalID string `json:"proposal_id,omitempty"`
}

// WebSocketClient implements the matchhub.Client interface over a
// gorilla/websocket connection.
type WebSocketClient struct {
	UserID string
	Locale string
	Conn   *websocket.Conn
	Hub    *ManagerService
	Send   chan models.MatchEvent

	closeOnce sync.Once
	done      chan struct{}
}

// NewWebSocketClient wires a client around an upgraded connection. The send
// channel is buffered so Deliver never blocks the hub on a slow socket.
func NewWebSocketClient(hub *ManagerService, userID, locale string, conn *websocket.Conn) *WebSocketClient {
	return &WebSocketClient{
		UserID: userID,
		Locale: locale,
		Conn:   conn,
		Hub:    hub,
		Send:   make(chan models.MatchEvent, 256),
		done:   make(chan struct{}),
	}
}

func (c *WebSocketClient) GetUserID() string { return c.UserID }
func (c *WebSocketClient) GetLocale() string { return c.Locale }
func (c *WebSocketClient) GetSendChannel() chan<- models.MatchEvent {
	return c.Send
}

// Run starts the read and write pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close signals the write pump to shut the connection down. The Send channel
// is left open so the hub can still deliver into it without panicking; the
// write pump simply stops draining. Safe to call more than once.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.UnregisterCh <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading message: %v", err)
			}
			break
		}

		var cmd clientCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			log.Printf("Error decoding JSON from client %s: %v", c.UserID, err)
			continue
		}
		c.Hub.HandleCommand(context.Background(), c.UserID, cmd)
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case event := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))

			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("Error encoding JSON for client %s: %v", c.UserID, err)
				continue
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(data)

			// Drain any queued events into the same frame.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				next := <-c.Send
				extra, _ := json.Marshal(next)
				w.Write(extra)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
