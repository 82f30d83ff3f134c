package handlers

import (
	"net/http"
	"time"

	"github.com/copyhere/server/internal/services"
	"github.com/copyhere/server/internal/utils"
	"github.com/copyhere/server/pkg/logger"
	"github.com/copyhere/server/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Auth happens via the access token, not the Origin header.
		return true
	},
}

// SyncHandler upgrades connections to websockets and streams clipboard
// change events to them. One hub subscription per connection.
type SyncHandler struct {
	hub *services.SyncHub
}

func NewSyncHandler(hub *services.SyncHub) *SyncHandler {
	return &SyncHandler{hub: hub}
}

// Connect authenticates and upgrades a sync connection. Browsers cannot
// set headers on websocket dials, so the access token travels as a
// query parameter instead of a Bearer header.
// GET /api/sync/ws?access_token=...
func (h *SyncHandler) Connect(c *gin.Context) {
	token := c.Query("access_token")
	if token == "" {
		response.Unauthorized(c, "missing access token")
		return
	}

	claims, err := utils.ParseToken(token)
	if err != nil {
		response.Unauthorized(c, "invalid access token")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("[Sync] Upgrade failed: %v", err)
		return
	}

	clientID := uuid.NewString()
	events := h.hub.Subscribe(claims.UserID, clientID)
	logger.Debug().
		Str("user_id", claims.UserID).
		Str("client_id", clientID).
		Msg("sync connection opened")

	go h.writePump(conn, events)
	go h.readPump(conn, claims.UserID, clientID)
}

// writePump forwards hub events to the socket and keeps it alive with
// pings. Exits when the events channel closes or a write fails.
func (h *SyncHandler) writePump(conn *websocket.Conn, events <-chan services.SyncEvent) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames and unsubscribes when the client
// goes away. Clients push clipboard changes over HTTP, never over the
// socket.
func (h *SyncHandler) readPump(conn *websocket.Conn, userID, clientID string) {
	defer func() {
		h.hub.Unsubscribe(userID, clientID)
		conn.Close()
		logger.Debug().
			Str("user_id", userID).
			Str("client_id", clientID).
			Msg("sync connection closed")
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
