package handler

import (
	"net/http"
	"time"

	"quadrant/backend/internal/auth"
	"quadrant/backend/internal/hub"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Events godoc
// @Summary      Subscribe to relationship events
// @Description  Upgrades to a websocket that streams relation.* events addressed to the caller. Browsers may pass the token as ?token=.
// @Tags         events
// @Security     BearerAuth
// @Param        token query string false "JWT, for clients that cannot set headers"
// @Success      101
// @Failure      401  {object}  ErrorResponse
// @Router       /events [get]
func (h *Handler) Events(c *gin.Context) {
	userID := auth.MustUserID(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := hub.NewClient()
	h.hub.Subscribe(userID, client)
	h.log.Debug("events connected", zap.Stringer("user", userID))

	go h.writePump(conn, client)
	go h.readPump(conn, userID, client)
}

// readPump discards inbound frames and keeps the read deadline fresh. It owns the
// subscription: when the peer goes away the client is unsubscribed.
func (h *Handler) readPump(conn *websocket.Conn, userID uuid.UUID, client hub.Client) {
	defer func() {
		h.hub.Unsubscribe(userID, client)
		conn.Close()
		h.log.Debug("events disconnected", zap.Stringer("user", userID))
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read failed", zap.Stringer("user", userID), zap.Error(err))
			}
			return
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, client hub.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Unsubscribed.
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
